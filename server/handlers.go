package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"assetmatcher/database"
	"assetmatcher/normalization"
	"assetmatcher/quality"
)

// matchRequest тело запроса на сопоставление активов
type matchRequest struct {
	Assets    []normalization.AssetRecord `json:"assets" binding:"required"`
	Threshold *int                        `json:"threshold,omitempty"`
}

// matchResponse ответ с результатами сопоставления
type matchResponse struct {
	Summary *normalization.RunSummary   `json:"summary"`
	Results []normalization.MatchResult `json:"results"`
}

// memorySink накапливает результаты прогона в памяти для HTTP ответа
type memorySink struct {
	results []normalization.MatchResult
}

func (m *memorySink) WriteResult(result normalization.MatchResult) error {
	m.results = append(m.results, result)
	return nil
}

// matchAssetsHandler обрабатывает POST /api/assets/match
func (s *Server) matchAssetsHandler(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	threshold := s.config.MatchThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	sink := &memorySink{}
	pipeline, err := normalization.NewPipeline(s.getAnalyzer(), s.selector, normalization.PipelineConfig{
		Threshold: threshold,
		Sink:      sink,
		ServiceDB: s.serviceDB,
		Source:    "api",
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := pipeline.Run(c.Request.Context(), req.Assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, matchResponse{
		Summary: summary,
		Results: sink.results,
	})
}

// importRegistryHandler обрабатывает POST /api/registry/import.
// Принимает CSV или xlsx файл реестра компаний через multipart form.
// С параметром truncate=true существующий реестр очищается перед импортом.
func (s *Server) importRegistryHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	// Excel парсер работает только с файлами на диске
	tmpPath := filepath.Join(os.TempDir(),
		fmt.Sprintf("registry_upload_%d_%s", time.Now().UnixNano(), filepath.Base(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to save upload: %v", err)})
		return
	}
	defer os.Remove(tmpPath)

	var parsed int
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".xlsx":
		rows, err := s.registryParser.ParseExcelFile(tmpPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		parsed, err = s.storeRegistry(rows, c.Query("truncate") == "true")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	case ".csv", "":
		rows, err := s.registryParser.ParseFile(tmpPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		parsed, err = s.storeRegistry(rows, c.Query("truncate") == "true")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type: %s", ext)})
		return
	}

	if err := s.ReloadRegistry(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	total, err := s.serviceDB.CountEntities()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported":       parsed,
		"registry_total": total,
	})
}

// resolveCompanyHandler обрабатывает GET /api/registry/resolve?company=...
// Разрешение идет напрямую через БД, минуя загруженный в память реестр:
// точное совпадение без учета регистра, при дубликатах первая строка
// в порядке загрузки.
func (s *Server) resolveCompanyHandler(c *gin.Context) {
	company := strings.TrimSpace(c.Query("company"))
	if company == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter company is required"})
		return
	}

	isin, err := s.serviceDB.FindISINByCompanyName(company)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if isin == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("company %q not found in registry", company)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"company":            company,
		"isin":               isin,
		"isin_valid":         quality.ValidateISIN(isin),
		"country_code_valid": quality.ValidateCountryCode(isin),
	})
}

// sessionsHandler обрабатывает GET /api/sessions
func (s *Server) sessionsHandler(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	sessions, err := s.serviceDB.GetMatchSessions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// sessionResultsHandler обрабатывает GET /api/sessions/:id/results
func (s *Server) sessionResultsHandler(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	results, err := s.serviceDB.GetSessionResults(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// exportSessionHandler обрабатывает GET /api/sessions/:id/export?format=csv|json|xlsx
func (s *Server) exportSessionHandler(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	format := c.DefaultQuery("format", "csv")
	exporter := normalization.NewExporter(s.serviceDB)

	filename := fmt.Sprintf("session_%d_%d.%s", sessionID, time.Now().UnixNano(), format)
	tmpPath := filepath.Join(os.TempDir(), filename)
	defer os.Remove(tmpPath)

	switch format {
	case "json":
		err = exporter.ExportSessionToJSON(sessionID, tmpPath)
	case "csv":
		err = exporter.ExportSessionToCSV(sessionID, tmpPath)
	case "xlsx":
		err = exporter.ExportSessionToExcel(sessionID, tmpPath)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format: %s", format)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.FileAttachment(tmpPath, fmt.Sprintf("session_%d.%s", sessionID, format))
}

// storeRegistry сохраняет импортированные строки реестра в БД
func (s *Server) storeRegistry(entities []database.Entity, truncate bool) (int, error) {
	if truncate {
		if err := s.serviceDB.ClearEntities(); err != nil {
			return 0, fmt.Errorf("failed to clear registry: %w", err)
		}
	}
	inserted, err := s.serviceDB.InsertEntities(entities)
	if err != nil {
		return 0, fmt.Errorf("failed to store registry: %w", err)
	}
	return inserted, nil
}

// healthHandler обрабатывает GET /health
func (s *Server) healthHandler(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK

	if err := s.serviceDB.Ping(); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	registrySize := 0
	if analyzer := s.getAnalyzer(); analyzer != nil {
		registrySize = analyzer.EntityCount()
	}

	c.JSON(httpStatus, gin.H{
		"status":        status,
		"registry_size": registrySize,
		"uptime":        time.Since(s.startTime).String(),
	})
}
