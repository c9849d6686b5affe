package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"

	"assetmatcher/database"
	"assetmatcher/importer"
	"assetmatcher/internal/config"
	"assetmatcher/normalization"
	"assetmatcher/server/middleware"
)

// Server HTTP сервер сервиса сопоставления активов
type Server struct {
	config     *config.Config
	serviceDB  *database.ServiceDB
	selector   normalization.CompanySelector
	httpServer *http.Server
	startTime  time.Time

	// Анализатор держит реестр в памяти; перезагружается после импорта
	analyzer      *normalization.AssetAnalyzer
	analyzerMutex sync.RWMutex

	registryParser *importer.RegistryParser
	assetParser    *importer.AssetParser
	logger         *slog.Logger
}

// NewServer создает новый сервер
func NewServer(cfg *config.Config, serviceDB *database.ServiceDB, selector normalization.CompanySelector) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if serviceDB == nil {
		return nil, fmt.Errorf("service database is required")
	}

	s := &Server{
		config:    cfg,
		serviceDB: serviceDB,
		selector:  selector,
		startTime: time.Now(),
		registryParser: importer.NewRegistryParser(importer.RegistryColumns{
			Company: cfg.RegistryCompanyColumn,
			ISIN:    cfg.RegistryISINColumn,
			Country: cfg.RegistryCountryColumn,
		}),
		assetParser: importer.NewAssetParser(importer.DefaultAssetColumns()),
		logger:      slog.Default().With("component", "server"),
	}

	if err := s.ReloadRegistry(); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	return s, nil
}

// ReloadRegistry перечитывает реестр компаний из БД в память
func (s *Server) ReloadRegistry() error {
	entities, err := s.serviceDB.GetEntities()
	if err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}

	fuzzy := normalization.NewFuzzyAlgorithmsWithStemming(s.config.UseStemming)
	analyzer := normalization.NewAssetAnalyzerWithFuzzy(entities, fuzzy)

	s.analyzerMutex.Lock()
	s.analyzer = analyzer
	s.analyzerMutex.Unlock()

	log.Printf("[Server] Registry loaded: %d companies", len(entities))
	return nil
}

// getAnalyzer возвращает текущий анализатор под блокировкой чтения
func (s *Server) getAnalyzer() *normalization.AssetAnalyzer {
	s.analyzerMutex.RLock()
	defer s.analyzerMutex.RUnlock()
	return s.analyzer
}

// setupRouter настраивает маршруты и middleware
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinGzipMiddleware())

	router.GET("/health", s.healthHandler)

	api := router.Group("/api")
	{
		api.POST("/assets/match", s.matchAssetsHandler)
		api.POST("/registry/import", s.importRegistryHandler)
		api.GET("/registry/resolve", s.resolveCompanyHandler)
		api.GET("/sessions", s.sessionsHandler)
		api.GET("/sessions/:id/results", s.sessionResultsHandler)
		api.GET("/sessions/:id/export", s.exportSessionHandler)
	}

	return router
}

// Start запускает HTTP сервер и блокируется до остановки
func (s *Server) Start() error {
	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[Server] Listening on port %s", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер с ожиданием активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Printf("[Server] Shutting down")
	return s.httpServer.Shutdown(ctx)
}
