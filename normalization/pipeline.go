package normalization

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"assetmatcher/database"
	"assetmatcher/quality"
)

// CompanySelector внешняя способность выбора лучшего кандидата из шорт-листа.
// Реализация живет за сетью (AI оракул); конвейер зависит только от этого
// контракта, что позволяет подставлять детерминированную заглушку в тестах.
type CompanySelector interface {
	// SelectCompany возвращает ровно одно название компании из шорт-листа
	// или пустую строку, если выбор не сделан
	SelectCompany(ctx context.Context, record AssetRecord, shortlist []string) (string, error)
}

// MatchResult итог обработки одной записи актива.
// ISIN заполнен только если выбранная компания разрешилась ровно в одну
// строку реестра; промах разрешения фиксируется, но не фатален.
type MatchResult struct {
	Record          AssetRecord `json:"record"`
	Shortlist       []string    `json:"shortlist"`
	SelectedCompany string      `json:"selected_company,omitempty"`
	ISIN            string      `json:"isin,omitempty"`
	ISINValid       bool        `json:"isin_valid"`
}

// ResultSink приемник результатов. Запись выполняется после каждой записи
// актива (write-through), а не пакетно в конце прогона.
type ResultSink interface {
	WriteResult(result MatchResult) error
}

// RunSummary сводка по прогону конвейера
type RunSummary struct {
	SessionUID       string        `json:"session_uid"`
	TotalRecords     int           `json:"total_records"`
	EmptyShortlists  int           `json:"empty_shortlists"`
	Selected         int           `json:"selected"`
	SelectionFailed  int           `json:"selection_failed"`
	Resolved         int           `json:"resolved"`
	ResolutionMisses int           `json:"resolution_misses"`
	Duration         time.Duration `json:"duration"`
}

// PipelineConfig настройки конвейера сопоставления
type PipelineConfig struct {
	Threshold int                 // Порог отбора кандидатов (0-100)
	Sink      ResultSink          // Обязательный приемник результатов
	ServiceDB *database.ServiceDB // Опциональная сервисная БД для сессий
	Source    string              // Метка источника данных для сессии
}

// Pipeline конвейер сопоставления: нормализация, шорт-лист, выбор, разрешение кода.
// Записи обрабатываются строго последовательно, в порядке входа. Ошибка
// обработки одной записи никогда не прерывает обработку следующих; фатальны
// только структурные ошибки (недоступный приемник результатов или сервисная БД).
type Pipeline struct {
	analyzer  *AssetAnalyzer
	selector  CompanySelector
	sink      ResultSink
	serviceDB *database.ServiceDB
	threshold int
	source    string
	logger    *slog.Logger
}

// NewPipeline создает конвейер сопоставления
func NewPipeline(analyzer *AssetAnalyzer, selector CompanySelector, cfg PipelineConfig) (*Pipeline, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("result sink is required")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("threshold must be in [0,100], got %d", cfg.Threshold)
	}

	return &Pipeline{
		analyzer:  analyzer,
		selector:  selector,
		sink:      cfg.Sink,
		serviceDB: cfg.ServiceDB,
		threshold: cfg.Threshold,
		source:    cfg.Source,
		logger:    slog.Default().With("component", "match_pipeline"),
	}, nil
}

// Run обрабатывает записи активов по одной и возвращает сводку прогона
func (p *Pipeline) Run(ctx context.Context, records []AssetRecord) (*RunSummary, error) {
	summary := &RunSummary{
		SessionUID:   uuid.New().String(),
		TotalRecords: len(records),
	}
	startTime := time.Now()

	logger := p.logger.With("session_uid", summary.SessionUID)
	logger.Info("Starting asset matching run",
		"records", len(records),
		"registry_size", p.analyzer.EntityCount(),
		"threshold", p.threshold)

	var session *database.MatchSession
	if p.serviceDB != nil {
		var err error
		session, err = p.serviceDB.CreateMatchSession(summary.SessionUID, p.source, p.threshold, len(records))
		if err != nil {
			return nil, fmt.Errorf("failed to create match session: %w", err)
		}
	}

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			p.finishSession(session, "stopped")
			summary.Duration = time.Since(startTime)
			return summary, fmt.Errorf("run cancelled after %d records: %w", i, err)
		}

		result := p.processRecord(ctx, raw, summary, logger)

		// Write-through: результат пишется сразу, чтобы частичный
		// прогресс переживал аварийную остановку прогона
		if err := p.sink.WriteResult(result); err != nil {
			p.finishSession(session, "failed")
			summary.Duration = time.Since(startTime)
			return summary, fmt.Errorf("failed to write result for %q: %w", raw.Name, err)
		}

		if session != nil {
			p.persistResult(session.ID, result, logger)
		}

		logger.Info("Analysed assets", "done", i+1, "total", len(records))
	}

	p.finishSession(session, "completed")
	summary.Duration = time.Since(startTime)

	logger.Info("Asset matching run completed",
		"total", summary.TotalRecords,
		"resolved", summary.Resolved,
		"empty_shortlists", summary.EmptyShortlists,
		"selection_failed", summary.SelectionFailed,
		"resolution_misses", summary.ResolutionMisses,
		"duration_ms", summary.Duration.Milliseconds())

	return summary, nil
}

// processRecord прогоняет одну запись через все стадии.
// Любой сбой стадии поглощается на границе записи.
func (p *Pipeline) processRecord(ctx context.Context, raw AssetRecord, summary *RunSummary, logger *slog.Logger) MatchResult {
	record := raw
	NormalizeRecord(&record)

	shortlist := p.analyzer.CheckFuzzyEntityMatches(record, p.threshold)

	result := MatchResult{
		Record:    raw,
		Shortlist: shortlist,
	}

	// Пустой шорт-лист выключает выбор и разрешение кода целиком:
	// оракул для такой записи не вызывается
	if len(shortlist) == 0 {
		summary.EmptyShortlists++
		return result
	}

	selected, err := p.selector.SelectCompany(ctx, record, shortlist)
	if err != nil {
		logger.Warn("Company selection failed, recording no selection",
			"asset_name", raw.Name,
			"error", err.Error())
		summary.SelectionFailed++
		return result
	}
	if selected == "" {
		summary.SelectionFailed++
		return result
	}

	result.SelectedCompany = selected
	summary.Selected++

	isin, found := p.analyzer.MatchCompanyToISIN(selected)
	if !found {
		logger.Warn("Cannot find ISIN match",
			"asset_name", raw.Name,
			"selected_company", selected)
		summary.ResolutionMisses++
		return result
	}

	result.ISIN = isin
	result.ISINValid = quality.ValidateISIN(isin)
	summary.Resolved++

	if !result.ISINValid {
		logger.Warn("Resolved ISIN failed checksum validation",
			"isin", isin,
			"selected_company", selected)
	}

	return result
}

// persistResult сохраняет результат в сервисную БД.
// Сбой вторичного хранилища логируется и не прерывает прогон.
func (p *Pipeline) persistResult(sessionID int, result MatchResult, logger *slog.Logger) {
	shortlistJSON, err := json.Marshal(result.Shortlist)
	if err != nil {
		logger.Warn("Failed to marshal shortlist", "error", err.Error())
		shortlistJSON = []byte("[]")
	}

	_, err = p.serviceDB.InsertMatchResult(database.MatchResultRow{
		SessionID:       sessionID,
		AssetName:       result.Record.Name,
		AssetOwnership:  result.Record.OwnershipName,
		AssetCountry:    result.Record.Country,
		Shortlist:       string(shortlistJSON),
		SelectedCompany: result.SelectedCompany,
		ISIN:            result.ISIN,
		ISINValid:       result.ISINValid,
	})
	if err != nil {
		logger.Warn("Failed to persist match result",
			"asset_name", result.Record.Name,
			"error", err.Error())
	}
}

func (p *Pipeline) finishSession(session *database.MatchSession, status string) {
	if session == nil || p.serviceDB == nil {
		return
	}
	if err := p.serviceDB.FinishMatchSession(session.ID, status); err != nil {
		p.logger.Warn("Failed to finish match session",
			"session_id", session.ID,
			"status", status,
			"error", err.Error())
	}
}
