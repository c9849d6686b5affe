package classification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"assetmatcher/internal/infrastructure/ai"
	"assetmatcher/normalization"
)

// AssetDisambiguator выбирает единственную компанию из шорт-листа
// кандидатов с помощью AI провайдера. Один запрос на запись актива,
// весь шорт-лист передается в одном промпте.
type AssetDisambiguator struct {
	client  ai.ProviderClient
	timeout time.Duration
	logger  *slog.Logger
}

// llmMatchResponse формат JSON ответа от модели
type llmMatchResponse struct {
	CompanyName *string `json:"company_name"`
}

// NewAssetDisambiguator создает новый дизамбигуатор
func NewAssetDisambiguator(client ai.ProviderClient, timeout time.Duration, logger *slog.Logger) *AssetDisambiguator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetDisambiguator{
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "asset_disambiguator"),
	}
}

// SelectCompany выбирает наиболее подходящую компанию из шорт-листа.
// Возвращает пустую строку, если модель не нашла подходящего кандидата.
// Выбор, отсутствующий в шорт-листе, отбрасывается.
func (d *AssetDisambiguator) SelectCompany(ctx context.Context, record normalization.AssetRecord, shortlist []string) (string, error) {
	if len(shortlist) == 0 {
		return "", nil
	}
	if d.client == nil || !d.client.IsEnabled() {
		return "", fmt.Errorf("AI provider is not configured")
	}

	systemPrompt := d.buildSystemPrompt()
	userPrompt := d.buildUserPrompt(record, shortlist)

	content, err := d.getCompletionWithTimeout(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	selected, err := d.parseResponse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse model response: %w", err)
	}

	if selected == "" {
		d.logger.Debug("Model selected no candidate", "asset", record.Name)
		return "", nil
	}

	// Принимаем только кандидатов из шорт-листа
	for _, candidate := range shortlist {
		if strings.EqualFold(candidate, selected) {
			return candidate, nil
		}
	}

	d.logger.Warn("Model returned company outside of shortlist, ignoring",
		"asset", record.Name, "selected", selected)
	return "", nil
}

func (d *AssetDisambiguator) buildSystemPrompt() string {
	return `You are a financial data analyst matching unstructured asset records to canonical company names.

You will receive an asset record (asset name, ownership name, country) and a list of candidate company names. Select the single candidate that is the real owner or issuer of the asset.

Guidelines:
- The geography of the asset should be consistent with the candidate company.
- Expand and compare acronyms in asset and company names.
- Prefer candidates whose name is closest to the ownership name, then to the asset name.
- If no candidate is a plausible match, select none.

Respond with a JSON object of the form {"company_name": "<candidate>"} using the exact candidate spelling, or {"company_name": null} when no candidate matches.`
}

func (d *AssetDisambiguator) buildUserPrompt(record normalization.AssetRecord, shortlist []string) string {
	var sb strings.Builder
	sb.WriteString("Asset record:\n")
	sb.WriteString(fmt.Sprintf("- Asset name: %s\n", record.Name))
	sb.WriteString(fmt.Sprintf("- Ownership name: %s\n", record.OwnershipName))
	sb.WriteString(fmt.Sprintf("- Country: %s\n", record.Country))
	sb.WriteString("\nCandidate companies:\n")
	for _, candidate := range shortlist {
		sb.WriteString(fmt.Sprintf("- %s\n", candidate))
	}
	return sb.String()
}

// getCompletionWithTimeout оборачивает синхронный вызов провайдера в горутину,
// чтобы уважать контекст и таймаут
func (d *AssetDisambiguator) getCompletionWithTimeout(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type completionResult struct {
		content string
		err     error
	}

	resultChan := make(chan completionResult, 1)
	go func() {
		content, err := d.client.GetCompletion(systemPrompt, userPrompt)
		resultChan <- completionResult{content: content, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.content, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("provider %s: %w", d.client.GetProviderName(), ctx.Err())
	}
}

// parseResponse извлекает имя компании из JSON ответа модели.
// Модели иногда оборачивают JSON в markdown блоки, очищаем их перед парсингом.
func (d *AssetDisambiguator) parseResponse(content string) (string, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var response llmMatchResponse
	if err := json.Unmarshal([]byte(cleaned), &response); err != nil {
		return "", fmt.Errorf("invalid JSON %q: %w", cleaned, err)
	}

	if response.CompanyName == nil {
		return "", nil
	}

	name := strings.TrimSpace(*response.CompanyName)
	if name == "" || strings.EqualFold(name, "none") || strings.EqualFold(name, "null") {
		return "", nil
	}

	return name, nil
}
