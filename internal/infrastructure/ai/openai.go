package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIClient клиент для работы с OpenAI Chat Completions API.
// Запросы выполняются с ограничением частоты и повторными попытками
// с экспоненциальной задержкой для временных ошибок.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	retryConfig RetryConfig
	limiter     *rate.Limiter
}

// NewOpenAIClient создает новый клиент OpenAI
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o"
	}

	// Оптимизированный HTTP Transport с connection pooling
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 5,
	}

	return &OpenAIClient{
		baseURL: "https://api.openai.com/v1",
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		retryConfig: DefaultRetryConfig(),
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
	}
}

// SetRateLimit устанавливает ограничение частоты запросов (запросов в секунду)
func (c *OpenAIClient) SetRateLimit(rps float64) {
	if rps <= 0 {
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// SetMaxRetries устанавливает количество повторных попыток для временных ошибок.
// Ноль отключает повторы: запрос выполняется ровно один раз.
func (c *OpenAIClient) SetMaxRetries(n int) {
	if n < 0 {
		return
	}
	c.retryConfig.MaxRetries = n
}

// GetProviderName возвращает имя провайдера
func (c *OpenAIClient) GetProviderName() string {
	return "OpenAI"
}

// IsEnabled проверяет, активен ли провайдер
func (c *OpenAIClient) IsEnabled() bool {
	return c.apiKey != ""
}

// GetCompletion выполняет запрос к OpenAI и возвращает текст ответа.
// Ответ запрашивается в формате JSON объекта (response_format json_object).
// Поддерживает retry с экспоненциальной задержкой для ошибок rate limit и 5xx.
func (c *OpenAIClient) GetCompletion(systemPrompt, userPrompt string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	return c.ChatCompletion(c.model, messages)
}

// ChatCompletion выполняет запрос к OpenAI Chat Completions API
func (c *OpenAIClient) ChatCompletion(model string, messages []Message) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"response_format": map[string]string{
			"type": "json_object",
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	delay := c.retryConfig.InitialDelay

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[OpenAI] Retry attempt %d/%d for ChatCompletion after %v", attempt, c.retryConfig.MaxRetries, delay)
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * c.retryConfig.BackoffMultiplier)
			if delay > c.retryConfig.MaxDelay {
				delay = c.retryConfig.MaxDelay
			}
		}

		if err := c.limiter.Wait(context.Background()); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		if c.apiKey != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Printf("[OpenAI] Request failed (attempt %d/%d): %v", attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		// HTTP 429: учитываем Retry-After, если сервер его прислал
		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", string(body))
			log.Printf("[OpenAI] Rate limit exceeded (attempt %d/%d), retry after %v",
				attempt+1, c.retryConfig.MaxRetries+1, delay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var errorResp struct {
				Error *struct {
					Message string `json:"message"`
					Type    string `json:"type"`
					Code    string `json:"code,omitempty"`
				} `json:"error,omitempty"`
			}
			json.Unmarshal(body, &errorResp)

			errorMsg := string(body)
			if errorResp.Error != nil {
				errorMsg = errorResp.Error.Message
				// Quota exceeded не временная ошибка, retry не поможет
				if strings.Contains(strings.ToLower(errorMsg), "quota") ||
					strings.Contains(strings.ToLower(errorResp.Error.Type), "insufficient_quota") {
					return "", fmt.Errorf("quota exceeded: %s (type: %s)", errorMsg, errorResp.Error.Type)
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorMsg)

			if resp.StatusCode >= 500 && attempt < c.retryConfig.MaxRetries {
				log.Printf("[OpenAI] Server error %d (attempt %d/%d), will retry",
					resp.StatusCode, attempt+1, c.retryConfig.MaxRetries+1)
				continue
			}

			return "", lastErr
		}

		var response struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error,omitempty"`
		}

		if err := json.Unmarshal(body, &response); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			log.Printf("[OpenAI] Failed to decode response (attempt %d/%d): %v",
				attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		if response.Error != nil {
			return "", fmt.Errorf("API error: %s (type: %s)", response.Error.Message, response.Error.Type)
		}

		if len(response.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		return response.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("all retry attempts failed: %w", lastErr)
}

// parseRetryAfter парсит заголовок Retry-After из ответа
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
		return seconds
	}

	return 0
}
