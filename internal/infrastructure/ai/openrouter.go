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

// OpenRouterClient клиент для работы с OpenRouter API.
// Используется как альтернативный провайдер, когда прямой доступ
// к OpenAI недоступен.
type OpenRouterClient struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	retryConfig RetryConfig
	limiter     *rate.Limiter
}

// NewOpenRouterClient создает новый клиент OpenRouter
func NewOpenRouterClient(apiKey, model string) *OpenRouterClient {
	if model == "" {
		model = "openai/gpt-4o"
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 5,
	}

	return &OpenRouterClient{
		baseURL: "https://openrouter.ai/api/v1",
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
func (c *OpenRouterClient) SetRateLimit(rps float64) {
	if rps <= 0 {
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// SetMaxRetries устанавливает количество повторных попыток для временных ошибок.
// Ноль отключает повторы: запрос выполняется ровно один раз.
func (c *OpenRouterClient) SetMaxRetries(n int) {
	if n < 0 {
		return
	}
	c.retryConfig.MaxRetries = n
}

// GetProviderName возвращает имя провайдера
func (c *OpenRouterClient) GetProviderName() string {
	return "OpenRouter"
}

// IsEnabled проверяет, активен ли провайдер
func (c *OpenRouterClient) IsEnabled() bool {
	return c.apiKey != ""
}

// GetCompletion выполняет запрос к OpenRouter и возвращает текст ответа
func (c *OpenRouterClient) GetCompletion(systemPrompt, userPrompt string) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	requestBody := map[string]interface{}{
		"model":    c.model,
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
			log.Printf("[OpenRouter] Retry attempt %d/%d after %v", attempt, c.retryConfig.MaxRetries, delay)
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

		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Printf("[OpenRouter] Request failed (attempt %d/%d): %v", attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", string(body))
			log.Printf("[OpenRouter] Rate limit exceeded (attempt %d/%d), retry after %v",
				attempt+1, c.retryConfig.MaxRetries+1, delay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var errorResp struct {
				Error *struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error,omitempty"`
			}
			json.Unmarshal(body, &errorResp)

			errorMsg := string(body)
			if errorResp.Error != nil {
				errorMsg = errorResp.Error.Message
				if strings.Contains(strings.ToLower(errorMsg), "quota") {
					return "", fmt.Errorf("quota exceeded: %s", errorMsg)
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorMsg)

			if resp.StatusCode >= 500 && attempt < c.retryConfig.MaxRetries {
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
		}

		if err := json.Unmarshal(body, &response); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			continue
		}

		if len(response.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		return response.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("all retry attempts failed: %w", lastErr)
}
