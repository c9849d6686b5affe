package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errors []string

	// Валидация порта
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}

	// Валидация пути к базе данных
	if c.DatabasePath == "" {
		errors = append(errors, "database path is required")
	}

	// Валидация AI провайдера
	validProviders := []string{"openai", "openrouter"}
	if c.Provider != "" {
		valid := false
		for _, provider := range validProviders {
			if c.Provider == provider {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid provider: %s (valid: %s)",
				c.Provider, strings.Join(validProviders, ", ")))
		}
	}

	// Валидация таймаутов и retry
	if c.AITimeout < time.Second {
		errors = append(errors, "AI timeout must be at least 1 second")
	}
	if c.AIMaxRetries < 0 {
		errors = append(errors, "AI max retries cannot be negative")
	}
	if c.AIRateLimit <= 0 {
		errors = append(errors, "AI rate limit must be positive")
	}

	// Валидация порога сопоставления
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		errors = append(errors, fmt.Sprintf("match threshold must be between 0 and 100, got %d", c.MatchThreshold))
	}

	// Валидация колонок реестра
	if c.RegistryCompanyColumn == "" {
		errors = append(errors, "registry company column is required")
	}
	if c.RegistryISINColumn == "" {
		errors = append(errors, "registry ISIN column is required")
	}

	// Валидация уровня логирования
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if c.LogLevel != "" {
		valid := false
		logLevelUpper := strings.ToUpper(c.LogLevel)
		for _, level := range validLogLevels {
			if logLevelUpper == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
				c.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// GetDefaults возвращает конфигурацию со значениями по умолчанию
func GetDefaults() *Config {
	return &Config{
		Port:                  "8080",
		DatabasePath:          "assetmatcher.db",
		Provider:              "openai",
		OpenAIModel:           "gpt-4o",
		OpenRouterModel:       "openai/gpt-4o",
		AITimeout:             30 * time.Second,
		AIMaxRetries:          3,
		AIRateLimit:           2,
		MatchThreshold:        60,
		RegistryCompanyColumn: "company_name",
		RegistryISINColumn:    "isin",
		RegistryCountryColumn: "country",
		LogLevel:              "INFO",
	}
}
