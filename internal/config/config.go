package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config конфигурация сервиса сопоставления активов
type Config struct {
	// Сервер
	Port string `json:"port"`

	// База данных
	DatabasePath string `json:"database_path"`

	// AI конфигурация
	Provider         string        `json:"provider"`
	OpenAIAPIKey     string        `json:"openai_api_key"`
	OpenAIModel      string        `json:"openai_model"`
	OpenRouterAPIKey string        `json:"openrouter_api_key"`
	OpenRouterModel  string        `json:"openrouter_model"`
	AITimeout        time.Duration `json:"ai_timeout"`
	AIMaxRetries     int           `json:"ai_max_retries"`
	AIRateLimit      float64       `json:"ai_rate_limit_per_sec"`

	// Сопоставление
	MatchThreshold int  `json:"match_threshold"`
	UseStemming    bool `json:"use_stemming"`

	// Колонки реестра компаний
	RegistryCompanyColumn string `json:"registry_company_column"`
	RegistryISINColumn    string `json:"registry_isin_column"`
	RegistryCountryColumn string `json:"registry_country_column"`

	// Логирование
	LogLevel string `json:"log_level"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	config := &Config{
		// Сервер
		Port: getEnv("SERVER_PORT", "8080"),

		// База данных
		DatabasePath: getEnv("DATABASE_PATH", "assetmatcher.db"),

		// AI конфигурация
		Provider:         getEnv("AI_PROVIDER", "openai"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "openai/gpt-4o"),
		AITimeout:        getEnvDuration("AI_TIMEOUT", 30*time.Second),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRateLimit:      getEnvFloat("AI_RATE_LIMIT_PER_SEC", 2),

		// Сопоставление
		MatchThreshold: getEnvInt("MATCH_THRESHOLD", 60),
		UseStemming:    getEnv("USE_STEMMING", "false") == "true",

		// Колонки реестра
		RegistryCompanyColumn: getEnv("REGISTRY_COMPANY_COLUMN", "company_name"),
		RegistryISINColumn:    getEnv("REGISTRY_ISIN_COLUMN", "isin"),
		RegistryCountryColumn: getEnv("REGISTRY_COUNTRY_COLUMN", "country"),

		// Логирование
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
