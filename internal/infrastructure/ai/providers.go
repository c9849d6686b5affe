package ai

// Message одно сообщение в диалоге с AI провайдером
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderClient интерфейс для всех AI провайдеров
type ProviderClient interface {
	// GetCompletion выполняет запрос к AI и возвращает текст ответа
	GetCompletion(systemPrompt, userPrompt string) (string, error)
	// GetProviderName возвращает имя провайдера
	GetProviderName() string
	// IsEnabled проверяет, активен ли провайдер
	IsEnabled() bool
}
