package normalization

import (
	"log/slog"

	"assetmatcher/database"
)

// DefaultMatchThreshold порог схожести по умолчанию для отбора кандидатов
const DefaultMatchThreshold = 60

// AssetAnalyzer сопоставляет записи активов с реестром компаний.
// Реестр загружается один раз и только читается; анализатор безопасно
// использовать повторно для любого количества записей, скрытого
// состояния между вызовами нет.
type AssetAnalyzer struct {
	entities []database.Entity
	fuzzy    *FuzzyAlgorithms
	logger   *slog.Logger
}

// NewAssetAnalyzer создает анализатор над загруженным реестром
func NewAssetAnalyzer(entities []database.Entity) *AssetAnalyzer {
	return &AssetAnalyzer{
		entities: entities,
		fuzzy:    NewFuzzyAlgorithms(),
		logger:   slog.Default().With("component", "asset_analyzer"),
	}
}

// NewAssetAnalyzerWithFuzzy создает анализатор с настроенными алгоритмами
// сравнения (например, со стеммингом токенов)
func NewAssetAnalyzerWithFuzzy(entities []database.Entity, fuzzy *FuzzyAlgorithms) *AssetAnalyzer {
	return &AssetAnalyzer{
		entities: entities,
		fuzzy:    fuzzy,
		logger:   slog.Default().With("component", "asset_analyzer"),
	}
}

// EntityCount возвращает размер загруженного реестра
func (a *AssetAnalyzer) EntityCount() int {
	return len(a.entities)
}

// CheckFuzzyEntityMatches строит шорт-лист кандидатов для записи актива.
//
// Название каждой компании реестра сравнивается по token-set схожести с тремя
// полями записи независимо: название, владелец, страна. Если максимальный из
// трех баллов строго превышает threshold, название компании попадает в
// шорт-лист — один раз на строку реестра, независимо от того, сколько полей
// превысило порог. Просматриваются все строки реестра, без раннего выхода.
//
// Возвращается новый срез при каждом вызове; пустой шорт-лист не ошибка,
// он означает "кандидатов нет" и выключает дальнейшие стадии.
func (a *AssetAnalyzer) CheckFuzzyEntityMatches(record AssetRecord, threshold int) []string {
	matches := make([]string, 0)

	for _, entity := range a.entities {
		score := a.fuzzy.TokenSetRatio(entity.CompanyName, record.Name)
		if s := a.fuzzy.TokenSetRatio(entity.CompanyName, record.OwnershipName); s > score {
			score = s
		}
		if s := a.fuzzy.TokenSetRatio(entity.CompanyName, record.Country); s > score {
			score = s
		}

		if score > threshold {
			matches = append(matches, entity.CompanyName)
		}
	}

	a.logger.Debug("Fuzzy shortlist built",
		"asset_name", record.Name,
		"threshold", threshold,
		"candidates", len(matches))

	return matches
}
