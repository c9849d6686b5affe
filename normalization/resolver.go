package normalization

import "strings"

// MatchCompanyToISIN находит идентифицирующий код по названию компании.
//
// Сравнение точное, без учета регистра. Вторым значением возвращается false,
// если компании нет в реестре: это проблема качества данных, а не ошибка
// выполнения, вызывающая сторона фиксирует промах и продолжает работу.
// При дубликатах названий в реестре возвращается код первой строки
// в порядке загрузки.
func (a *AssetAnalyzer) MatchCompanyToISIN(companyName string) (string, bool) {
	if companyName == "" {
		return "", false
	}

	for _, entity := range a.entities {
		if strings.EqualFold(entity.CompanyName, companyName) {
			return entity.ISIN, true
		}
	}

	return "", false
}
