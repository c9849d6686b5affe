package normalization

import (
	"regexp"
	"strings"
)

// AssetRecord одна строка входных данных об активе: свободный текст
// названия, владельца и страны. Поля перезаписываются на месте при
// нормализации, время жизни записи — один проход конвейера.
type AssetRecord struct {
	Name          string `json:"name"`
	OwnershipName string `json:"ownership_name"`
	Country       string `json:"country"`
}

// specialCharsPattern все символы кроме букв, цифр, подчеркивания и пробельных.
// Unicode-классы, а не ASCII: названия активов приходят на разных языках.
var specialCharsPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// FormatCountryName переставляет части названия страны вида "A, B" в "B A".
// Строки реестра обычно записаны в порядке "страна регион", а входные данные
// в порядке "регион, страна", поэтому перестановка повышает пересечение токенов.
//
// Строка ровно с одной запятой переставляется; без запятой возвращается без
// изменений; с двумя и более запятыми считается неразборчивой и тоже
// возвращается как есть.
func FormatCountryName(country string) string {
	if strings.Count(country, ",") != 1 {
		return country
	}

	idx := strings.Index(country, ",")
	first := strings.TrimSpace(country[:idx])
	second := strings.TrimSpace(country[idx+1:])
	if first == "" || second == "" {
		return country
	}

	return second + " " + first
}

// RemoveSpecialCharacters удаляет из строки все символы, не являющиеся
// буквой, цифрой или пробельным символом. Пустая строка и строка из одних
// знаков препинания не являются ошибкой. Операция идемпотентна.
func RemoveSpecialCharacters(s string) string {
	return specialCharsPattern.ReplaceAllString(s, "")
}

// NormalizeRecord приводит запись актива к виду для сравнения:
// страна переставляется, из названия и владельца убираются спецсимволы.
// Страна от знаков препинания не очищается, только переставляется.
func NormalizeRecord(record *AssetRecord) {
	record.Country = FormatCountryName(record.Country)
	record.Name = RemoveSpecialCharacters(record.Name)
	record.OwnershipName = RemoveSpecialCharacters(record.OwnershipName)
}
