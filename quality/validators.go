package quality

import (
	"regexp"
	"strings"
)

// isinPattern структура ISIN: два буквенных символа кода страны,
// девять знаков NSIN, контрольная цифра
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// ValidateISIN валидирует ISIN с проверкой контрольной цифры.
// Невалидный код — сигнал о качестве данных реестра, а не ошибка выполнения.
func ValidateISIN(isin string) bool {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(isin, " ", ""), "-", ""))

	if len(cleaned) != 12 {
		return false
	}

	if !isinPattern.MatchString(cleaned) {
		return false
	}

	return validateISINChecksum(cleaned)
}

// validateISINChecksum проверяет контрольную цифру по алгоритму Луна.
// Буквы разворачиваются в два десятичных знака (A=10 ... Z=35), после чего
// проверяется вся цифровая строка, включая контрольную цифру.
func validateISINChecksum(isin string) bool {
	var digits []int
	for _, r := range isin {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			digits = append(digits, v/10, v%10)
		default:
			return false
		}
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

// ValidateCountryCode проверяет, что первые два символа ISIN — буквы
// (код страны по ISO 3166-1 alpha-2 по форме, без сверки со справочником)
func ValidateCountryCode(isin string) bool {
	if len(isin) < 2 {
		return false
	}
	prefix := strings.ToUpper(isin[:2])
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
