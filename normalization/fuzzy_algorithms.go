package normalization

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// FuzzyAlgorithms предоставляет алгоритмы нечеткого сравнения строк
// для сопоставления активов с реестром компаний
type FuzzyAlgorithms struct {
	useStemming bool
}

// NewFuzzyAlgorithms создает новый экземпляр алгоритмов нечеткого сравнения
func NewFuzzyAlgorithms() *FuzzyAlgorithms {
	return &FuzzyAlgorithms{}
}

// NewFuzzyAlgorithmsWithStemming создает экземпляр с опциональным стеммингом
// токенов. Стемминг сглаживает словоформы вида "Holdings"/"Holding"
// в названиях компаний.
func NewFuzzyAlgorithmsWithStemming(useStemming bool) *FuzzyAlgorithms {
	return &FuzzyAlgorithms{useStemming: useStemming}
}

// Ratio вычисляет посимвольную схожесть двух строк по расстоянию
// Левенштейна (замена стоит 2) на шкале от 0 до 100
func (fa *FuzzyAlgorithms) Ratio(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	lensum := len(r1) + len(r2)
	if lensum == 0 {
		return 100
	}

	distance := editDistance(r1, r2)
	return int(math.Round(100.0 * float64(lensum-distance) / float64(lensum)))
}

// TokenSetRatio вычисляет схожесть строк по множествам токенов на шкале от 0 до 100.
// Метрика нечувствительна к порядку слов и терпима к вложению одного множества
// токенов в другое: сокращенное или переставленное название компании получает
// высокий балл относительно полного названия из реестра.
func (fa *FuzzyAlgorithms) TokenSetRatio(s1, s2 string) int {
	tokens1 := fa.tokenSet(s1)
	tokens2 := fa.tokenSet(s2)

	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	set2 := make(map[string]bool, len(tokens2))
	for _, t := range tokens2 {
		set2[t] = true
	}
	set1 := make(map[string]bool, len(tokens1))
	for _, t := range tokens1 {
		set1[t] = true
	}

	var intersection, diff1, diff2 []string
	for _, t := range tokens1 {
		if set2[t] {
			intersection = append(intersection, t)
		} else {
			diff1 = append(diff1, t)
		}
	}
	for _, t := range tokens2 {
		if !set1[t] {
			diff2 = append(diff2, t)
		}
	}

	sorted := strings.Join(intersection, " ")
	combined1 := strings.TrimSpace(sorted + " " + strings.Join(diff1, " "))
	combined2 := strings.TrimSpace(sorted + " " + strings.Join(diff2, " "))

	// Если одно множество вложено в другое, пары sorted/combined совпадают
	// и результат равен 100
	best := fa.Ratio(sorted, combined1)
	if r := fa.Ratio(sorted, combined2); r > best {
		best = r
	}
	if r := fa.Ratio(combined1, combined2); r > best {
		best = r
	}

	return best
}

// tokenSet возвращает отсортированное множество уникальных токенов строки
func (fa *FuzzyAlgorithms) tokenSet(text string) []string {
	tokens := fa.tokenize(text)

	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	sort.Strings(unique)
	return unique
}

// tokenize разбивает строку на токены в нижнем регистре по небуквенным символам
func (fa *FuzzyAlgorithms) tokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	if !fa.useStemming {
		return words
	}

	stemmed := make([]string, 0, len(words))
	for _, word := range words {
		stem, err := snowball.Stem(word, "english", false)
		if err != nil || stem == "" {
			// Токены не на английском оставляем как есть
			stemmed = append(stemmed, word)
			continue
		}
		stemmed = append(stemmed, stem)
	}
	return stemmed
}

// editDistance вычисляет расстояние Левенштейна, в котором замена символа
// стоит как удаление плюс вставка. При такой стоимости расстояние согласуется
// со шкалой Ratio: (len1+len2-distance)/(len1+len2)
func editDistance(r1, r2 []rune) int {
	len1 := len(r1)
	len2 := len(r2)

	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	prev := make([]int, len2+1)
	curr := make([]int, len2+1)

	for j := 0; j <= len2; j++ {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 2
			}

			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len2]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
