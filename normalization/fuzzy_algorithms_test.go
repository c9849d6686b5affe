package normalization

import "testing"

func TestRatio(t *testing.T) {
	fa := NewFuzzyAlgorithms()

	tests := []struct {
		name     string
		s1, s2   string
		expected int
	}{
		{"Identical", "acme corp", "acme corp", 100},
		{"Both empty", "", "", 100},
		{"One empty", "acme", "", 0},
		{"Single substitution", "abc", "abd", 67},
		{"Completely different", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fa.Ratio(tt.s1, tt.s2); got != tt.expected {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.expected)
			}
		})
	}
}

func TestRatioSymmetric(t *testing.T) {
	fa := NewFuzzyAlgorithms()
	pairs := [][2]string{
		{"acme corporation", "acme corp"},
		{"beta industries", "industries beta"},
		{"", "something"},
	}
	for _, p := range pairs {
		if fa.Ratio(p[0], p[1]) != fa.Ratio(p[1], p[0]) {
			t.Errorf("Ratio not symmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestTokenSetRatio(t *testing.T) {
	fa := NewFuzzyAlgorithms()

	tests := []struct {
		name     string
		s1, s2   string
		expected int
	}{
		{"Identical", "Acme Corporation", "Acme Corporation", 100},
		{"Case insensitive", "ACME CORPORATION", "acme corporation", 100},
		{"Word order ignored", "Corporation Acme", "Acme Corporation", 100},
		{"Duplicate tokens collapsed", "acme acme corp", "acme corp", 100},
		{"Token subset scores 100", "Acme", "Acme Corporation Holdings", 100},
		{"Empty first", "", "acme", 0},
		{"Empty second", "acme", "", 0},
		{"Both empty", "", "", 0},
		{"Punctuation only", "?!.", "acme", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fa.TokenSetRatio(tt.s1, tt.s2); got != tt.expected {
				t.Errorf("TokenSetRatio(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.expected)
			}
		})
	}
}

func TestTokenSetRatioPartialOverlap(t *testing.T) {
	fa := NewFuzzyAlgorithms()

	score := fa.TokenSetRatio("Acme Corporation", "Acme Industrial Group")
	if score <= 0 || score >= 100 {
		t.Errorf("expected partial score in (0,100), got %d", score)
	}

	// Больше общих токенов — балл не ниже
	better := fa.TokenSetRatio("Acme Corporation", "Acme Corporation Group")
	if better < score {
		t.Errorf("more overlap scored lower: %d < %d", better, score)
	}
}

func TestTokenSetRatioRange(t *testing.T) {
	fa := NewFuzzyAlgorithms()
	pairs := [][2]string{
		{"Acme Corporation", "Beta Industries"},
		{"a b c d", "c d e f"},
		{"one", "two three"},
		{"x", "y"},
	}
	for _, p := range pairs {
		score := fa.TokenSetRatio(p[0], p[1])
		if score < 0 || score > 100 {
			t.Errorf("TokenSetRatio(%q, %q) = %d out of [0,100]", p[0], p[1], score)
		}
	}
}

func TestTokenizeStemming(t *testing.T) {
	plain := NewFuzzyAlgorithms()
	stemmed := NewFuzzyAlgorithmsWithStemming(true)

	// Без стемминга словоформы различаются, со стеммингом совпадают
	if plain.TokenSetRatio("Acme Holdings", "Acme Holding") == 100 {
		t.Error("expected plain tokenizer to distinguish Holdings/Holding")
	}
	if stemmed.TokenSetRatio("Acme Holdings", "Acme Holding") != 100 {
		t.Error("expected stemmed tokenizer to equate Holdings/Holding")
	}
}
