package normalization

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"assetmatcher/database"
)

// firstCandidateSelector выбирает первого кандидата из шорт-листа
type firstCandidateSelector struct {
	calls int
}

func (s *firstCandidateSelector) SelectCompany(ctx context.Context, record AssetRecord, shortlist []string) (string, error) {
	s.calls++
	if len(shortlist) == 0 {
		return "", nil
	}
	return shortlist[0], nil
}

// failingSelector всегда возвращает ошибку
type failingSelector struct{}

func (s *failingSelector) SelectCompany(ctx context.Context, record AssetRecord, shortlist []string) (string, error) {
	return "", errors.New("oracle unavailable")
}

// collectSink накапливает результаты в памяти
type collectSink struct {
	results []MatchResult
}

func (c *collectSink) WriteResult(result MatchResult) error {
	c.results = append(c.results, result)
	return nil
}

// brokenSink всегда отказывает в записи
type brokenSink struct{}

func (b *brokenSink) WriteResult(result MatchResult) error {
	return errors.New("disk full")
}

func newTestPipeline(t *testing.T, selector CompanySelector, sink ResultSink, threshold int) *Pipeline {
	t.Helper()
	analyzer := NewAssetAnalyzer(testRegistry())
	p, err := NewPipeline(analyzer, selector, PipelineConfig{
		Threshold: threshold,
		Sink:      sink,
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestPipelineEndToEnd(t *testing.T) {
	selector := &firstCandidateSelector{}
	sink := &collectSink{}
	p := newTestPipeline(t, selector, sink, DefaultMatchThreshold)

	records := []AssetRecord{
		{Name: "Acme Plant (Alpha)!", OwnershipName: "Acme Corporation", Country: "United States"},
	}

	summary, err := p.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.TotalRecords != 1 || summary.Resolved != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sink.results))
	}

	result := sink.results[0]
	if result.SelectedCompany != "Acme Corporation" {
		t.Errorf("unexpected selection: %q", result.SelectedCompany)
	}
	if result.ISIN != "US0378331005" || !result.ISINValid {
		t.Errorf("unexpected ISIN: %q (valid=%t)", result.ISIN, result.ISINValid)
	}
	// В результат попадает исходная запись, не нормализованная
	if result.Record.Name != "Acme Plant (Alpha)!" {
		t.Errorf("expected original record in result, got %q", result.Record.Name)
	}
}

func TestPipelineEmptyShortlistSkipsSelector(t *testing.T) {
	selector := &firstCandidateSelector{}
	sink := &collectSink{}
	p := newTestPipeline(t, selector, sink, DefaultMatchThreshold)

	records := []AssetRecord{
		{Name: "zzz", OwnershipName: "qqq", Country: "www"},
	}

	summary, err := p.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if selector.calls != 0 {
		t.Errorf("selector must not be called for empty shortlist, got %d calls", selector.calls)
	}
	if summary.EmptyShortlists != 1 {
		t.Errorf("expected 1 empty shortlist, got %d", summary.EmptyShortlists)
	}
	// Результат все равно записан
	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sink.results))
	}
	if len(sink.results[0].Shortlist) != 0 || sink.results[0].SelectedCompany != "" {
		t.Errorf("unexpected result: %+v", sink.results[0])
	}
}

func TestPipelineSelectorErrorAbsorbed(t *testing.T) {
	sink := &collectSink{}
	p := newTestPipeline(t, &failingSelector{}, sink, DefaultMatchThreshold)

	records := []AssetRecord{
		{Name: "Acme Corporation"},
		{Name: "Beta Industries"},
	}

	// Ошибка оракула на записи не прерывает прогон
	summary, err := p.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.SelectionFailed != 2 {
		t.Errorf("expected 2 selection failures, got %d", summary.SelectionFailed)
	}
	if len(sink.results) != 2 {
		t.Errorf("expected 2 results despite failures, got %d", len(sink.results))
	}
	for _, r := range sink.results {
		if r.SelectedCompany != "" || r.ISIN != "" {
			t.Errorf("expected empty selection, got %+v", r)
		}
		if len(r.Shortlist) == 0 {
			t.Errorf("shortlist must be preserved on selection failure: %+v", r)
		}
	}
}

func TestPipelineResolutionMiss(t *testing.T) {
	// Селектор возвращает компанию вне реестра
	selector := &staticSelector{company: "Unknown GmbH"}
	sink := &collectSink{}
	p := newTestPipeline(t, selector, sink, DefaultMatchThreshold)

	summary, err := p.Run(context.Background(), []AssetRecord{{Name: "Acme Corporation"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.ResolutionMisses != 1 {
		t.Errorf("expected 1 resolution miss, got %d", summary.ResolutionMisses)
	}
	if sink.results[0].SelectedCompany != "Unknown GmbH" || sink.results[0].ISIN != "" {
		t.Errorf("unexpected result: %+v", sink.results[0])
	}
}

type staticSelector struct {
	company string
}

func (s *staticSelector) SelectCompany(ctx context.Context, record AssetRecord, shortlist []string) (string, error) {
	return s.company, nil
}

func TestPipelineSinkErrorFatal(t *testing.T) {
	p := newTestPipeline(t, &firstCandidateSelector{}, &brokenSink{}, DefaultMatchThreshold)

	_, err := p.Run(context.Background(), []AssetRecord{{Name: "Acme Corporation"}})
	if err == nil {
		t.Fatal("expected fatal error when sink fails")
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	sink := &collectSink{}
	p := newTestPipeline(t, &firstCandidateSelector{}, sink, DefaultMatchThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []AssetRecord{{Name: "Acme Corporation"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(sink.results) != 0 {
		t.Errorf("expected no results after immediate cancel, got %d", len(sink.results))
	}
}

func TestPipelineInvalidConfig(t *testing.T) {
	analyzer := NewAssetAnalyzer(testRegistry())

	if _, err := NewPipeline(nil, &firstCandidateSelector{}, PipelineConfig{Sink: &collectSink{}}); err == nil {
		t.Error("expected error for nil analyzer")
	}
	if _, err := NewPipeline(analyzer, &firstCandidateSelector{}, PipelineConfig{}); err == nil {
		t.Error("expected error for missing sink")
	}
	if _, err := NewPipeline(analyzer, &firstCandidateSelector{}, PipelineConfig{Sink: &collectSink{}, Threshold: 101}); err == nil {
		t.Error("expected error for threshold above 100")
	}
	if _, err := NewPipeline(analyzer, &firstCandidateSelector{}, PipelineConfig{Sink: &collectSink{}, Threshold: -1}); err == nil {
		t.Error("expected error for negative threshold")
	}
}

func TestPipelineSessionPersistence(t *testing.T) {
	db, err := database.NewServiceDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	analyzer := NewAssetAnalyzer(testRegistry())
	sink := &collectSink{}
	p, err := NewPipeline(analyzer, &firstCandidateSelector{}, PipelineConfig{
		Threshold: DefaultMatchThreshold,
		Sink:      sink,
		ServiceDB: db,
		Source:    "unit-test",
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	summary, err := p.Run(context.Background(), []AssetRecord{
		{Name: "Acme Corporation", Country: "United States"},
		{Name: "zzz", OwnershipName: "qqq"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sessions, err := db.GetMatchSessions(10)
	if err != nil {
		t.Fatalf("GetMatchSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SessionUID != summary.SessionUID {
		t.Errorf("session UID mismatch: %q != %q", sessions[0].SessionUID, summary.SessionUID)
	}
	if sessions[0].Status != "completed" {
		t.Errorf("expected completed session, got %q", sessions[0].Status)
	}

	rows, err := db.GetSessionResults(sessions[0].ID)
	if err != nil {
		t.Fatalf("GetSessionResults failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 persisted results, got %d", len(rows))
	}
	if rows[0].ISIN != "US0378331005" {
		t.Errorf("unexpected persisted ISIN: %q", rows[0].ISIN)
	}
}
