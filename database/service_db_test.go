package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *ServiceDB {
	t.Helper()
	db, err := NewServiceDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndGetEntities(t *testing.T) {
	db := openTestDB(t)

	inserted, err := db.InsertEntities([]Entity{
		{CompanyName: "Acme Corporation", ISIN: "US0378331005", Country: "United States"},
		{CompanyName: "Beta Industries", ISIN: "GB0002634946"},
		{CompanyName: "", ISIN: "XX0000000000"}, // пустое имя пропускается
	})
	if err != nil {
		t.Fatalf("InsertEntities failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", inserted)
	}

	entities, err := db.GetEntities()
	if err != nil {
		t.Fatalf("GetEntities failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	// Порядок загрузки сохраняется
	if entities[0].CompanyName != "Acme Corporation" || entities[1].CompanyName != "Beta Industries" {
		t.Errorf("unexpected order: %v", entities)
	}

	count, err := db.CountEntities()
	if err != nil || count != 2 {
		t.Errorf("CountEntities = %d, %v", count, err)
	}
}

func TestClearEntities(t *testing.T) {
	db := openTestDB(t)

	db.InsertEntity(Entity{CompanyName: "Acme Corporation", ISIN: "US0378331005"})
	if err := db.ClearEntities(); err != nil {
		t.Fatalf("ClearEntities failed: %v", err)
	}

	count, _ := db.CountEntities()
	if count != 0 {
		t.Errorf("expected empty registry, got %d", count)
	}
}

func TestFindISINByCompanyName(t *testing.T) {
	db := openTestDB(t)

	db.InsertEntities([]Entity{
		{CompanyName: "Acme Corporation", ISIN: "US0000000001"},
		{CompanyName: "ACME CORPORATION", ISIN: "US0000000002"},
	})

	// Без учета регистра, при дубликатах первая строка
	isin, err := db.FindISINByCompanyName("acme corporation")
	if err != nil {
		t.Fatalf("FindISINByCompanyName failed: %v", err)
	}
	if isin != "US0000000001" {
		t.Errorf("expected first row ISIN, got %q", isin)
	}

	// Промах возвращает пустую строку без ошибки
	isin, err = db.FindISINByCompanyName("Unknown GmbH")
	if err != nil {
		t.Fatalf("unexpected error on miss: %v", err)
	}
	if isin != "" {
		t.Errorf("expected empty ISIN on miss, got %q", isin)
	}
}

func TestMatchSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	session, err := db.CreateMatchSession("uid-123", "test.csv", 60, 10)
	if err != nil {
		t.Fatalf("CreateMatchSession failed: %v", err)
	}
	if session.Status != "running" {
		t.Errorf("expected running status, got %q", session.Status)
	}

	if err := db.FinishMatchSession(session.ID, "bogus"); err == nil {
		t.Error("expected error for invalid status")
	}
	if err := db.FinishMatchSession(session.ID, "completed"); err != nil {
		t.Fatalf("FinishMatchSession failed: %v", err)
	}

	sessions, err := db.GetMatchSessions(10)
	if err != nil {
		t.Fatalf("GetMatchSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Status != "completed" || sessions[0].FinishedAt == nil {
		t.Errorf("unexpected session state: %+v", sessions[0])
	}
	if sessions[0].Threshold != 60 || sessions[0].TotalRecords != 10 {
		t.Errorf("unexpected session fields: %+v", sessions[0])
	}
}

func TestMatchSessionUIDUnique(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.CreateMatchSession("uid-123", "", 60, 1); err != nil {
		t.Fatalf("CreateMatchSession failed: %v", err)
	}
	if _, err := db.CreateMatchSession("uid-123", "", 60, 1); err == nil {
		t.Error("expected error for duplicate session UID")
	}
}

func TestInsertAndGetMatchResults(t *testing.T) {
	db := openTestDB(t)

	session, err := db.CreateMatchSession("uid-123", "", 60, 2)
	if err != nil {
		t.Fatalf("CreateMatchSession failed: %v", err)
	}

	rows := []MatchResultRow{
		{
			SessionID:       session.ID,
			AssetName:       "Acme Plant Alpha",
			AssetOwnership:  "Acme Corporation",
			AssetCountry:    "United States",
			Shortlist:       `["Acme Corporation"]`,
			SelectedCompany: "Acme Corporation",
			ISIN:            "US0378331005",
			ISINValid:       true,
		},
		{
			SessionID: session.ID,
			AssetName: "Unmatched Mine",
			Shortlist: `[]`,
		},
	}
	for _, r := range rows {
		if _, err := db.InsertMatchResult(r); err != nil {
			t.Fatalf("InsertMatchResult failed: %v", err)
		}
	}

	results, err := db.GetSessionResults(session.ID)
	if err != nil {
		t.Fatalf("GetSessionResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ISIN != "US0378331005" || !results[0].ISINValid {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].SelectedCompany != "" || results[1].ISINValid {
		t.Errorf("unexpected second result: %+v", results[1])
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Повторное открытие той же БД перезапускает миграции без ошибок
	for i := 0; i < 2; i++ {
		db, err := NewServiceDB(path)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		db.Close()
	}
}
