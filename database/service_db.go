package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entity строка реестра компаний: каноничное название и идентифицирующий код (ISIN).
// Дополнительные колонки (country, sector) не участвуют в сопоставлении,
// но сохраняются для отчетов.
type Entity struct {
	ID          int    `json:"id"`
	CompanyName string `json:"company_name"`
	ISIN        string `json:"isin"`
	Country     string `json:"country,omitempty"`
	Sector      string `json:"sector,omitempty"`
	SourceFile  string `json:"source_file,omitempty"`
}

// MatchSession прогон сопоставления активов с реестром
type MatchSession struct {
	ID           int        `json:"id"`
	SessionUID   string     `json:"session_uid"`
	Source       string     `json:"source,omitempty"`
	Threshold    int        `json:"threshold"`
	TotalRecords int        `json:"total_records"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
}

// MatchResultRow сохраненный результат сопоставления одного актива
type MatchResultRow struct {
	ID              int       `json:"id"`
	SessionID       int       `json:"session_id"`
	AssetName       string    `json:"asset_name"`
	AssetOwnership  string    `json:"asset_ownership"`
	AssetCountry    string    `json:"asset_country"`
	Shortlist       string    `json:"shortlist"`
	SelectedCompany string    `json:"selected_company"`
	ISIN            string    `json:"isin"`
	ISINValid       bool      `json:"isin_valid"`
	CreatedAt       time.Time `json:"created_at"`
}

// DBConfig конфигурация пула соединений
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultDBConfig возвращает конфигурацию пула по умолчанию
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ServiceDB обертка над SQLite базой сервиса сопоставления
type ServiceDB struct {
	db *sql.DB
}

// NewServiceDB открывает сервисную БД и выполняет миграции
func NewServiceDB(path string) (*ServiceDB, error) {
	return NewServiceDBWithConfig(path, DefaultDBConfig())
}

// NewServiceDBWithConfig открывает сервисную БД с настройками пула соединений
func NewServiceDBWithConfig(path string, cfg DBConfig) (*ServiceDB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &ServiceDB{db: db}, nil
}

// Close закрывает соединение с БД
func (s *ServiceDB) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность БД (для health check)
func (s *ServiceDB) Ping() error {
	return s.db.Ping()
}

// ===================== Entities =====================

// InsertEntity добавляет одну компанию в реестр
func (s *ServiceDB) InsertEntity(e Entity) (int, error) {
	result, err := s.db.Exec(
		`INSERT INTO entities (company_name, isin, country, sector, source_file) VALUES (?, ?, ?, ?, ?)`,
		e.CompanyName, e.ISIN, e.Country, e.Sector, e.SourceFile,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entity %q: %w", e.CompanyName, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get entity id: %w", err)
	}
	return int(id), nil
}

// InsertEntities добавляет компании в реестр одной транзакцией
func (s *ServiceDB) InsertEntities(entities []Entity) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO entities (company_name, isin, country, sector, source_file) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entities {
		if e.CompanyName == "" {
			continue
		}
		if _, err := stmt.Exec(e.CompanyName, e.ISIN, e.Country, e.Sector, e.SourceFile); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert entity %q: %w", e.CompanyName, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit entities: %w", err)
	}

	log.Printf("Inserted %d entities into registry", inserted)
	return inserted, nil
}

// GetEntities возвращает весь реестр в порядке загрузки
func (s *ServiceDB) GetEntities() ([]Entity, error) {
	rows, err := s.db.Query(`SELECT id, company_name, isin, COALESCE(country, ''), COALESCE(sector, ''), COALESCE(source_file, '') FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.CompanyName, &e.ISIN, &e.Country, &e.Sector, &e.SourceFile); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

// CountEntities возвращает количество компаний в реестре
func (s *ServiceDB) CountEntities() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

// ClearEntities удаляет весь реестр (перед повторным импортом)
func (s *ServiceDB) ClearEntities() error {
	if _, err := s.db.Exec(`DELETE FROM entities`); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	return nil
}

// FindISINByCompanyName ищет ISIN по точному совпадению названия без учета регистра.
// При нескольких совпадениях возвращается первая строка в порядке загрузки реестра.
func (s *ServiceDB) FindISINByCompanyName(companyName string) (string, error) {
	var isin string
	err := s.db.QueryRow(
		`SELECT isin FROM entities WHERE LOWER(company_name) = LOWER(?) ORDER BY id LIMIT 1`,
		companyName,
	).Scan(&isin)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up ISIN for %q: %w", companyName, err)
	}
	return isin, nil
}

// ===================== Sessions =====================

// CreateMatchSession создает новую сессию сопоставления
func (s *ServiceDB) CreateMatchSession(sessionUID, source string, threshold, totalRecords int) (*MatchSession, error) {
	result, err := s.db.Exec(
		`INSERT INTO match_sessions (session_uid, source, threshold, total_records, status) VALUES (?, ?, ?, ?, 'running')`,
		sessionUID, source, threshold, totalRecords,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create match session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get session id: %w", err)
	}

	return &MatchSession{
		ID:           int(id),
		SessionUID:   sessionUID,
		Source:       source,
		Threshold:    threshold,
		TotalRecords: totalRecords,
		StartedAt:    time.Now(),
		Status:       "running",
	}, nil
}

// FinishMatchSession помечает сессию завершенной с указанным статусом
func (s *ServiceDB) FinishMatchSession(sessionID int, status string) error {
	switch status {
	case "completed", "failed", "stopped":
	default:
		return fmt.Errorf("invalid session status: %s", status)
	}

	_, err := s.db.Exec(
		`UPDATE match_sessions SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session %d: %w", sessionID, err)
	}
	return nil
}

// GetMatchSessions возвращает сессии, новые первыми
func (s *ServiceDB) GetMatchSessions(limit int) ([]MatchSession, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_uid, COALESCE(source, ''), threshold, total_records, started_at, finished_at, status
		 FROM match_sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []MatchSession
	for rows.Next() {
		var sess MatchSession
		var finished sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.SessionUID, &sess.Source, &sess.Threshold,
			&sess.TotalRecords, &sess.StartedAt, &finished, &sess.Status); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if finished.Valid {
			sess.FinishedAt = &finished.Time
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// ===================== Results =====================

// InsertMatchResult сохраняет результат одного актива.
// Вызывается после обработки каждой записи, чтобы частичный прогресс
// переживал аварийное завершение прогона.
func (s *ServiceDB) InsertMatchResult(r MatchResultRow) (int, error) {
	result, err := s.db.Exec(
		`INSERT INTO match_results (session_id, asset_name, asset_ownership, asset_country, shortlist, selected_company, isin, isin_valid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.AssetName, r.AssetOwnership, r.AssetCountry,
		r.Shortlist, r.SelectedCompany, r.ISIN, boolToInt(r.ISINValid),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert match result for %q: %w", r.AssetName, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get result id: %w", err)
	}
	return int(id), nil
}

// GetSessionResults возвращает результаты сессии в порядке обработки
func (s *ServiceDB) GetSessionResults(sessionID int) ([]MatchResultRow, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, asset_name, COALESCE(asset_ownership, ''), COALESCE(asset_country, ''),
		        COALESCE(shortlist, ''), COALESCE(selected_company, ''), COALESCE(isin, ''), isin_valid, created_at
		 FROM match_results WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var results []MatchResultRow
	for rows.Next() {
		var r MatchResultRow
		var valid int
		if err := rows.Scan(&r.ID, &r.SessionID, &r.AssetName, &r.AssetOwnership, &r.AssetCountry,
			&r.Shortlist, &r.SelectedCompany, &r.ISIN, &valid, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.ISINValid = valid != 0
		results = append(results, r)
	}

	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
