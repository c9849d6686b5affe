package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// MigrateEntities создает таблицу entities (реестр компаний с ISIN кодами)
func MigrateEntities(db *sql.DB) error {
	log.Println("Running migration: creating entities table...")

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company_name TEXT NOT NULL,
			isin TEXT NOT NULL,
			country TEXT,
			sector TEXT,
			source_file TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`

	_, err := db.Exec(createTableSQL)
	if err != nil {
		errStr := strings.ToLower(err.Error())
		if !strings.Contains(errStr, "already exists") {
			return fmt.Errorf("failed to create entities table: %w", err)
		}
		log.Println("Table entities already exists, skipping creation")
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_entities_company_name ON entities(company_name)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_company_name_lower ON entities(LOWER(company_name))`,
		`CREATE INDEX IF NOT EXISTS idx_entities_isin ON entities(isin)`,
	}

	successCount := 0
	for _, indexSQL := range indexes {
		_, err := db.Exec(indexSQL)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if !strings.Contains(errStr, "duplicate index") && !strings.Contains(errStr, "already exists") {
				return fmt.Errorf("failed to create index: %w - %s", err, indexSQL)
			}
		} else {
			successCount++
		}
	}

	log.Printf("Entities migration completed: table and %d indexes created", successCount)
	return nil
}

// MigrateMatchSessions создает таблицу match_sessions для отслеживания прогонов сопоставления
func MigrateMatchSessions(db *sql.DB) error {
	log.Println("Running migration: creating match_sessions table...")

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS match_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_uid TEXT NOT NULL UNIQUE,
			source TEXT,
			threshold INTEGER NOT NULL DEFAULT 60,
			total_records INTEGER DEFAULT 0,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP,
			status TEXT CHECK(status IN ('running', 'completed', 'failed', 'stopped')) DEFAULT 'running',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`

	_, err := db.Exec(createTableSQL)
	if err != nil {
		errStr := strings.ToLower(err.Error())
		if !strings.Contains(errStr, "already exists") {
			return fmt.Errorf("failed to create match_sessions table: %w", err)
		}
		log.Println("Table match_sessions already exists, skipping creation")
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_match_sessions_session_uid ON match_sessions(session_uid)`,
		`CREATE INDEX IF NOT EXISTS idx_match_sessions_status ON match_sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_match_sessions_started_at ON match_sessions(started_at)`,
	}

	for _, indexSQL := range indexes {
		_, err := db.Exec(indexSQL)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if !strings.Contains(errStr, "duplicate index") && !strings.Contains(errStr, "already exists") {
				return fmt.Errorf("failed to create index: %w - %s", err, indexSQL)
			}
		}
	}

	log.Println("Match sessions migration completed")
	return nil
}

// MigrateMatchResults создает таблицу match_results (результат для каждого актива, запись по мере обработки)
func MigrateMatchResults(db *sql.DB) error {
	log.Println("Running migration: creating match_results table...")

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS match_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			asset_name TEXT NOT NULL,
			asset_ownership TEXT,
			asset_country TEXT,
			shortlist TEXT,
			selected_company TEXT,
			isin TEXT,
			isin_valid INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES match_sessions(id) ON DELETE CASCADE
		)
	`

	_, err := db.Exec(createTableSQL)
	if err != nil {
		errStr := strings.ToLower(err.Error())
		if !strings.Contains(errStr, "already exists") {
			return fmt.Errorf("failed to create match_results table: %w", err)
		}
		log.Println("Table match_results already exists, skipping creation")
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_match_results_session_id ON match_results(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_results_isin ON match_results(isin)`,
		`CREATE INDEX IF NOT EXISTS idx_match_results_created_at ON match_results(created_at)`,
	}

	for _, indexSQL := range indexes {
		_, err := db.Exec(indexSQL)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if !strings.Contains(errStr, "duplicate index") && !strings.Contains(errStr, "already exists") {
				return fmt.Errorf("failed to create index: %w - %s", err, indexSQL)
			}
		}
	}

	log.Println("Match results migration completed")
	return nil
}

// RunMigrations выполняет все миграции в нужном порядке
func RunMigrations(db *sql.DB) error {
	migrations := []func(*sql.DB) error{
		MigrateEntities,
		MigrateMatchSessions,
		MigrateMatchResults,
	}

	for _, migrate := range migrations {
		if err := migrate(db); err != nil {
			return err
		}
	}

	return nil
}
