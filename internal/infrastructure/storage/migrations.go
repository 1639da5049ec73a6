package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_reconcile_runs_table",
		Up:      migration002AddReconcileRunsTable,
	},
	{
		Version: 3,
		Name:    "add_candidate_indexes",
		Up:      migration003AddCandidateIndexes,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	// Ensure migrations table exists
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Run pending migrations
	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		// Record migration
		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates the obligations and bank_transactions tables
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		// Outstanding payment obligations (rent installments etc.)
		// Amounts are decimal strings; REAL is never used for money.
		`CREATE TABLE IF NOT EXISTS obligations (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			party_name TEXT NOT NULL,
			amount TEXT NOT NULL,
			due_date TIMESTAMP NOT NULL,
			period_label TEXT DEFAULT '',
			reference_label TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			payment_date TIMESTAMP,
			payment_method TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Incoming bank-feed transactions awaiting classification
		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			description TEXT DEFAULT '',
			counterparty_name TEXT DEFAULT '',
			review_status TEXT NOT NULL DEFAULT 'pending_review',
			match_score INTEGER,
			matched_obligation_id TEXT,
			matched_by TEXT DEFAULT '',
			matched_at TIMESTAMP,
			notes TEXT DEFAULT '',
			suggestion_json TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddReconcileRunsTable creates the reconcile_runs table
func migration002AddReconcileRunsTable(db *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS reconcile_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		batch_limit INTEGER,
		processed INTEGER DEFAULT 0,
		auto_matched INTEGER DEFAULT 0,
		suggested INTEGER DEFAULT 0,
		status TEXT DEFAULT 'running',
		error TEXT
	)`

	_, err := db.Exec(query)
	return err
}

// migration003AddCandidateIndexes adds indexes for the candidate queries
func migration003AddCandidateIndexes(db *sql.Tx) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_obligations_company_status
		 ON obligations(company_id, status)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_company_review
		 ON bank_transactions(company_id, review_status)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_date
		 ON bank_transactions(date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}
