package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Storage provides SQLite database access for obligations and bank
// transactions. It implements the Repository interface.
//
// Amounts are stored as decimal strings, never REAL, so tolerance math
// on read-back is exact.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ----------------------------------------------------------------
// Transactions
// ----------------------------------------------------------------

const transactionColumns = `id, company_id, amount, date, description, counterparty_name,
	review_status, match_score, matched_obligation_id, matched_by, matched_at,
	notes, suggestion_json, created_at`

// SaveTransaction inserts or updates a bank transaction. An empty ID gets
// a generated one; bank feeds that carry their own reference keep it.
func (s *Storage) SaveTransaction(tx *BankTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Suggestion != nil && tx.SuggestionJSON == "" {
		if err := tx.SetSuggestion(tx.Suggestion); err != nil {
			return fmt.Errorf("failed to encode suggestion: %w", err)
		}
	}

	query := `
	INSERT OR REPLACE INTO bank_transactions
	(id, company_id, amount, date, description, counterparty_name,
	 review_status, match_score, matched_obligation_id, matched_by, matched_at,
	 notes, suggestion_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`

	_, err := s.db.Exec(query,
		tx.ID,
		tx.CompanyID,
		tx.Amount.String(),
		tx.Date,
		tx.Description,
		tx.CounterpartyName,
		string(tx.ReviewStatus),
		nullableInt(tx.MatchScore),
		nullableString(tx.MatchedObligationID),
		tx.MatchedBy,
		nullableTime(tx.MatchedAt),
		tx.Notes,
		tx.SuggestionJSON,
		nullableNonZeroTime(tx.CreatedAt),
	)

	return err
}

// GetTransaction retrieves a transaction by ID
func (s *Storage) GetTransaction(id string) (*BankTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions WHERE id = ?`

	tx, err := scanTransaction(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListCandidateTransactions returns positive, pending_review transactions
// for a company ordered by date descending, capped at limit.
func (s *Storage) ListCandidateTransactions(companyID string, limit int) ([]*BankTransaction, error) {
	query := `
	SELECT ` + transactionColumns + `
	FROM bank_transactions
	WHERE company_id = ?
	  AND review_status = ?
	  AND CAST(amount AS REAL) > 0
	ORDER BY date DESC, id ASC
	LIMIT ?
	`

	rows, err := s.db.Query(query, companyID, string(ReviewPending), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*BankTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}

	return result, rows.Err()
}

// ListTransactions returns transactions matching the filters with pagination
func (s *Storage) ListTransactions(filters TransactionFilters) (*TransactionListResult, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filters.CompanyID != "" {
		where += " AND company_id = ?"
		args = append(args, filters.CompanyID)
	}
	if filters.ReviewStatus != "" {
		where += " AND review_status = ?"
		args = append(args, filters.ReviewStatus)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM bank_transactions " + where
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + transactionColumns + " FROM bank_transactions " + where +
		" ORDER BY date DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &TransactionListResult{
		Transactions: []*BankTransaction{},
		TotalCount:   total,
		Limit:        limit,
		Offset:       filters.Offset,
	}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, tx)
	}

	return result, rows.Err()
}

// CommitMatchPair atomically marks the transaction matched and the obligation
// paid. The obligation write is a compare-and-set: if its status moved off
// pending since it was read, nothing is written and ErrObligationClaimed is
// returned.
func (s *Storage) CommitMatchPair(commit MatchCommit) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}

	res, err := dbTx.Exec(`
		UPDATE obligations
		SET status = ?, payment_date = ?, payment_method = 'bank-transfer'
		WHERE id = ? AND status = ?
	`, string(ObligationPaid), commit.PaymentDate, commit.ObligationID, string(ObligationPending))
	if err != nil {
		_ = dbTx.Rollback()
		return fmt.Errorf("failed to update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = dbTx.Rollback()
		return ErrObligationClaimed
	}

	res, err = dbTx.Exec(`
		UPDATE bank_transactions
		SET review_status = ?, matched_obligation_id = ?, match_score = ?,
		    matched_by = ?, matched_at = ?, notes = ?, suggestion_json = ''
		WHERE id = ? AND review_status = ?
	`, string(ReviewMatched), commit.ObligationID, commit.Score,
		commit.MatchedBy, commit.MatchedAt, commit.Notes,
		commit.TransactionID, string(ReviewPending))
	if err != nil {
		_ = dbTx.Rollback()
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = dbTx.Rollback()
		return ErrTransactionNotPending
	}

	return dbTx.Commit()
}

// AnnotateSuggestion records a score and suggestion payload on a pending
// transaction. No obligation is touched.
func (s *Storage) AnnotateSuggestion(transactionID string, score int, suggestion *MatchSuggestion) error {
	holder := &BankTransaction{}
	if err := holder.SetSuggestion(suggestion); err != nil {
		return fmt.Errorf("failed to encode suggestion: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE bank_transactions
		SET match_score = ?, suggestion_json = ?
		WHERE id = ? AND review_status = ?
	`, score, holder.SuggestionJSON, transactionID, string(ReviewPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotPending
	}
	return nil
}

// ClearSuggestion removes a previously recorded suggestion
func (s *Storage) ClearSuggestion(transactionID string) error {
	res, err := s.db.Exec(`
		UPDATE bank_transactions
		SET match_score = NULL, suggestion_json = ''
		WHERE id = ? AND review_status = ?
	`, transactionID, string(ReviewPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotPending
	}
	return nil
}

// GetStats returns aggregate statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{MatchedAmount: decimal.Zero}

	query := `
	SELECT
		COUNT(CASE WHEN review_status = 'pending_review' THEN 1 END) as pending,
		COUNT(CASE WHEN review_status = 'matched' THEN 1 END) as matched,
		COUNT(CASE WHEN review_status = 'pending_review' AND suggestion_json != '' THEN 1 END) as suggested
	FROM bank_transactions
	`
	err := s.db.QueryRow(query).Scan(
		&stats.PendingTransactions,
		&stats.MatchedTransactions,
		&stats.SuggestedCount,
	)
	if err != nil {
		return nil, err
	}

	obQuery := `
	SELECT
		COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending,
		COUNT(CASE WHEN status = 'paid' THEN 1 END) as paid
	FROM obligations
	`
	if err := s.db.QueryRow(obQuery).Scan(&stats.PendingObligations, &stats.PaidObligations); err != nil {
		return nil, err
	}

	// Sum matched amounts in decimal, not SQL REAL
	rows, err := s.db.Query(`SELECT amount FROM bank_transactions WHERE review_status = 'matched'`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", raw, err)
		}
		stats.MatchedAmount = stats.MatchedAmount.Add(amount)
	}

	return stats, rows.Err()
}

// ----------------------------------------------------------------
// Obligations
// ----------------------------------------------------------------

const obligationColumns = `id, company_id, party_name, amount, due_date,
	period_label, reference_label, status, payment_date, payment_method, created_at`

// SaveObligation inserts or updates an obligation
func (s *Storage) SaveObligation(ob *Obligation) error {
	if ob.ID == "" {
		ob.ID = uuid.NewString()
	}

	query := `
	INSERT OR REPLACE INTO obligations
	(id, company_id, party_name, amount, due_date, period_label,
	 reference_label, status, payment_date, payment_method, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`

	_, err := s.db.Exec(query,
		ob.ID,
		ob.CompanyID,
		ob.PartyName,
		ob.Amount.String(),
		ob.DueDate,
		ob.PeriodLabel,
		ob.ReferenceLabel,
		string(ob.Status),
		nullableTime(ob.PaymentDate),
		ob.PaymentMethod,
		nullableNonZeroTime(ob.CreatedAt),
	)

	return err
}

// GetObligation retrieves an obligation by ID
func (s *Storage) GetObligation(id string) (*Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = ?`

	ob, err := scanObligation(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ob, err
}

// ListPendingObligations returns all pending obligations for a company
func (s *Storage) ListPendingObligations(companyID string) ([]*Obligation, error) {
	query := `
	SELECT ` + obligationColumns + `
	FROM obligations
	WHERE company_id = ? AND status = ?
	ORDER BY due_date ASC, id ASC
	`

	rows, err := s.db.Query(query, companyID, string(ObligationPending))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ob)
	}

	return result, rows.Err()
}

// ListObligations returns obligations matching the filters with pagination
func (s *Storage) ListObligations(filters ObligationFilters) (*ObligationListResult, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filters.CompanyID != "" {
		where += " AND company_id = ?"
		args = append(args, filters.CompanyID)
	}
	if filters.Status != "" {
		where += " AND status = ?"
		args = append(args, filters.Status)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM obligations "+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + obligationColumns + " FROM obligations " + where +
		" ORDER BY due_date ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &ObligationListResult{
		Obligations: []*Obligation{},
		TotalCount:  total,
		Limit:       limit,
		Offset:      filters.Offset,
	}
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		result.Obligations = append(result.Obligations, ob)
	}

	return result, rows.Err()
}

// ----------------------------------------------------------------
// Runs
// ----------------------------------------------------------------

// StartRun records the start of a reconciliation run
func (s *Storage) StartRun(companyID string, batchLimit int) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO reconcile_runs (company_id, batch_limit, status)
		VALUES (?, ?, 'running')
	`, companyID, batchLimit)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// CompleteRun records the completion of a run
func (s *Storage) CompleteRun(runID int64, processed, autoMatched, suggested int) error {
	_, err := s.db.Exec(`
		UPDATE reconcile_runs
		SET completed_at = CURRENT_TIMESTAMP, processed = ?, auto_matched = ?,
		    suggested = ?, status = 'completed'
		WHERE id = ?
	`, processed, autoMatched, suggested, runID)
	return err
}

// FailRun marks a run as failed with a reason
func (s *Storage) FailRun(runID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE reconcile_runs
		SET completed_at = CURRENT_TIMESTAMP, status = 'failed', error = ?
		WHERE id = ?
	`, reason, runID)
	return err
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, company_id, started_at, COALESCE(completed_at, ''),
		       batch_limit, processed, auto_matched, suggested, status, COALESCE(error, '')
		FROM reconcile_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []ReconcileRun
	for rows.Next() {
		var run ReconcileRun
		if err := rows.Scan(&run.ID, &run.CompanyID, &run.StartedAt, &run.CompletedAt,
			&run.BatchLimit, &run.Processed, &run.AutoMatched, &run.Suggested,
			&run.Status, &run.Error); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID int64) (*ReconcileRun, error) {
	run := &ReconcileRun{}
	err := s.db.QueryRow(`
		SELECT id, company_id, started_at, COALESCE(completed_at, ''),
		       batch_limit, processed, auto_matched, suggested, status, COALESCE(error, '')
		FROM reconcile_runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.CompanyID, &run.StartedAt, &run.CompletedAt,
		&run.BatchLimit, &run.Processed, &run.AutoMatched, &run.Suggested,
		&run.Status, &run.Error)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ----------------------------------------------------------------
// Scan helpers
// ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*BankTransaction, error) {
	tx := &BankTransaction{}
	var (
		amountRaw    string
		reviewStatus string
		score        sql.NullInt64
		obligationID sql.NullString
		matchedBy    sql.NullString
		matchedAt    sql.NullTime
		notes        sql.NullString
		suggestion   sql.NullString
	)

	err := row.Scan(
		&tx.ID,
		&tx.CompanyID,
		&amountRaw,
		&tx.Date,
		&tx.Description,
		&tx.CounterpartyName,
		&reviewStatus,
		&score,
		&obligationID,
		&matchedBy,
		&matchedAt,
		&notes,
		&suggestion,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amountRaw, err)
	}
	tx.Amount = amount
	tx.ReviewStatus = ReviewStatus(reviewStatus)

	if score.Valid {
		v := int(score.Int64)
		tx.MatchScore = &v
	}
	if obligationID.Valid && obligationID.String != "" {
		v := obligationID.String
		tx.MatchedObligationID = &v
	}
	if matchedBy.Valid {
		tx.MatchedBy = matchedBy.String
	}
	if matchedAt.Valid {
		v := matchedAt.Time
		tx.MatchedAt = &v
	}
	if notes.Valid {
		tx.Notes = notes.String
	}
	if suggestion.Valid {
		tx.SuggestionJSON = suggestion.String
	}
	if err := tx.decodeSuggestion(); err != nil {
		return nil, fmt.Errorf("corrupt suggestion payload: %w", err)
	}

	return tx, nil
}

func scanObligation(row rowScanner) (*Obligation, error) {
	ob := &Obligation{}
	var (
		amountRaw     string
		status        string
		paymentDate   sql.NullTime
		paymentMethod sql.NullString
	)

	err := row.Scan(
		&ob.ID,
		&ob.CompanyID,
		&ob.PartyName,
		&amountRaw,
		&ob.DueDate,
		&ob.PeriodLabel,
		&ob.ReferenceLabel,
		&status,
		&paymentDate,
		&paymentMethod,
		&ob.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amountRaw, err)
	}
	ob.Amount = amount
	ob.Status = ObligationStatus(status)

	if paymentDate.Valid {
		v := paymentDate.Time
		ob.PaymentDate = &v
	}
	if paymentMethod.Valid {
		ob.PaymentMethod = paymentMethod.String
	}

	return ob, nil
}

// ----------------------------------------------------------------
// Null helpers
// ----------------------------------------------------------------

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullableNonZeroTime lets CURRENT_TIMESTAMP fill created_at on insert
// while preserving explicit values on upsert.
func nullableNonZeroTime(v time.Time) interface{} {
	if v.IsZero() {
		return nil
	}
	return v
}
