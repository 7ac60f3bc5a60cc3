/*
Package sqlite provides a SQLite-backed implementation of the engine stores.

PURPOSE:
  Implements engine.TxStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  assignments:         one client x secretary x rank pairing per target month
  work_records:        logged work units owned by assignments
  client_invoices:     materialized client-side monthly settlement snapshots
  secretary_summaries: materialized secretary-side monthly snapshots
  clients/secretaries/ranks: reference data

INVARIANTS ENFORCED HERE:
  - idx_assignments_active_key: among non-deleted rows,
    (client, secretary, rank, month) is unique. Two concurrent
    materializations of the same carryover candidate cannot both succeed;
    the loser gets engine.ErrDuplicateAssignment.
  - client_invoices / secretary_summaries are UNIQUE per (subject, month) and
    written with ON CONFLICT DO UPDATE, so the existing row identity is
    reused and re-running settlement is idempotent.

SOFT DELETION:
  Assignments and work records carry deleted_at. Every query here filters
  "deleted_at IS NULL" once, at this boundary.

MONTH FORMAT:
  target_month columns hold the literal "YYYY-MM" string; lexicographic
  comparison in SQL is chronological comparison.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; transactional reads bypass the public locking methods.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/staffing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  eng := engine.New(st, engine.SystemClock{}, engine.IncludeAllWork)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/assignia/staffing-engine/engine"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer, and for ":memory:"
	// every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secretaries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ranks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_pm BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		secretary_id TEXT NOT NULL,
		rank_id TEXT NOT NULL,
		target_month TEXT NOT NULL,
		client_base_pay TEXT NOT NULL,
		client_increase TEXT NOT NULL,
		client_incentive TEXT NOT NULL,
		secretary_base_pay TEXT NOT NULL,
		secretary_increase TEXT NOT NULL,
		secretary_incentive TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	-- CRITICAL: among non-deleted rows, the staffing key is unique per month.
	-- This index is the sole arbiter for concurrent carryover registration.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_active_key
		ON assignments(client_id, secretary_id, rank_id, target_month)
		WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_assignments_month
		ON assignments(target_month) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS work_records (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		start_at TEXT,
		end_at TEXT,
		duration_minutes INTEGER NOT NULL,
		description TEXT,
		state TEXT NOT NULL DEFAULT 'unapproved',
		approved_at TEXT,
		remanded_at TEXT,
		remand_comment TEXT,
		disputed BOOLEAN NOT NULL DEFAULT FALSE,
		disputed_at TEXT,
		dispute_comment TEXT,
		created_at TEXT NOT NULL,
		deleted_at TEXT,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE INDEX IF NOT EXISTS idx_work_assignment
		ON work_records(assignment_id) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS client_invoices (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		target_month TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		work_unit_count INTEGER NOT NULL,
		total_minutes INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TEXT NOT NULL,
		UNIQUE(client_id, target_month)
	);

	CREATE INDEX IF NOT EXISTS idx_client_invoices_month
		ON client_invoices(target_month);

	CREATE TABLE IF NOT EXISTS secretary_summaries (
		id TEXT PRIMARY KEY,
		secretary_id TEXT NOT NULL,
		target_month TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		work_unit_count INTEGER NOT NULL,
		total_minutes INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		finalized_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(secretary_id, target_month)
	);

	CREATE INDEX IF NOT EXISTS idx_secretary_summaries_month
		ON secretary_summaries(target_month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ASSIGNMENT STORE (engine.AssignmentStore interface)
// =============================================================================

const assignmentColumns = `id, client_id, secretary_id, rank_id, target_month,
	client_base_pay, client_increase, client_incentive,
	secretary_base_pay, secretary_increase, secretary_incentive,
	status, created_at, deleted_at`

func (s *Store) CreateAssignment(ctx context.Context, a engine.AssignmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAssignment(ctx, s.db, a)
}

func (s *Store) createAssignment(ctx context.Context, q dbtx, a engine.AssignmentRecord) error {
	query := `
		INSERT INTO assignments
		(id, client_id, secretary_id, rank_id, target_month,
		 client_base_pay, client_increase, client_incentive,
		 secretary_base_pay, secretary_increase, secretary_incentive,
		 status, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := q.ExecContext(ctx, query,
		a.ID, a.ClientID, a.SecretaryID, a.RankID, a.TargetMonth.String(),
		a.ClientBasePay.String(), a.ClientIncrease.String(), a.ClientIncentive.String(),
		a.SecretaryBasePay.String(), a.SecretaryIncrease.String(), a.SecretaryIncentive.String(),
		a.Status, a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &engine.DuplicateAssignmentError{Key: a.Key(), Month: a.TargetMonth}
		}
		return &engine.PersistenceError{Op: "create assignment", Err: err}
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id engine.AssignmentID) (*engine.AssignmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAssignment(ctx, s.db, id)
}

func (s *Store) getAssignment(ctx context.Context, q dbtx, id engine.AssignmentID) (*engine.AssignmentRecord, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ? AND deleted_at IS NULL`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get assignment", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &engine.PersistenceError{Op: "get assignment", Err: err}
		}
		return nil, engine.ErrAssignmentNotFound
	}
	a, err := scanAssignment(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAssignmentsByMonth(ctx context.Context, month engine.Month) ([]engine.AssignmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAssignmentsByMonth(ctx, s.db, month)
}

func (s *Store) listAssignmentsByMonth(ctx context.Context, q dbtx, month engine.Month) ([]engine.AssignmentRecord, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE target_month = ? AND deleted_at IS NULL
		ORDER BY rowid ASC
	`
	rows, err := q.QueryContext(ctx, query, month.String())
	if err != nil {
		return nil, &engine.PersistenceError{Op: "list assignments", Err: err}
	}
	defer rows.Close()

	var assignments []engine.AssignmentRecord
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.PersistenceError{Op: "list assignments", Err: err}
	}
	return assignments, nil
}

func scanAssignment(rows *sql.Rows) (engine.AssignmentRecord, error) {
	var (
		a                  engine.AssignmentRecord
		targetMonth        string
		clientBase         string
		clientIncrease     string
		clientIncentive    string
		secretaryBase      string
		secretaryIncrease  string
		secretaryIncentive string
		createdAt          string
		deletedAt          sql.NullString
	)

	err := rows.Scan(
		&a.ID, &a.ClientID, &a.SecretaryID, &a.RankID, &targetMonth,
		&clientBase, &clientIncrease, &clientIncentive,
		&secretaryBase, &secretaryIncrease, &secretaryIncentive,
		&a.Status, &createdAt, &deletedAt,
	)
	if err != nil {
		return a, &engine.PersistenceError{Op: "scan assignment", Err: err}
	}

	m, err := engine.ParseMonth(targetMonth)
	if err != nil {
		return a, &engine.PersistenceError{Op: "scan assignment", Err: err}
	}
	a.TargetMonth = m
	a.ClientBasePay = engine.MustParseDecimal(clientBase)
	a.ClientIncrease = engine.MustParseDecimal(clientIncrease)
	a.ClientIncentive = engine.MustParseDecimal(clientIncentive)
	a.SecretaryBasePay = engine.MustParseDecimal(secretaryBase)
	a.SecretaryIncrease = engine.MustParseDecimal(secretaryIncrease)
	a.SecretaryIncentive = engine.MustParseDecimal(secretaryIncentive)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.DeletedAt = parseTimePtr(deletedAt)
	return a, nil
}

func (s *Store) ListAssignmentSummaries(ctx context.Context, month engine.Month) ([]engine.AssignmentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAssignmentSummaries(ctx, s.db, month)
}

func (s *Store) listAssignmentSummaries(ctx context.Context, q dbtx, month engine.Month) ([]engine.AssignmentSummary, error) {
	query := `
		SELECT a.id, a.client_id, a.secretary_id, a.rank_id, a.target_month,
		       a.client_base_pay, a.secretary_base_pay, a.created_at,
		       COALESCE(c.name, ''), COALESCE(s.name, ''), COALESCE(r.name, '')
		FROM assignments a
		LEFT JOIN clients c ON c.id = a.client_id
		LEFT JOIN secretaries s ON s.id = a.secretary_id
		LEFT JOIN ranks r ON r.id = a.rank_id
		WHERE a.target_month = ? AND a.deleted_at IS NULL
		ORDER BY COALESCE(c.name, '') ASC, COALESCE(s.name, '') ASC,
		         COALESCE(r.name, '') ASC, a.rowid ASC
	`
	rows, err := q.QueryContext(ctx, query, month.String())
	if err != nil {
		return nil, &engine.PersistenceError{Op: "list assignment summaries", Err: err}
	}
	defer rows.Close()

	var summaries []engine.AssignmentSummary
	for rows.Next() {
		var (
			sum         engine.AssignmentSummary
			targetMonth string
			clientBase  string
			secBase     string
			createdAt   string
		)
		err := rows.Scan(
			&sum.AssignmentID, &sum.Key.ClientID, &sum.Key.SecretaryID, &sum.Key.RankID, &targetMonth,
			&clientBase, &secBase, &createdAt,
			&sum.ClientName, &sum.SecretaryName, &sum.RankName,
		)
		if err != nil {
			return nil, &engine.PersistenceError{Op: "scan assignment summary", Err: err}
		}
		m, err := engine.ParseMonth(targetMonth)
		if err != nil {
			return nil, &engine.PersistenceError{Op: "scan assignment summary", Err: err}
		}
		sum.TargetMonth = m
		sum.ClientBasePay = engine.MustParseDecimal(clientBase)
		sum.SecretaryBasePay = engine.MustParseDecimal(secBase)
		sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.PersistenceError{Op: "list assignment summaries", Err: err}
	}
	return summaries, nil
}

func (s *Store) PresenceMonths(ctx context.Context, key engine.ContinuityKey, upTo engine.Month) ([]engine.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presenceMonths(ctx, s.db, key, upTo)
}

func (s *Store) presenceMonths(ctx context.Context, q dbtx, key engine.ContinuityKey, upTo engine.Month) ([]engine.Month, error) {
	// "YYYY-MM" compares lexicographically in chronological order.
	query := `
		SELECT DISTINCT target_month
		FROM assignments
		WHERE client_id = ? AND secretary_id = ? AND rank_id = ?
		  AND target_month <= ? AND deleted_at IS NULL
		ORDER BY target_month ASC
	`
	rows, err := q.QueryContext(ctx, query, key.ClientID, key.SecretaryID, key.RankID, upTo.String())
	if err != nil {
		return nil, &engine.PersistenceError{Op: "presence months", Err: err}
	}
	defer rows.Close()

	var months []engine.Month
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &engine.PersistenceError{Op: "presence months", Err: err}
		}
		m, err := engine.ParseMonth(raw)
		if err != nil {
			return nil, &engine.PersistenceError{Op: "presence months", Err: err}
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.PersistenceError{Op: "presence months", Err: err}
	}
	return months, nil
}

func (s *Store) ApplyIncentive(ctx context.Context, clientID engine.ClientID, secretaryID engine.SecretaryID,
	month engine.Month, excludeRank engine.RankID, clientRate, secretaryRate decimal.Decimal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyIncentive(ctx, s.db, clientID, secretaryID, month, excludeRank, clientRate, secretaryRate)
}

func (s *Store) applyIncentive(ctx context.Context, q dbtx, clientID engine.ClientID, secretaryID engine.SecretaryID,
	month engine.Month, excludeRank engine.RankID, clientRate, secretaryRate decimal.Decimal) (int, error) {
	query := `
		UPDATE assignments
		SET client_incentive = ?, secretary_incentive = ?
		WHERE client_id = ? AND secretary_id = ? AND target_month = ?
		  AND rank_id <> ? AND deleted_at IS NULL
	`
	res, err := q.ExecContext(ctx, query,
		clientRate.String(), secretaryRate.String(),
		clientID, secretaryID, month.String(), excludeRank,
	)
	if err != nil {
		return 0, &engine.PersistenceError{Op: "apply incentive", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &engine.PersistenceError{Op: "apply incentive", Err: err}
	}
	return int(affected), nil
}

func (s *Store) SoftDeleteAssignment(ctx context.Context, id engine.AssignmentID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.softDeleteAssignment(ctx, s.db, id, at)
}

func (s *Store) softDeleteAssignment(ctx context.Context, q dbtx, id engine.AssignmentID, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE assignments SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return &engine.PersistenceError{Op: "soft delete assignment", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &engine.PersistenceError{Op: "soft delete assignment", Err: err}
	}
	if affected == 0 {
		return engine.ErrAssignmentNotFound
	}
	return nil
}

// =============================================================================
// WORK STORE (engine.WorkStore interface)
// =============================================================================

const workColumns = `id, assignment_id, work_date, start_at, end_at, duration_minutes,
	description, state, approved_at, remanded_at, remand_comment,
	disputed, disputed_at, dispute_comment, created_at, deleted_at`

func (s *Store) CreateWork(ctx context.Context, w engine.WorkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWork(ctx, s.db, w)
}

func (s *Store) createWork(ctx context.Context, q dbtx, w engine.WorkRecord) error {
	query := `
		INSERT INTO work_records
		(id, assignment_id, work_date, start_at, end_at, duration_minutes,
		 description, state, approved_at, remanded_at, remand_comment,
		 disputed, disputed_at, dispute_comment, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := q.ExecContext(ctx, query,
		w.ID, w.AssignmentID,
		w.WorkDate.UTC().Format("2006-01-02"),
		nullTime(w.StartAt), nullTime(w.EndAt),
		w.DurationMinutes, w.Description, w.State,
		nullTimePtr(w.ApprovedAt), nullTimePtr(w.RemandedAt), w.RemandComment,
		w.Disputed, nullTimePtr(w.DisputedAt), w.DisputeComment,
		w.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &engine.PersistenceError{Op: "create work record", Err: err}
	}
	return nil
}

func (s *Store) GetWork(ctx context.Context, id engine.WorkID) (*engine.WorkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getWork(ctx, s.db, id)
}

func (s *Store) getWork(ctx context.Context, q dbtx, id engine.WorkID) (*engine.WorkRecord, error) {
	query := `SELECT ` + workColumns + ` FROM work_records WHERE id = ? AND deleted_at IS NULL`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get work record", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &engine.PersistenceError{Op: "get work record", Err: err}
		}
		return nil, engine.ErrWorkNotFound
	}
	w, err := scanWork(rows)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) UpdateWork(ctx context.Context, w engine.WorkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateWork(ctx, s.db, w)
}

func (s *Store) updateWork(ctx context.Context, q dbtx, w engine.WorkRecord) error {
	query := `
		UPDATE work_records
		SET state = ?, approved_at = ?, remanded_at = ?, remand_comment = ?,
		    disputed = ?, disputed_at = ?, dispute_comment = ?,
		    description = ?, duration_minutes = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	res, err := q.ExecContext(ctx, query,
		w.State, nullTimePtr(w.ApprovedAt), nullTimePtr(w.RemandedAt), w.RemandComment,
		w.Disputed, nullTimePtr(w.DisputedAt), w.DisputeComment,
		w.Description, w.DurationMinutes,
		w.ID,
	)
	if err != nil {
		return &engine.PersistenceError{Op: "update work record", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &engine.PersistenceError{Op: "update work record", Err: err}
	}
	if affected == 0 {
		return engine.ErrWorkNotFound
	}
	return nil
}

func (s *Store) ListWorkByAssignment(ctx context.Context, id engine.AssignmentID) ([]engine.WorkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listWorkByAssignment(ctx, s.db, id)
}

func (s *Store) listWorkByAssignment(ctx context.Context, q dbtx, id engine.AssignmentID) ([]engine.WorkRecord, error) {
	query := `
		SELECT ` + workColumns + `
		FROM work_records
		WHERE assignment_id = ? AND deleted_at IS NULL
		ORDER BY work_date ASC, created_at ASC
	`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "list work records", Err: err}
	}
	defer rows.Close()

	var records []engine.WorkRecord
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.PersistenceError{Op: "list work records", Err: err}
	}
	return records, nil
}

func scanWork(rows *sql.Rows) (engine.WorkRecord, error) {
	var (
		w              engine.WorkRecord
		workDate       string
		startAt        sql.NullString
		endAt          sql.NullString
		description    sql.NullString
		approvedAt     sql.NullString
		remandedAt     sql.NullString
		remandComment  sql.NullString
		disputedAt     sql.NullString
		disputeComment sql.NullString
		createdAt      string
		deletedAt      sql.NullString
	)

	err := rows.Scan(
		&w.ID, &w.AssignmentID, &workDate, &startAt, &endAt, &w.DurationMinutes,
		&description, &w.State, &approvedAt, &remandedAt, &remandComment,
		&w.Disputed, &disputedAt, &disputeComment, &createdAt, &deletedAt,
	)
	if err != nil {
		return w, &engine.PersistenceError{Op: "scan work record", Err: err}
	}

	w.WorkDate, _ = time.Parse("2006-01-02", workDate)
	if startAt.Valid {
		w.StartAt, _ = time.Parse(time.RFC3339, startAt.String)
	}
	if endAt.Valid {
		w.EndAt, _ = time.Parse(time.RFC3339, endAt.String)
	}
	w.Description = description.String
	w.RemandComment = remandComment.String
	w.DisputeComment = disputeComment.String
	w.ApprovedAt = parseTimePtr(approvedAt)
	w.RemandedAt = parseTimePtr(remandedAt)
	w.DisputedAt = parseTimePtr(disputedAt)
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	w.DeletedAt = parseTimePtr(deletedAt)
	return w, nil
}

// =============================================================================
// SNAPSHOT STORE (engine.SnapshotStore interface)
// =============================================================================

func (s *Store) ReplaceClientInvoice(ctx context.Context, inv engine.ClientMonthlyInvoice) (engine.ClientMonthlyInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceClientInvoice(ctx, s.db, inv)
}

func (s *Store) replaceClientInvoice(ctx context.Context, q dbtx, inv engine.ClientMonthlyInvoice) (engine.ClientMonthlyInvoice, error) {
	// Replace-on-conflict: totals are overwritten, id and created_at are
	// kept, so re-running settlement reuses the row identity.
	query := `
		INSERT INTO client_invoices
		(id, client_id, target_month, total_amount, work_unit_count, total_minutes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, target_month) DO UPDATE SET
			total_amount = excluded.total_amount,
			work_unit_count = excluded.work_unit_count,
			total_minutes = excluded.total_minutes,
			status = excluded.status
	`
	_, err := q.ExecContext(ctx, query,
		inv.ID, inv.ClientID, inv.TargetMonth.String(),
		inv.TotalAmount.String(), inv.WorkUnitCount, inv.TotalMinutes,
		inv.Status, inv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return inv, &engine.PersistenceError{Op: "replace client invoice", Err: err}
	}
	persisted, err := s.getClientInvoice(ctx, q, inv.ClientID, inv.TargetMonth)
	if err != nil {
		return inv, err
	}
	return *persisted, nil
}

func (s *Store) ReplaceSecretarySummary(ctx context.Context, sum engine.SecretaryMonthlySummary) (engine.SecretaryMonthlySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceSecretarySummary(ctx, s.db, sum)
}

func (s *Store) replaceSecretarySummary(ctx context.Context, q dbtx, sum engine.SecretaryMonthlySummary) (engine.SecretaryMonthlySummary, error) {
	query := `
		INSERT INTO secretary_summaries
		(id, secretary_id, target_month, total_amount, work_unit_count, total_minutes, status, finalized_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(secretary_id, target_month) DO UPDATE SET
			total_amount = excluded.total_amount,
			work_unit_count = excluded.work_unit_count,
			total_minutes = excluded.total_minutes,
			status = excluded.status,
			finalized_at = excluded.finalized_at
	`
	_, err := q.ExecContext(ctx, query,
		sum.ID, sum.SecretaryID, sum.TargetMonth.String(),
		sum.TotalAmount.String(), sum.WorkUnitCount, sum.TotalMinutes,
		sum.Status, nullTimePtr(sum.FinalizedAt), sum.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return sum, &engine.PersistenceError{Op: "replace secretary summary", Err: err}
	}
	persisted, err := s.getSecretarySummary(ctx, q, sum.SecretaryID, sum.TargetMonth)
	if err != nil {
		return sum, err
	}
	return *persisted, nil
}

func (s *Store) GetClientInvoice(ctx context.Context, clientID engine.ClientID, month engine.Month) (*engine.ClientMonthlyInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClientInvoice(ctx, s.db, clientID, month)
}

func (s *Store) getClientInvoice(ctx context.Context, q dbtx, clientID engine.ClientID, month engine.Month) (*engine.ClientMonthlyInvoice, error) {
	var (
		inv         engine.ClientMonthlyInvoice
		targetMonth string
		amount      string
		createdAt   string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, client_id, target_month, total_amount, work_unit_count, total_minutes, status, created_at
		 FROM client_invoices WHERE client_id = ? AND target_month = ?`,
		clientID, month.String(),
	).Scan(&inv.ID, &inv.ClientID, &targetMonth, &amount, &inv.WorkUnitCount, &inv.TotalMinutes, &inv.Status, &createdAt)

	if err == sql.ErrNoRows {
		return nil, engine.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get client invoice", Err: err}
	}

	m, err := engine.ParseMonth(targetMonth)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get client invoice", Err: err}
	}
	inv.TargetMonth = m
	inv.TotalAmount = engine.MustParseDecimal(amount)
	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &inv, nil
}

func (s *Store) GetSecretarySummary(ctx context.Context, secretaryID engine.SecretaryID, month engine.Month) (*engine.SecretaryMonthlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSecretarySummary(ctx, s.db, secretaryID, month)
}

func (s *Store) getSecretarySummary(ctx context.Context, q dbtx, secretaryID engine.SecretaryID, month engine.Month) (*engine.SecretaryMonthlySummary, error) {
	var (
		sum         engine.SecretaryMonthlySummary
		targetMonth string
		amount      string
		finalizedAt sql.NullString
		createdAt   string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, secretary_id, target_month, total_amount, work_unit_count, total_minutes, status, finalized_at, created_at
		 FROM secretary_summaries WHERE secretary_id = ? AND target_month = ?`,
		secretaryID, month.String(),
	).Scan(&sum.ID, &sum.SecretaryID, &targetMonth, &amount, &sum.WorkUnitCount, &sum.TotalMinutes, &sum.Status, &finalizedAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, engine.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get secretary summary", Err: err}
	}

	m, err := engine.ParseMonth(targetMonth)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get secretary summary", Err: err}
	}
	sum.TargetMonth = m
	sum.TotalAmount = engine.MustParseDecimal(amount)
	sum.FinalizedAt = parseTimePtr(finalizedAt)
	sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &sum, nil
}

func (s *Store) ListClientInvoices(ctx context.Context, month engine.Month) ([]engine.ClientMonthlyInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listClientInvoices(ctx, s.db, month)
}

func (s *Store) listClientInvoices(ctx context.Context, q dbtx, month engine.Month) ([]engine.ClientMonthlyInvoice, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, client_id, target_month, total_amount, work_unit_count, total_minutes, status, created_at
		 FROM client_invoices WHERE target_month = ? ORDER BY client_id ASC`,
		month.String(),
	)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "list client invoices", Err: err}
	}
	defer rows.Close()

	var invoices []engine.ClientMonthlyInvoice
	for rows.Next() {
		var (
			inv         engine.ClientMonthlyInvoice
			targetMonth string
			amount      string
			createdAt   string
		)
		if err := rows.Scan(&inv.ID, &inv.ClientID, &targetMonth, &amount,
			&inv.WorkUnitCount, &inv.TotalMinutes, &inv.Status, &createdAt); err != nil {
			return nil, &engine.PersistenceError{Op: "scan client invoice", Err: err}
		}
		m, err := engine.ParseMonth(targetMonth)
		if err != nil {
			return nil, &engine.PersistenceError{Op: "scan client invoice", Err: err}
		}
		inv.TargetMonth = m
		inv.TotalAmount = engine.MustParseDecimal(amount)
		inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.PersistenceError{Op: "list client invoices", Err: err}
	}
	return invoices, nil
}

func (s *Store) ListSecretarySummaries(ctx context.Context, month engine.Month) ([]engine.SecretaryMonthlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSecretarySummaries(ctx, s.db, month)
}

func (s *Store) listSecretarySummaries(ctx context.Context, q dbtx, month engine.Month) ([]engine.SecretaryMonthlySummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, secretary_id, target_month, total_amount, work_unit_count, total_minutes, status, finalized_at, created_at
		 FROM secretary_summaries WHERE target_month = ? ORDER BY secretary_id ASC`,
		month.String(),
	)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "list secretary summaries", Err: err}
	}
	defer rows.Close()

	var summaries []engine.SecretaryMonthlySummary
	for rows.Next() {
		var (
			sum         engine.SecretaryMonthlySummary
			targetMonth string
			amount      string
			finalizedAt sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&sum.ID, &sum.SecretaryID, &targetMonth, &amount,
			&sum.WorkUnitCount, &sum.TotalMinutes, &sum.Status, &finalizedAt, &createdAt); err != nil {
			return nil, &engine.PersistenceError{Op: "scan secretary summary", Err: err}
		}
		m, err := engine.ParseMonth(targetMonth)
		if err != nil {
			return nil, &engine.PersistenceError{Op: "scan secretary summary", Err: err}
		}
		sum.TargetMonth = m
		sum.TotalAmount = engine.MustParseDecimal(amount)
		sum.FinalizedAt = parseTimePtr(finalizedAt)
		sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.PersistenceError{Op: "list secretary summaries", Err: err}
	}
	return summaries, nil
}

// =============================================================================
// MASTER STORE (engine.MasterStore interface)
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c engine.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveClient(ctx, s.db, c)
}

func (s *Store) saveClient(ctx context.Context, q dbtx, c engine.Client) error {
	query := `
		INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := q.ExecContext(ctx, query, c.ID, c.Name, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &engine.PersistenceError{Op: "save client", Err: err}
	}
	return nil
}

func (s *Store) SaveSecretary(ctx context.Context, sec engine.Secretary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSecretary(ctx, s.db, sec)
}

func (s *Store) saveSecretary(ctx context.Context, q dbtx, sec engine.Secretary) error {
	query := `
		INSERT INTO secretaries (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := q.ExecContext(ctx, query, sec.ID, sec.Name, sec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &engine.PersistenceError{Op: "save secretary", Err: err}
	}
	return nil
}

func (s *Store) SaveRank(ctx context.Context, r engine.Rank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRank(ctx, s.db, r)
}

func (s *Store) saveRank(ctx context.Context, q dbtx, r engine.Rank) error {
	query := `
		INSERT INTO ranks (id, name, is_pm, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_pm = excluded.is_pm
	`
	_, err := q.ExecContext(ctx, query, r.ID, r.Name, r.IsPM, r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &engine.PersistenceError{Op: "save rank", Err: err}
	}
	return nil
}

func (s *Store) GetRank(ctx context.Context, id engine.RankID) (*engine.Rank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRank(ctx, s.db, id)
}

func (s *Store) getRank(ctx context.Context, q dbtx, id engine.RankID) (*engine.Rank, error) {
	var (
		r         engine.Rank
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, is_pm, created_at FROM ranks WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.IsPM, &createdAt)

	if err == sql.ErrNoRows {
		return nil, engine.ErrRankNotFound
	}
	if err != nil {
		return nil, &engine.PersistenceError{Op: "get rank", Err: err}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

func (s *Store) PMRankID(ctx context.Context) (engine.RankID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pmRankID(ctx, s.db)
}

func (s *Store) pmRankID(ctx context.Context, q dbtx) (engine.RankID, error) {
	var id engine.RankID
	err := q.QueryRowContext(ctx, `SELECT id FROM ranks WHERE is_pm = TRUE LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", engine.ErrPMRankUnset
	}
	if err != nil {
		return "", &engine.PersistenceError{Op: "pm rank lookup", Err: err}
	}
	return id, nil
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes fn within one database transaction. If fn returns an error
// the transaction rolls back and no partial state is observable.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &engine.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{parent: s, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &engine.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txStore routes every Store call through the open transaction. No locking
// here: WithTx already holds the write lock.
type txStore struct {
	parent *Store
	tx     *sql.Tx
}

func (ts *txStore) CreateAssignment(ctx context.Context, a engine.AssignmentRecord) error {
	return ts.parent.createAssignment(ctx, ts.tx, a)
}

func (ts *txStore) GetAssignment(ctx context.Context, id engine.AssignmentID) (*engine.AssignmentRecord, error) {
	return ts.parent.getAssignment(ctx, ts.tx, id)
}

func (ts *txStore) ListAssignmentsByMonth(ctx context.Context, month engine.Month) ([]engine.AssignmentRecord, error) {
	return ts.parent.listAssignmentsByMonth(ctx, ts.tx, month)
}

func (ts *txStore) ListAssignmentSummaries(ctx context.Context, month engine.Month) ([]engine.AssignmentSummary, error) {
	return ts.parent.listAssignmentSummaries(ctx, ts.tx, month)
}

func (ts *txStore) PresenceMonths(ctx context.Context, key engine.ContinuityKey, upTo engine.Month) ([]engine.Month, error) {
	return ts.parent.presenceMonths(ctx, ts.tx, key, upTo)
}

func (ts *txStore) ApplyIncentive(ctx context.Context, clientID engine.ClientID, secretaryID engine.SecretaryID,
	month engine.Month, excludeRank engine.RankID, clientRate, secretaryRate decimal.Decimal) (int, error) {
	return ts.parent.applyIncentive(ctx, ts.tx, clientID, secretaryID, month, excludeRank, clientRate, secretaryRate)
}

func (ts *txStore) SoftDeleteAssignment(ctx context.Context, id engine.AssignmentID, at time.Time) error {
	return ts.parent.softDeleteAssignment(ctx, ts.tx, id, at)
}

func (ts *txStore) CreateWork(ctx context.Context, w engine.WorkRecord) error {
	return ts.parent.createWork(ctx, ts.tx, w)
}

func (ts *txStore) GetWork(ctx context.Context, id engine.WorkID) (*engine.WorkRecord, error) {
	return ts.parent.getWork(ctx, ts.tx, id)
}

func (ts *txStore) UpdateWork(ctx context.Context, w engine.WorkRecord) error {
	return ts.parent.updateWork(ctx, ts.tx, w)
}

func (ts *txStore) ListWorkByAssignment(ctx context.Context, id engine.AssignmentID) ([]engine.WorkRecord, error) {
	return ts.parent.listWorkByAssignment(ctx, ts.tx, id)
}

func (ts *txStore) ReplaceClientInvoice(ctx context.Context, inv engine.ClientMonthlyInvoice) (engine.ClientMonthlyInvoice, error) {
	return ts.parent.replaceClientInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) ReplaceSecretarySummary(ctx context.Context, sum engine.SecretaryMonthlySummary) (engine.SecretaryMonthlySummary, error) {
	return ts.parent.replaceSecretarySummary(ctx, ts.tx, sum)
}

func (ts *txStore) GetClientInvoice(ctx context.Context, clientID engine.ClientID, month engine.Month) (*engine.ClientMonthlyInvoice, error) {
	return ts.parent.getClientInvoice(ctx, ts.tx, clientID, month)
}

func (ts *txStore) GetSecretarySummary(ctx context.Context, secretaryID engine.SecretaryID, month engine.Month) (*engine.SecretaryMonthlySummary, error) {
	return ts.parent.getSecretarySummary(ctx, ts.tx, secretaryID, month)
}

func (ts *txStore) ListClientInvoices(ctx context.Context, month engine.Month) ([]engine.ClientMonthlyInvoice, error) {
	return ts.parent.listClientInvoices(ctx, ts.tx, month)
}

func (ts *txStore) ListSecretarySummaries(ctx context.Context, month engine.Month) ([]engine.SecretaryMonthlySummary, error) {
	return ts.parent.listSecretarySummaries(ctx, ts.tx, month)
}

func (ts *txStore) SaveClient(ctx context.Context, c engine.Client) error {
	return ts.parent.saveClient(ctx, ts.tx, c)
}

func (ts *txStore) SaveSecretary(ctx context.Context, sec engine.Secretary) error {
	return ts.parent.saveSecretary(ctx, ts.tx, sec)
}

func (ts *txStore) SaveRank(ctx context.Context, r engine.Rank) error {
	return ts.parent.saveRank(ctx, ts.tx, r)
}

func (ts *txStore) GetRank(ctx context.Context, id engine.RankID) (*engine.Rank, error) {
	return ts.parent.getRank(ctx, ts.tx, id)
}

func (ts *txStore) PMRankID(ctx context.Context) (engine.RankID, error) {
	return ts.parent.pmRankID(ctx, ts.tx)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
