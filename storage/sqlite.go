package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	_ "modernc.org/sqlite"

	"babylon/reconciler/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS statements (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	source TEXT NOT NULL,
	currency TEXT,
	opening_balance TEXT NOT NULL,
	closing_balance TEXT NOT NULL,
	period_start TEXT NOT NULL,
	period_end TEXT NOT NULL,
	uploaded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bank_records (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	statement_id TEXT NOT NULL,
	date TEXT NOT NULL,
	description TEXT,
	reference TEXT,
	amount TEXT NOT NULL,
	direction TEXT NOT NULL,
	balance TEXT,
	matched INTEGER NOT NULL DEFAULT 0,
	matched_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_bank_records_account_date ON bank_records(account_id, date);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	date TEXT NOT NULL,
	description TEXT,
	reference_type TEXT,
	reference_id TEXT,
	amount TEXT NOT NULL,
	direction TEXT NOT NULL,
	status TEXT NOT NULL,
	recon_status TEXT NOT NULL DEFAULT 'UNMATCHED',
	reconciled_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_account_date ON ledger_transactions(account_id, date);

CREATE TABLE IF NOT EXISTS reconciliations (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	period_end TEXT NOT NULL,
	status TEXT NOT NULL,
	body BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS data_sync (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_name TEXT NOT NULL,
	sync_timestamp TEXT NOT NULL,
	records_uploaded INTEGER NOT NULL
);
`

// timestampLayout has a fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements reconcile.Store on an embedded SQLite file.
// Record dates are kept as YYYY-MM-DD text so range filters compare
// lexically; runs are stored as BSON documents in a single column.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database at %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	// Files created before runs owned their marks lack these columns.
	for _, c := range []struct{ table, column string }{
		{"bank_records", "matched_by"},
		{"ledger_transactions", "reconciled_by"},
	} {
		if err := ensureColumn(ctx, db, c.table, c.column); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// ensureColumn adds a nullable TEXT column when the table does not have it.
func ensureColumn(ctx context.Context, db *sql.DB, table, column string) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to read schema of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			defaultValue     any
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return fmt.Errorf("failed to scan schema of %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read schema of %s: %w", table, err)
	}
	rows.Close()

	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", table, column)); err != nil {
		return fmt.Errorf("failed to add column %s to %s: %w", column, table, err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func formatDate(t time.Time) string {
	return model.DateOnly(t).Format(time.DateOnly)
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return t, nil
}

// SaveStatement stores the statement header and upserts its lines in one
// transaction. Lines already flagged as matched stay matched.
func (r *SQLiteRepository) SaveStatement(ctx context.Context, stmt model.Statement, records []model.BankRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements (id, account_id, source, currency, opening_balance, closing_balance, period_start, period_end, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			source = excluded.source,
			currency = excluded.currency,
			opening_balance = excluded.opening_balance,
			closing_balance = excluded.closing_balance,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			uploaded_at = excluded.uploaded_at`,
		stmt.ID, stmt.AccountID, stmt.Source, stmt.Currency,
		stmt.OpeningBalance.String(), stmt.ClosingBalance.String(),
		formatDate(stmt.PeriodStart), formatDate(stmt.PeriodEnd),
		stmt.UploadedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save statement %s: %w", stmt.ID, err)
	}

	if len(records) > 0 {
		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO bank_records (id, account_id, statement_id, date, description, reference, amount, direction, balance, matched)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				account_id = excluded.account_id,
				statement_id = excluded.statement_id,
				date = excluded.date,
				description = excluded.description,
				reference = excluded.reference,
				amount = excluded.amount,
				direction = excluded.direction,
				balance = excluded.balance,
				matched = MAX(bank_records.matched, excluded.matched)`)
		if err != nil {
			return fmt.Errorf("failed to prepare bank record upsert: %w", err)
		}
		defer insert.Close()

		for _, rec := range records {
			doc := toBankDoc(rec)
			if _, err := insert.ExecContext(ctx,
				doc.ID, doc.AccountID, doc.StatementID, formatDate(doc.Date), doc.Description, doc.Reference,
				doc.Amount, doc.Direction, doc.Balance, doc.Matched,
			); err != nil {
				return fmt.Errorf("failed to upsert bank record %s: %w", rec.ID, err)
			}
		}
		if err := r.logSync(ctx, tx, BankRecordsCollection, len(records)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit statement %s: %w", stmt.ID, err)
	}
	return nil
}

// UpsertLedgerRecords upserts ledger transactions. An UNMATCHED status from
// the export never overwrites progress already recorded by reconciliation.
func (r *SQLiteRepository) UpsertLedgerRecords(ctx context.Context, records []model.LedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_transactions (id, account_id, date, description, reference_type, reference_id, amount, direction, status, recon_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			date = excluded.date,
			description = excluded.description,
			reference_type = excluded.reference_type,
			reference_id = excluded.reference_id,
			amount = excluded.amount,
			direction = excluded.direction,
			status = excluded.status,
			recon_status = CASE
				WHEN excluded.recon_status = 'UNMATCHED' THEN ledger_transactions.recon_status
				ELSE excluded.recon_status
			END`)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger upsert: %w", err)
	}
	defer insert.Close()

	for _, rec := range records {
		doc := toLedgerDoc(rec)
		if doc.ReconStatus == "" {
			doc.ReconStatus = string(model.ReconUnmatched)
		}
		if _, err := insert.ExecContext(ctx,
			doc.ID, doc.AccountID, formatDate(doc.Date), doc.Description, doc.ReferenceType, doc.ReferenceID,
			doc.Amount, doc.Direction, doc.Status, doc.ReconStatus,
		); err != nil {
			return fmt.Errorf("failed to upsert ledger record %s: %w", rec.ID, err)
		}
	}
	if err := r.logSync(ctx, tx, LedgerCollection, len(records)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger records: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) logSync(ctx context.Context, tx *sql.Tx, table string, n int) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO data_sync (collection_name, sync_timestamp, records_uploaded) VALUES (?, ?, ?)",
		table, r.now().UTC().Format(timestampLayout), n,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into data_sync table: %w", err)
	}
	return nil
}

// ListBankRecords returns the account's statement lines dated within
// [from, to], oldest first.
func (r *SQLiteRepository) ListBankRecords(ctx context.Context, accountID string, from, to time.Time) ([]model.BankRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, statement_id, date, description, reference, amount, direction, balance, matched, matched_by
		FROM bank_records
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		accountID, formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank records: %w", err)
	}
	defer rows.Close()

	var records []model.BankRecord
	for rows.Next() {
		var (
			doc                    bankDoc
			date                   string
			description, reference sql.NullString
			balance, matchedBy     sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.AccountID, &doc.StatementID, &date, &description, &reference,
			&doc.Amount, &doc.Direction, &balance, &doc.Matched, &matchedBy); err != nil {
			return nil, fmt.Errorf("failed to scan bank record: %w", err)
		}
		if doc.Date, err = parseDate("date", date); err != nil {
			return nil, err
		}
		doc.Description = description.String
		doc.Reference = reference.String
		doc.MatchedBy = matchedBy.String
		if balance.Valid {
			doc.Balance = &balance.String
		}

		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bank records: %w", err)
	}
	return records, nil
}

// ListLedgerRecords returns the account's ledger transactions dated on or
// before to, oldest first.
func (r *SQLiteRepository) ListLedgerRecords(ctx context.Context, accountID string, to time.Time) ([]model.LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, date, description, reference_type, reference_id, amount, direction, status, recon_status, reconciled_by
		FROM ledger_transactions
		WHERE account_id = ? AND date <= ?
		ORDER BY date, id`,
		accountID, formatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger transactions: %w", err)
	}
	defer rows.Close()

	var records []model.LedgerRecord
	for rows.Next() {
		var (
			doc                                     ledgerDoc
			date                                    string
			description, referenceType, referenceID sql.NullString
			reconciledBy                            sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.AccountID, &date, &description, &referenceType, &referenceID,
			&doc.Amount, &doc.Direction, &doc.Status, &doc.ReconStatus, &reconciledBy); err != nil {
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		if doc.Date, err = parseDate("date", date); err != nil {
			return nil, err
		}
		doc.Description = description.String
		doc.ReferenceType = referenceType.String
		doc.ReferenceID = referenceID.String
		doc.ReconciledBy = reconciledBy.String

		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger transactions: %w", err)
	}
	return records, nil
}

// LatestStatement returns the most recent statement for the account that
// ends on or before periodEnd.
func (r *SQLiteRepository) LatestStatement(ctx context.Context, accountID string, periodEnd time.Time) (model.Statement, error) {
	var (
		doc                    statementDoc
		currency               sql.NullString
		start, end, uploadedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, source, currency, opening_balance, closing_balance, period_start, period_end, uploaded_at
		FROM statements
		WHERE account_id = ? AND period_end <= ?
		ORDER BY period_end DESC, uploaded_at DESC
		LIMIT 1`,
		accountID, formatDate(periodEnd),
	).Scan(&doc.ID, &doc.AccountID, &doc.Source, &currency, &doc.OpeningBalance, &doc.ClosingBalance,
		&start, &end, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Statement{}, model.NotFoundError("statement for account", accountID)
	}
	if err != nil {
		return model.Statement{}, fmt.Errorf("failed to load statement for account %s: %w", accountID, err)
	}

	doc.Currency = currency.String
	if doc.PeriodStart, err = parseDate("period start", start); err != nil {
		return model.Statement{}, err
	}
	if doc.PeriodEnd, err = parseDate("period end", end); err != nil {
		return model.Statement{}, err
	}
	if doc.UploadedAt, err = time.Parse(timestampLayout, uploadedAt); err != nil {
		return model.Statement{}, fmt.Errorf("invalid upload time %q: %w", uploadedAt, err)
	}
	return doc.statement()
}

// SaveRun inserts or replaces a reconciliation run.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run model.Run) error {
	body, err := bson.Marshal(toRunDoc(run))
	if err != nil {
		return fmt.Errorf("failed to encode reconciliation run %s: %w", run.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reconciliations (id, account_id, period_end, status, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			period_end = excluded.period_end,
			status = excluded.status,
			body = excluded.body`,
		run.ID, run.AccountID, formatDate(run.PeriodEnd), string(run.Status), body,
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads a reconciliation run by id.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (model.Run, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx, "SELECT body FROM reconciliations WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, model.NotFoundError("reconciliation run", id)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load reconciliation run %s: %w", id, err)
	}

	var doc runDoc
	if err := bson.Unmarshal(body, &doc); err != nil {
		return model.Run{}, fmt.Errorf("failed to decode reconciliation run %s: %w", id, err)
	}
	return doc.run()
}

// MarkLedgerReconciled sets recon_status RECONCILED on the given ledger
// transactions and records runID as their owner.
func (r *SQLiteRepository) MarkLedgerReconciled(ctx context.Context, runID string, ids []string) error {
	return r.updateByIDs(ctx, "ledger_transactions", "recon_status = ?, reconciled_by = ?",
		[]any{string(model.ReconReconciled), runID}, ids)
}

// MarkBankMatched flags the given statement lines as matched by runID.
func (r *SQLiteRepository) MarkBankMatched(ctx context.Context, runID string, ids []string) error {
	return r.updateByIDs(ctx, "bank_records", "matched = 1, matched_by = ?", []any{runID}, ids)
}

func (r *SQLiteRepository) updateByIDs(ctx context.Context, table, set string, setArgs []any, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(setArgs)+len(ids))
	args = append(args, setArgs...)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id IN (%s)", table, set, placeholders)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update table %s: %w", table, err)
	}
	return nil
}
