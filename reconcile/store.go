package reconcile

import (
	"context"
	"time"

	"babylon/reconciler/model"
)

// Store is the persistence the service needs. storage.MongoRepository and
// storage.SQLiteRepository implement it.
type Store interface {
	SaveStatement(ctx context.Context, stmt model.Statement, records []model.BankRecord) error
	UpsertLedgerRecords(ctx context.Context, records []model.LedgerRecord) error
	ListBankRecords(ctx context.Context, accountID string, from, to time.Time) ([]model.BankRecord, error)
	ListLedgerRecords(ctx context.Context, accountID string, to time.Time) ([]model.LedgerRecord, error)
	// LatestStatement returns model.ErrNotFound when the account has no
	// statement ending on or before periodEnd.
	LatestStatement(ctx context.Context, accountID string, periodEnd time.Time) (model.Statement, error)
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	// MarkLedgerReconciled and MarkBankMatched record runID as the owner of
	// the marked records. Repeating a call for the same run is harmless.
	MarkLedgerReconciled(ctx context.Context, runID string, ids []string) error
	MarkBankMatched(ctx context.Context, runID string, ids []string) error
}
