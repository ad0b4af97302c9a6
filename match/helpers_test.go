package match_test

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"babylon/reconciler/match"
	"babylon/reconciler/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bankRec(id, amount string, dir model.Direction, date time.Time) model.BankRecord {
	return model.BankRecord{
		ID:        id,
		AccountID: "acc-1",
		Date:      date,
		Amount:    decimal.RequireFromString(amount),
		Direction: dir,
	}
}

func ledgerRec(id, amount string, dir model.Direction, date time.Time) model.LedgerRecord {
	return model.LedgerRecord{
		ID:          id,
		AccountID:   "acc-1",
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Direction:   dir,
		Status:      model.StatusCompleted,
		ReconStatus: model.ReconUnmatched,
	}
}

func sequenceIDs() match.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func newEngine() *match.Engine {
	return match.NewEngine(match.DefaultConfig(), match.WithIDGenerator(sequenceIDs()))
}

func bankIDs(records []model.BankRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func ledgerIDs(records []model.LedgerRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
