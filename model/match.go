package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchType records how a MatchResult was produced.
type MatchType string

const (
	MatchExact    MatchType = "EXACT"
	MatchAmount   MatchType = "AMOUNT"
	MatchCombined MatchType = "COMBINED"
	MatchManual   MatchType = "MANUAL"
)

// MatchResult ties one bank record to one or more ledger records.
type MatchResult struct {
	ID     string
	Bank   BankRecord
	Ledger []LedgerRecord
	Type   MatchType
	Score  float64
	Amount decimal.Decimal
}

// LedgerIDs returns the ids of the ledger records in the match.
func (m MatchResult) LedgerIDs() []string {
	ids := make([]string, 0, len(m.Ledger))
	for _, l := range m.Ledger {
		ids = append(ids, l.ID)
	}
	return ids
}

// RunStatus is the lifecycle state of a reconciliation run.
type RunStatus string

const (
	RunDraft      RunStatus = "DRAFT"
	RunCalculated RunStatus = "CALCULATED"
	RunFinalized  RunStatus = "FINALIZED"
)

// Run is the aggregate result of reconciling one account for one period.
type Run struct {
	ID                string
	AccountID         string
	StatementID       string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	StatementBalance  decimal.Decimal
	BookBalance       decimal.Decimal
	Matches           []MatchResult
	UnmatchedBank     []BankRecord
	UnmatchedLedger   []LedgerRecord
	TotalMatched      decimal.Decimal
	Difference        decimal.Decimal
	OutstandingChecks decimal.Decimal
	DepositsInTransit decimal.Decimal
	Skipped           []RecordError
	Status            RunStatus
	CreatedAt         time.Time
	FinalizedAt       time.Time
}

// Recalculate refreshes the derived totals from the match list.
func (r *Run) Recalculate() {
	total := decimal.Zero
	for _, m := range r.Matches {
		total = total.Add(m.Amount)
	}
	r.TotalMatched = total
	r.Difference = r.StatementBalance.Sub(r.BookBalance)
}

// Suggestion is an advisory ranking of ledger candidates for one bank record.
type Suggestion struct {
	Bank       BankRecord
	Candidates []ScoredCandidate
	Confidence float64
}

// ScoredCandidate is one ranked ledger record.
type ScoredCandidate struct {
	Ledger LedgerRecord
	Score  float64
}
