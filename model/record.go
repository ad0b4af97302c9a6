// Package model holds the records exchanged between the statement loaders,
// the matching engine, the reconciliation service and storage.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of the cash account a transaction lands on, in the
// book's convention: DEBIT increases the balance, CREDIT decreases it.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// IsValid reports whether d is DEBIT or CREDIT.
func (d Direction) IsValid() bool {
	return d == Debit || d == Credit
}

// ParseDirection accepts DEBIT/CREDIT in any case.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", InvalidRecordError(s, "unknown direction")
	}
	return d, nil
}

// LedgerStatus is the completion status of a ledger transaction.
type LedgerStatus string

const (
	StatusPending   LedgerStatus = "PENDING"
	StatusCompleted LedgerStatus = "COMPLETED"
	StatusCancelled LedgerStatus = "CANCELLED"
)

// ReconStatus tracks a ledger transaction through reconciliation.
type ReconStatus string

const (
	ReconUnmatched  ReconStatus = "UNMATCHED"
	ReconMatched    ReconStatus = "MATCHED"
	ReconReconciled ReconStatus = "RECONCILED"
)

// Reference types the orchestrator treats specially when computing
// outstanding items.
const (
	ReferenceCheck   = "CHECK"
	ReferenceDeposit = "DEPOSIT"
)

// BankRecord is one line from an uploaded bank statement. Amount is always
// non-negative; the sign lives in Direction.
type BankRecord struct {
	ID          string
	AccountID   string
	StatementID string
	Date        time.Time
	Description string
	Reference   string
	Amount      decimal.Decimal
	Direction   Direction
	Balance     *decimal.Decimal
	Matched     bool
	// MatchedBy is the id of the run that finalized the match, if any.
	MatchedBy string
}

// Validate rejects records that cannot take part in matching.
func (b BankRecord) Validate() error {
	switch {
	case strings.TrimSpace(b.ID) == "":
		return InvalidRecordError(b.ID, "missing id")
	case b.Date.IsZero():
		return InvalidRecordError(b.ID, "missing date")
	case !b.Direction.IsValid():
		return InvalidRecordError(b.ID, fmt.Sprintf("invalid direction %q", b.Direction))
	}
	return nil
}

// Signed returns the amount with the book sign applied.
func (b BankRecord) Signed() decimal.Decimal {
	return signed(b.Amount, b.Direction)
}

// LedgerRecord is a transaction already recorded in the business's books.
type LedgerRecord struct {
	ID            string
	AccountID     string
	Date          time.Time
	Description   string
	ReferenceType string
	ReferenceID   string
	Amount        decimal.Decimal
	Direction     Direction
	Status        LedgerStatus
	ReconStatus   ReconStatus
	// ReconciledBy is the id of the run that reconciled the record, if any.
	ReconciledBy string
}

// Validate rejects records that cannot take part in matching.
func (l LedgerRecord) Validate() error {
	switch {
	case strings.TrimSpace(l.ID) == "":
		return InvalidRecordError(l.ID, "missing id")
	case l.Date.IsZero():
		return InvalidRecordError(l.ID, "missing date")
	case !l.Direction.IsValid():
		return InvalidRecordError(l.ID, fmt.Sprintf("invalid direction %q", l.Direction))
	}
	return nil
}

// Signed returns the amount with the book sign applied.
func (l LedgerRecord) Signed() decimal.Decimal {
	return signed(l.Amount, l.Direction)
}

func signed(amount decimal.Decimal, d Direction) decimal.Decimal {
	if d == Credit {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// Statement is the header of an uploaded bank statement.
type Statement struct {
	ID             string
	AccountID      string
	Source         string
	Currency       string
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	PeriodStart    time.Time
	PeriodEnd      time.Time
	UploadedAt     time.Time
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	days := int(DateOnly(a).Sub(DateOnly(b)).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
