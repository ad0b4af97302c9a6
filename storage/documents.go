package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"babylon/reconciler/model"
)

// Money is stored as decimal strings so no precision is lost in BSON doubles.

// SyncLog represents a record in the dataSync collection.
type SyncLog struct {
	CollectionName  string    `bson:"collection_name"`
	SyncTimestamp   time.Time `bson:"sync_timestamp"`
	RecordsUploaded int64     `bson:"records_uploaded"`
}

type bankDoc struct {
	ID          string    `bson:"_id"`
	AccountID   string    `bson:"accountId"`
	StatementID string    `bson:"statementId"`
	Date        time.Time `bson:"date"`
	Description string    `bson:"description"`
	Reference   string    `bson:"reference,omitempty"`
	Amount      string    `bson:"amount"`
	Direction   string    `bson:"direction"`
	Balance     *string   `bson:"balance,omitempty"`
	Matched     bool      `bson:"matched,omitempty"`
	MatchedBy   string    `bson:"matchedBy,omitempty"`
}

type ledgerDoc struct {
	ID            string    `bson:"_id"`
	AccountID     string    `bson:"accountId"`
	Date          time.Time `bson:"date"`
	Description   string    `bson:"description"`
	ReferenceType string    `bson:"referenceType,omitempty"`
	ReferenceID   string    `bson:"referenceId,omitempty"`
	Amount        string    `bson:"amount"`
	Direction     string    `bson:"direction"`
	Status        string    `bson:"status"`
	ReconStatus   string    `bson:"reconStatus,omitempty"`
	ReconciledBy  string    `bson:"reconciledBy,omitempty"`
}

type statementDoc struct {
	ID             string    `bson:"_id"`
	AccountID      string    `bson:"accountId"`
	Source         string    `bson:"source"`
	Currency       string    `bson:"currency,omitempty"`
	OpeningBalance string    `bson:"openingBalance"`
	ClosingBalance string    `bson:"closingBalance"`
	PeriodStart    time.Time `bson:"periodStart"`
	PeriodEnd      time.Time `bson:"periodEnd"`
	UploadedAt     time.Time `bson:"uploadedAt"`
}

type matchDoc struct {
	ID     string      `bson:"id"`
	Bank   bankDoc     `bson:"bank"`
	Ledger []ledgerDoc `bson:"ledger"`
	Type   string      `bson:"type"`
	Score  float64     `bson:"score"`
	Amount string      `bson:"amount"`
}

type skippedDoc struct {
	RecordID string `bson:"recordId,omitempty"`
	Row      int    `bson:"row,omitempty"`
	Reason   string `bson:"reason"`
}

type runDoc struct {
	ID                string       `bson:"_id"`
	AccountID         string       `bson:"accountId"`
	StatementID       string       `bson:"statementId"`
	PeriodStart       time.Time    `bson:"periodStart"`
	PeriodEnd         time.Time    `bson:"periodEnd"`
	StatementBalance  string       `bson:"statementBalance"`
	BookBalance       string       `bson:"bookBalance"`
	Matches           []matchDoc   `bson:"matches"`
	UnmatchedBank     []bankDoc    `bson:"unmatchedBank"`
	UnmatchedLedger   []ledgerDoc  `bson:"unmatchedLedger"`
	TotalMatched      string       `bson:"totalMatched"`
	Difference        string       `bson:"difference"`
	OutstandingChecks string       `bson:"outstandingChecks"`
	DepositsInTransit string       `bson:"depositsInTransit"`
	Skipped           []skippedDoc `bson:"skipped,omitempty"`
	Status            string       `bson:"status"`
	CreatedAt         time.Time    `bson:"createdAt"`
	FinalizedAt       *time.Time   `bson:"finalizedAt,omitempty"`
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

func toBankDoc(r model.BankRecord) bankDoc {
	doc := bankDoc{
		ID:          r.ID,
		AccountID:   r.AccountID,
		StatementID: r.StatementID,
		Date:        r.Date,
		Description: r.Description,
		Reference:   r.Reference,
		Amount:      r.Amount.String(),
		Direction:   string(r.Direction),
		Matched:     r.Matched,
		MatchedBy:   r.MatchedBy,
	}
	if r.Balance != nil {
		balance := r.Balance.String()
		doc.Balance = &balance
	}
	return doc
}

func (d bankDoc) record() (model.BankRecord, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return model.BankRecord{}, fmt.Errorf("bank record %s: %w", d.ID, err)
	}
	r := model.BankRecord{
		ID:          d.ID,
		AccountID:   d.AccountID,
		StatementID: d.StatementID,
		Date:        d.Date.UTC(),
		Description: d.Description,
		Reference:   d.Reference,
		Amount:      amount,
		Direction:   model.Direction(d.Direction),
		Matched:     d.Matched,
		MatchedBy:   d.MatchedBy,
	}
	if d.Balance != nil {
		balance, err := parseAmount("balance", *d.Balance)
		if err != nil {
			return model.BankRecord{}, fmt.Errorf("bank record %s: %w", d.ID, err)
		}
		r.Balance = &balance
	}
	return r, nil
}

func toLedgerDoc(r model.LedgerRecord) ledgerDoc {
	return ledgerDoc{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Date:          r.Date,
		Description:   r.Description,
		ReferenceType: r.ReferenceType,
		ReferenceID:   r.ReferenceID,
		Amount:        r.Amount.String(),
		Direction:     string(r.Direction),
		Status:        string(r.Status),
		ReconStatus:   string(r.ReconStatus),
		ReconciledBy:  r.ReconciledBy,
	}
}

func (d ledgerDoc) record() (model.LedgerRecord, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return model.LedgerRecord{}, fmt.Errorf("ledger record %s: %w", d.ID, err)
	}
	recon := model.ReconStatus(d.ReconStatus)
	if recon == "" {
		recon = model.ReconUnmatched
	}
	return model.LedgerRecord{
		ID:            d.ID,
		AccountID:     d.AccountID,
		Date:          d.Date.UTC(),
		Description:   d.Description,
		ReferenceType: d.ReferenceType,
		ReferenceID:   d.ReferenceID,
		Amount:        amount,
		Direction:     model.Direction(d.Direction),
		Status:        model.LedgerStatus(d.Status),
		ReconStatus:   recon,
		ReconciledBy:  d.ReconciledBy,
	}, nil
}

func toStatementDoc(s model.Statement) statementDoc {
	return statementDoc{
		ID:             s.ID,
		AccountID:      s.AccountID,
		Source:         s.Source,
		Currency:       s.Currency,
		OpeningBalance: s.OpeningBalance.String(),
		ClosingBalance: s.ClosingBalance.String(),
		PeriodStart:    s.PeriodStart,
		PeriodEnd:      s.PeriodEnd,
		UploadedAt:     s.UploadedAt,
	}
}

func (d statementDoc) statement() (model.Statement, error) {
	opening, err := parseAmount("opening balance", d.OpeningBalance)
	if err != nil {
		return model.Statement{}, fmt.Errorf("statement %s: %w", d.ID, err)
	}
	closing, err := parseAmount("closing balance", d.ClosingBalance)
	if err != nil {
		return model.Statement{}, fmt.Errorf("statement %s: %w", d.ID, err)
	}
	return model.Statement{
		ID:             d.ID,
		AccountID:      d.AccountID,
		Source:         d.Source,
		Currency:       d.Currency,
		OpeningBalance: opening,
		ClosingBalance: closing,
		PeriodStart:    d.PeriodStart.UTC(),
		PeriodEnd:      d.PeriodEnd.UTC(),
		UploadedAt:     d.UploadedAt.UTC(),
	}, nil
}

func toRunDoc(r model.Run) runDoc {
	doc := runDoc{
		ID:                r.ID,
		AccountID:         r.AccountID,
		StatementID:       r.StatementID,
		PeriodStart:       r.PeriodStart,
		PeriodEnd:         r.PeriodEnd,
		StatementBalance:  r.StatementBalance.String(),
		BookBalance:       r.BookBalance.String(),
		Matches:           make([]matchDoc, 0, len(r.Matches)),
		UnmatchedBank:     make([]bankDoc, 0, len(r.UnmatchedBank)),
		UnmatchedLedger:   make([]ledgerDoc, 0, len(r.UnmatchedLedger)),
		TotalMatched:      r.TotalMatched.String(),
		Difference:        r.Difference.String(),
		OutstandingChecks: r.OutstandingChecks.String(),
		DepositsInTransit: r.DepositsInTransit.String(),
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
	}
	for _, m := range r.Matches {
		md := matchDoc{
			ID:     m.ID,
			Bank:   toBankDoc(m.Bank),
			Ledger: make([]ledgerDoc, 0, len(m.Ledger)),
			Type:   string(m.Type),
			Score:  m.Score,
			Amount: m.Amount.String(),
		}
		for _, l := range m.Ledger {
			md.Ledger = append(md.Ledger, toLedgerDoc(l))
		}
		doc.Matches = append(doc.Matches, md)
	}
	for _, b := range r.UnmatchedBank {
		doc.UnmatchedBank = append(doc.UnmatchedBank, toBankDoc(b))
	}
	for _, l := range r.UnmatchedLedger {
		doc.UnmatchedLedger = append(doc.UnmatchedLedger, toLedgerDoc(l))
	}
	for _, s := range r.Skipped {
		doc.Skipped = append(doc.Skipped, skippedDoc(s))
	}
	if !r.FinalizedAt.IsZero() {
		finalized := r.FinalizedAt
		doc.FinalizedAt = &finalized
	}
	return doc
}

func (d runDoc) run() (model.Run, error) {
	var err error
	r := model.Run{
		ID:          d.ID,
		AccountID:   d.AccountID,
		StatementID: d.StatementID,
		PeriodStart: d.PeriodStart.UTC(),
		PeriodEnd:   d.PeriodEnd.UTC(),
		Status:      model.RunStatus(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
	}
	if d.FinalizedAt != nil {
		r.FinalizedAt = d.FinalizedAt.UTC()
	}

	amounts := []struct {
		field string
		value string
		dst   *decimal.Decimal
	}{
		{"statement balance", d.StatementBalance, &r.StatementBalance},
		{"book balance", d.BookBalance, &r.BookBalance},
		{"total matched", d.TotalMatched, &r.TotalMatched},
		{"difference", d.Difference, &r.Difference},
		{"outstanding checks", d.OutstandingChecks, &r.OutstandingChecks},
		{"deposits in transit", d.DepositsInTransit, &r.DepositsInTransit},
	}
	for _, a := range amounts {
		if *a.dst, err = parseAmount(a.field, a.value); err != nil {
			return model.Run{}, fmt.Errorf("run %s: %w", d.ID, err)
		}
	}

	for _, md := range d.Matches {
		m := model.MatchResult{ID: md.ID, Type: model.MatchType(md.Type), Score: md.Score}
		if m.Amount, err = parseAmount("match amount", md.Amount); err != nil {
			return model.Run{}, fmt.Errorf("run %s: %w", d.ID, err)
		}
		if m.Bank, err = md.Bank.record(); err != nil {
			return model.Run{}, fmt.Errorf("run %s: %w", d.ID, err)
		}
		for _, ld := range md.Ledger {
			l, err := ld.record()
			if err != nil {
				return model.Run{}, fmt.Errorf("run %s: %w", d.ID, err)
			}
			m.Ledger = append(m.Ledger, l)
		}
		r.Matches = append(r.Matches, m)
	}
	for _, bd := range d.UnmatchedBank {
		b, err := bd.record()
		if err != nil {
			return model.Run{}, fmt.Errorf("run %s: %w", d.ID, err)
		}
		r.UnmatchedBank = append(r.UnmatchedBank, b)
	}
	for _, ld := range d.UnmatchedLedger {
		l, err := ld.record()
		if err != nil {
			return model.Run{}, fmt.Errorf("run %s: %w", d.ID, err)
		}
		r.UnmatchedLedger = append(r.UnmatchedLedger, l)
	}
	for _, s := range d.Skipped {
		r.Skipped = append(r.Skipped, model.RecordError(s))
	}

	return r, nil
}
