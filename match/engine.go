// Package match pairs bank statement lines with ledger transactions.
//
// Matching is a pipeline of passes over a State. Each pass takes the current
// matches and the two unmatched pools and returns a new State; inputs are
// never modified, so every pass can be run and tested on its own.
package match

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"babylon/reconciler/model"
)

// State is the value flowing between passes.
type State struct {
	Matches []model.MatchResult
	Bank    []model.BankRecord
	Ledger  []model.LedgerRecord
}

// NewState starts a pipeline with nothing matched.
func NewState(bank []model.BankRecord, ledger []model.LedgerRecord) State {
	return State{Bank: slices.Clone(bank), Ledger: slices.Clone(ledger)}
}

func (s State) clone() State {
	return State{
		Matches: slices.Clone(s.Matches),
		Bank:    slices.Clone(s.Bank),
		Ledger:  slices.Clone(s.Ledger),
	}
}

// Result is the outcome of a full engine run.
type Result struct {
	State
	// Skipped lists input records rejected before matching.
	Skipped []model.RecordError
}

// IDGenerator produces identifiers for new matches.
type IDGenerator func() string

// Engine runs the configured passes.
type Engine struct {
	cfg   Config
	newID IDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// NewEngine creates an Engine. Out-of-range config values fall back to defaults.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.normalize(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run validates both pools and then applies the exact, amount and
// combination passes in that order, skipping any disabled pass.
// Invalid or duplicate records are reported in Result.Skipped and left out
// of both the matches and the unmatched pools.
func (e *Engine) Run(bank []model.BankRecord, ledger []model.LedgerRecord) Result {
	validBank, skipped := validateBank(bank)
	validLedger, skippedLedger := validateLedger(ledger)

	state := NewState(validBank, validLedger)
	if e.cfg.Passes.Exact {
		state = e.ExactPass(state)
	}
	if e.cfg.Passes.Amount {
		state = e.AmountPass(state)
	}
	if e.cfg.Passes.Combined {
		state = e.CombinationPass(state)
	}

	return Result{State: state, Skipped: append(skipped, skippedLedger...)}
}

func validateBank(records []model.BankRecord) ([]model.BankRecord, []model.RecordError) {
	var skipped []model.RecordError
	seen := make(map[string]struct{}, len(records))
	valid := make([]model.BankRecord, 0, len(records))

	for _, r := range records {
		if err := r.Validate(); err != nil {
			skipped = append(skipped, model.RecordError{RecordID: r.ID, Reason: err.Error()})
			continue
		}
		if _, dup := seen[r.ID]; dup {
			skipped = append(skipped, model.RecordError{RecordID: r.ID, Reason: "duplicate bank record id"})
			continue
		}
		seen[r.ID] = struct{}{}
		valid = append(valid, r)
	}
	return valid, skipped
}

func validateLedger(records []model.LedgerRecord) ([]model.LedgerRecord, []model.RecordError) {
	var skipped []model.RecordError
	seen := make(map[string]struct{}, len(records))
	valid := make([]model.LedgerRecord, 0, len(records))

	for _, r := range records {
		if err := r.Validate(); err != nil {
			skipped = append(skipped, model.RecordError{RecordID: r.ID, Reason: err.Error()})
			continue
		}
		if _, dup := seen[r.ID]; dup {
			skipped = append(skipped, model.RecordError{RecordID: r.ID, Reason: "duplicate ledger record id"})
			continue
		}
		seen[r.ID] = struct{}{}
		valid = append(valid, r)
	}
	return valid, skipped
}

// newMatch builds an immutable result and flags the records it consumes.
func (e *Engine) newMatch(
	bank model.BankRecord,
	ledger []model.LedgerRecord,
	typ model.MatchType,
	score float64,
	amount decimal.Decimal,
) model.MatchResult {
	bank.Matched = true
	consumed := make([]model.LedgerRecord, len(ledger))
	for i, l := range ledger {
		l.ReconStatus = model.ReconMatched
		consumed[i] = l
	}

	return model.MatchResult{
		ID:     e.newID(),
		Bank:   bank,
		Ledger: consumed,
		Type:   typ,
		Score:  score,
		Amount: amount,
	}
}

func removeBank(pool []model.BankRecord, id string) []model.BankRecord {
	return slices.DeleteFunc(pool, func(b model.BankRecord) bool { return b.ID == id })
}

func removeLedger(pool []model.LedgerRecord, ids map[string]struct{}) []model.LedgerRecord {
	return slices.DeleteFunc(pool, func(l model.LedgerRecord) bool {
		_, ok := ids[l.ID]
		return ok
	})
}
