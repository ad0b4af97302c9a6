package reconcile_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"babylon/reconciler/model"
)

// memStore is an in-memory reconcile.Store.
type memStore struct {
	mu         sync.Mutex
	statements []model.Statement
	bank       []model.BankRecord
	ledger     []model.LedgerRecord
	runs       map[string]model.Run
	saveRuns   int
	getRuns    int

	// failMarkBank, when set, is returned by MarkBankMatched.
	failMarkBank error
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]model.Run)}
}

func (m *memStore) SaveStatement(_ context.Context, stmt model.Statement, records []model.BankRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements = append(m.statements, stmt)
	m.bank = append(m.bank, records...)
	return nil
}

func (m *memStore) UpsertLedgerRecords(_ context.Context, records []model.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, records...)
	return nil
}

func (m *memStore) ListBankRecords(_ context.Context, accountID string, from, to time.Time) ([]model.BankRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BankRecord
	for _, b := range m.bank {
		if b.AccountID == accountID && !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListLedgerRecords(_ context.Context, accountID string, to time.Time) ([]model.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LedgerRecord
	for _, l := range m.ledger {
		if l.AccountID == accountID && !l.Date.After(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) LatestStatement(_ context.Context, accountID string, periodEnd time.Time) (model.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		latest model.Statement
		found  bool
	)
	for _, s := range m.statements {
		if s.AccountID != accountID || s.PeriodEnd.After(periodEnd) {
			continue
		}
		if !found || s.PeriodEnd.After(latest.PeriodEnd) {
			latest, found = s, true
		}
	}
	if !found {
		return model.Statement{}, model.NotFoundError("statement for account", accountID)
	}
	return latest, nil
}

func (m *memStore) SaveRun(_ context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = cloneRun(run)
	m.saveRuns++
	return nil
}

func (m *memStore) GetRun(_ context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getRuns++
	run, ok := m.runs[id]
	if !ok {
		return model.Run{}, model.NotFoundError("reconciliation run", id)
	}
	return cloneRun(run), nil
}

func (m *memStore) MarkLedgerReconciled(_ context.Context, runID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.ledger {
		if slices.Contains(ids, l.ID) {
			m.ledger[i].ReconStatus = model.ReconReconciled
			m.ledger[i].ReconciledBy = runID
		}
	}
	return nil
}

func (m *memStore) MarkBankMatched(_ context.Context, runID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarkBank != nil {
		return m.failMarkBank
	}
	for i, b := range m.bank {
		if slices.Contains(ids, b.ID) {
			m.bank[i].Matched = true
			m.bank[i].MatchedBy = runID
		}
	}
	return nil
}

func (m *memStore) setFailMarkBank(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMarkBank = err
}

func (m *memStore) ledgerByID(id string) model.LedgerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.ledger {
		if l.ID == id {
			return l
		}
	}
	return model.LedgerRecord{}
}

func (m *memStore) bankByID(id string) model.BankRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bank {
		if b.ID == id {
			return b
		}
	}
	return model.BankRecord{}
}

func cloneRun(r model.Run) model.Run {
	out := r
	out.Matches = make([]model.MatchResult, len(r.Matches))
	for i, mr := range r.Matches {
		mr.Ledger = slices.Clone(mr.Ledger)
		out.Matches[i] = mr
	}
	out.UnmatchedBank = slices.Clone(r.UnmatchedBank)
	out.UnmatchedLedger = slices.Clone(r.UnmatchedLedger)
	out.Skipped = slices.Clone(r.Skipped)
	return out
}

func (m *memStore) getRunCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getRuns
}
