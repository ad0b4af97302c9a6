package match

import (
	"fmt"
	"slices"

	"babylon/reconciler/model"
)

// Manual records a user-chosen match without scoring. The bank record and
// every ledger record must still be unmatched in s; otherwise nothing is
// linked and ErrConflict (already matched) or ErrNotFound (unknown id) is
// returned. Mixed directions are rejected with ErrInvalidRecord.
func (e *Engine) Manual(s State, bankID string, ledgerIDs []string) (State, model.MatchResult, error) {
	if len(ledgerIDs) == 0 {
		return s, model.MatchResult{}, model.InvalidRecordError(bankID, "manual match needs at least one ledger record")
	}

	matchedBank := make(map[string]struct{})
	matchedLedger := make(map[string]struct{})
	for _, m := range s.Matches {
		matchedBank[m.Bank.ID] = struct{}{}
		for _, l := range m.Ledger {
			matchedLedger[l.ID] = struct{}{}
		}
	}

	if _, ok := matchedBank[bankID]; ok {
		return s, model.MatchResult{}, model.ConflictError("bank record", bankID)
	}
	bankIdx := slices.IndexFunc(s.Bank, func(b model.BankRecord) bool { return b.ID == bankID })
	if bankIdx < 0 {
		return s, model.MatchResult{}, model.NotFoundError("bank record", bankID)
	}
	bank := s.Bank[bankIdx]

	ids := make(map[string]struct{}, len(ledgerIDs))
	group := make([]model.LedgerRecord, 0, len(ledgerIDs))
	for _, id := range ledgerIDs {
		if _, dup := ids[id]; dup {
			return s, model.MatchResult{}, model.InvalidRecordError(id, "ledger record listed twice")
		}
		ids[id] = struct{}{}

		if _, ok := matchedLedger[id]; ok {
			return s, model.MatchResult{}, model.ConflictError("ledger record", id)
		}
		idx := slices.IndexFunc(s.Ledger, func(l model.LedgerRecord) bool { return l.ID == id })
		if idx < 0 {
			return s, model.MatchResult{}, model.NotFoundError("ledger record", id)
		}
		ledger := s.Ledger[idx]
		if ledger.Direction != bank.Direction {
			return s, model.MatchResult{}, model.InvalidRecordError(id,
				fmt.Sprintf("direction %s does not match bank record %s", ledger.Direction, bank.Direction))
		}
		group = append(group, ledger)
	}

	out := s.clone()
	result := e.newMatch(bank, group, model.MatchManual, manualScore, bank.Amount.Abs())
	out.Matches = append(out.Matches, result)
	out.Bank = removeBank(out.Bank, bankID)
	out.Ledger = removeLedger(out.Ledger, ids)

	return out, result, nil
}
