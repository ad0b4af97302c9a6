package match

import (
	"slices"

	"babylon/reconciler/model"
)

// ExactPass pairs bank records with ledger records dated at most
// ExactDayWindow days apart. Every match scores 100.
func (e *Engine) ExactPass(s State) State {
	return e.pairwise(s, e.cfg.ExactDayWindow, model.MatchExact, func(int) float64 {
		return exactScore
	})
}

// AmountPass repeats the pairing with the wider AmountDayWindow. The score
// starts at 90 for same-day records, drops 5 per day and never goes below 60.
func (e *Engine) AmountPass(s State) State {
	return e.pairwise(s, e.cfg.AmountDayWindow, model.MatchAmount, amountScore)
}

func amountScore(days int) float64 {
	return max(60, 90-5*float64(days))
}

// pairwise walks a snapshot of the bank pool in order and takes, for each
// bank record, the first ledger record in pool order that is a candidate.
// This is first-found, not a globally optimal assignment.
func (e *Engine) pairwise(s State, dayWindow int, typ model.MatchType, score func(days int) float64) State {
	out := s.clone()

	for _, bank := range slices.Clone(out.Bank) {
		idx := firstCandidate(bank, out.Ledger, e.cfg.Tolerance, dayWindow)
		if idx < 0 {
			continue
		}

		ledger := out.Ledger[idx]
		days := model.DaysBetween(bank.Date, ledger.Date)

		out.Matches = append(out.Matches,
			e.newMatch(bank, []model.LedgerRecord{ledger}, typ, score(days), bank.Amount.Abs()))
		out.Bank = removeBank(out.Bank, bank.ID)
		out.Ledger = slices.Delete(out.Ledger, idx, idx+1)
	}

	return out
}
