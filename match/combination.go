package match

import (
	"slices"

	"github.com/shopspring/decimal"

	"babylon/reconciler/model"
)

// CombinationPass looks for groups of ledger records that together account
// for one bank record, e.g. several invoices settled by a single transfer.
//
// For each remaining bank record the ledger pool is narrowed to records of
// the same direction within CombinationDayWindow days. Subsets are tried from
// MinCombinationSize up to MaxCombinationSize, and within a size in
// lexicographic order of pool position. The first subset whose absolute
// amounts sum to within Tolerance of the bank amount wins.
func (e *Engine) CombinationPass(s State) State {
	out := s.clone()

	for _, bank := range slices.Clone(out.Bank) {
		candidates := e.combinationCandidates(bank, out.Ledger)
		if len(candidates) < e.cfg.MinCombinationSize {
			continue
		}

		amounts := make([]decimal.Decimal, len(candidates))
		for i, c := range candidates {
			amounts[i] = c.Amount.Abs()
		}

		subset := findSubset(bank.Amount.Abs(), amounts, e.cfg.MinCombinationSize, e.cfg.MaxCombinationSize, e.cfg.Tolerance)
		if subset == nil {
			continue
		}

		group := make([]model.LedgerRecord, len(subset))
		ids := make(map[string]struct{}, len(subset))
		for i, idx := range subset {
			group[i] = candidates[idx]
			ids[candidates[idx].ID] = struct{}{}
		}

		out.Matches = append(out.Matches,
			e.newMatch(bank, group, model.MatchCombined, combinedScore, bank.Amount.Abs()))
		out.Bank = removeBank(out.Bank, bank.ID)
		out.Ledger = removeLedger(out.Ledger, ids)
	}

	return out
}

// combinationCandidates keeps pool order. Records whose amount alone already
// exceeds the bank amount plus tolerance cannot be part of any subset and are
// dropped before the MaxCandidates cap is applied.
func (e *Engine) combinationCandidates(bank model.BankRecord, pool []model.LedgerRecord) []model.LedgerRecord {
	limit := bank.Amount.Abs().Add(e.cfg.Tolerance)

	var candidates []model.LedgerRecord
	for _, l := range pool {
		if l.Direction != bank.Direction {
			continue
		}
		if model.DaysBetween(bank.Date, l.Date) > e.cfg.CombinationDayWindow {
			continue
		}
		if l.Amount.Abs().GreaterThan(limit) {
			continue
		}
		candidates = append(candidates, l)
		if e.cfg.MaxCandidates > 0 && len(candidates) == e.cfg.MaxCandidates {
			break
		}
	}
	return candidates
}

// findSubset returns the positions of the first k-subset, k in [minK,maxK],
// whose sum is within tolerance of target, or nil.
func findSubset(target decimal.Decimal, amounts []decimal.Decimal, minK, maxK int, tolerance decimal.Decimal) []int {
	n := len(amounts)

	for k := minK; k <= maxK && k <= n; k++ {
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}

		for {
			sum := decimal.Zero
			for _, i := range idx {
				sum = sum.Add(amounts[i])
			}
			if sum.Sub(target).Abs().LessThanOrEqual(tolerance) {
				return idx
			}

			// advance to the next combination in lexicographic order
			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				break
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}

	return nil
}
