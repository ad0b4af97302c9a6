package match

import (
	"sort"

	"github.com/shopspring/decimal"

	"babylon/reconciler/model"
)

const (
	suggestDayWindow     = 7
	maxSuggestCandidates = 3
)

var suggestTolerance = decimal.NewFromInt(1)

// Suggest ranks up to three ledger candidates for every bank record that has
// at least one, for manual review. Candidates must pass IsCandidate with a
// tolerance of 1 and a 7 day window, and are ordered by Score, ties kept in
// pool order. Nothing is consumed: the same ledger record may be suggested
// for several bank records, and repeated calls return the same ranking.
func Suggest(bank []model.BankRecord, ledger []model.LedgerRecord) []model.Suggestion {
	var suggestions []model.Suggestion

	for _, b := range bank {
		var scored []model.ScoredCandidate
		for _, l := range ledger {
			if !IsCandidate(b, l, suggestTolerance, suggestDayWindow) {
				continue
			}
			scored = append(scored, model.ScoredCandidate{Ledger: l, Score: Score(b, l)})
		}
		if len(scored) == 0 {
			continue
		}

		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Score > scored[j].Score
		})
		if len(scored) > maxSuggestCandidates {
			scored = scored[:maxSuggestCandidates]
		}

		suggestions = append(suggestions, model.Suggestion{
			Bank:       b,
			Candidates: scored,
			Confidence: scored[0].Score,
		})
	}

	return suggestions
}
