package match

import (
	"math"
	"strings"
	"unicode"

	"babylon/reconciler/model"
)

const (
	amountWeight      = 40.0
	dateWeight        = 20.0
	descriptionWeight = 25.0
	referenceWeight   = 15.0
	partialReference  = 10.0
)

// TextSimilarity compares two free-text descriptions by their shared words.
// Words are lowercased, split on anything that is not a letter or digit and
// kept only when longer than two characters. The result is the size of the
// intersection over the size of the larger word set, in [0,1].
func TextSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			shared++
		}
	}

	return float64(shared) / float64(max(len(ta), len(tb)))
}

func tokenize(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// Score rates how likely a bank record and a ledger record describe the same
// payment, in [0,100]. It only ranks suggestions; the automatic passes use
// explicit tolerances instead.
func Score(bank model.BankRecord, ledger model.LedgerRecord) float64 {
	amountDiff := bank.Amount.Abs().Sub(ledger.Amount.Abs()).Abs().InexactFloat64()
	days := float64(model.DaysBetween(bank.Date, ledger.Date))

	amount := clamp(amountWeight-10*amountDiff, 0, amountWeight)
	date := clamp(dateWeight-2*days, 0, dateWeight)
	description := clamp(TextSimilarity(bank.Description, ledger.Description)*descriptionWeight, 0, descriptionWeight)
	reference := clamp(referenceScore(bank, ledger), 0, referenceWeight)

	return clamp(amount+date+description+reference, 0, 100)
}

func referenceScore(bank model.BankRecord, ledger model.LedgerRecord) float64 {
	ref := strings.TrimSpace(bank.Reference)
	if ref == "" {
		return 0
	}
	if ref == strings.TrimSpace(ledger.ReferenceID) {
		return referenceWeight
	}
	if strings.Contains(ledger.Description, ref) {
		return partialReference
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
