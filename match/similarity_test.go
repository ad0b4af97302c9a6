package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"babylon/reconciler/match"
	"babylon/reconciler/model"
)

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Invoice ACME 1001", "invoice acme 1001", 1},
		{"partial overlap", "Payment from ACME Corp", "ACME corp payment invoice 42", 0.75},
		{"short words ignored", "to of a", "to of a", 0},
		{"empty", "", "anything here", 0},
		{"blank", "   ", "   ", 0},
		{"punctuation splits words", "ACME-CORP/transfer", "acme corp transfer", 1},
		{"no overlap", "rent march", "salary april", 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.InDelta(t, test.want, match.TextSimilarity(test.a, test.b), 1e-9)
			assert.InDelta(t, test.want, match.TextSimilarity(test.b, test.a), 1e-9, "must be symmetric")
		})
	}
}

func TestScore_AllComponents(t *testing.T) {
	b := bankRec("b1", "100", model.Debit, day(2024, 3, 10))
	b.Description = "Invoice ACME 1001"
	b.Reference = "INV-1001"

	l := ledgerRec("l1", "100", model.Debit, day(2024, 3, 10))
	l.Description = "invoice acme 1001"
	l.ReferenceID = "INV-1001"

	assert.InDelta(t, 100, match.Score(b, l), 1e-9)
}

func TestScore_PartialComponents(t *testing.T) {
	b := bankRec("b1", "102", model.Debit, day(2024, 3, 10))
	b.Description = "wire"
	b.Reference = "INV9"

	l := ledgerRec("l1", "100", model.Debit, day(2024, 3, 13))
	l.Description = "paid INV9 today"

	// amount 40-20, date 20-6, description 0, reference substring 10
	assert.InDelta(t, 44, match.Score(b, l), 1e-9)
}

func TestScore_Bounds(t *testing.T) {
	b := bankRec("b1", "100000", model.Debit, day(2020, 1, 1))
	l := ledgerRec("l1", "1", model.Credit, day(2024, 1, 1))
	assert.Equal(t, 0.0, match.Score(b, l))

	for _, amount := range []string{"0", "0.5", "3.99", "4", "250"} {
		for _, offset := range []int{0, 1, 9, 10, 400} {
			lb := ledgerRec("l", amount, model.Debit, day(2024, 1, 1).AddDate(0, 0, offset))
			s := match.Score(bankRec("b", "0", model.Debit, day(2024, 1, 1)), lb)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 100.0)
		}
	}
}
