package match_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"babylon/reconciler/match"
	"babylon/reconciler/model"
)

func TestIsCandidate(t *testing.T) {
	tolerance := decimal.NewFromInt(1)
	b := bankRec("b1", "500", model.Debit, day(2024, 3, 10))

	tests := []struct {
		name   string
		ledger model.LedgerRecord
		window int
		want   bool
	}{
		{"same everything", ledgerRec("l", "500", model.Debit, day(2024, 3, 10)), 1, true},
		{"amount at tolerance", ledgerRec("l", "501", model.Debit, day(2024, 3, 10)), 1, true},
		{"amount past tolerance", ledgerRec("l", "501.01", model.Debit, day(2024, 3, 10)), 1, false},
		{"date at window", ledgerRec("l", "500", model.Debit, day(2024, 3, 11)), 1, true},
		{"date past window", ledgerRec("l", "500", model.Debit, day(2024, 3, 12)), 1, false},
		{"wider window", ledgerRec("l", "500", model.Debit, day(2024, 3, 17)), 7, true},
		{"date before bank", ledgerRec("l", "500", model.Debit, day(2024, 3, 3)), 7, true},
		{"credit ledger never pairs with debit bank", ledgerRec("l", "500", model.Credit, day(2024, 3, 10)), 1, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, match.IsCandidate(b, test.ledger, tolerance, test.window))
		})
	}
}

func TestIsCandidate_ComparesAbsoluteAmounts(t *testing.T) {
	// Amounts compare by magnitude; direction alone carries the side.
	b := bankRec("b1", "-75.77", model.Credit, day(2024, 1, 31))
	l := ledgerRec("l1", "75.77", model.Credit, day(2024, 1, 31))

	assert.True(t, match.IsCandidate(b, l, decimal.Zero, 0))
}
