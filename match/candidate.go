package match

import (
	"github.com/shopspring/decimal"

	"babylon/reconciler/model"
)

// IsCandidate applies the hard constraints shared by every pass.
//
// Direction compares the book-convention directions of both records: a DEBIT
// bank line (money in) only pairs with a DEBIT ledger entry, a CREDIT line
// only with a CREDIT entry. It is not a comparison of raw statement signs.
func IsCandidate(bank model.BankRecord, ledger model.LedgerRecord, tolerance decimal.Decimal, dayWindow int) bool {
	if bank.Direction != ledger.Direction {
		return false
	}
	if bank.Amount.Abs().Sub(ledger.Amount.Abs()).Abs().GreaterThan(tolerance) {
		return false
	}
	return model.DaysBetween(bank.Date, ledger.Date) <= dayWindow
}

// firstCandidate returns the index of the first ledger record in pool order
// that passes IsCandidate, or -1.
func firstCandidate(bank model.BankRecord, pool []model.LedgerRecord, tolerance decimal.Decimal, dayWindow int) int {
	for i, l := range pool {
		if IsCandidate(bank, l, tolerance, dayWindow) {
			return i
		}
	}
	return -1
}
