package reconcile

import (
	"github.com/shopspring/decimal"

	"babylon/reconciler/model"
)

// transitWindowDays is how far a deposit may be from a bank line and still
// count as having reached the bank.
const transitWindowDays = 5

// bookBalance is the signed sum of COMPLETED ledger transactions.
func bookBalance(ledger []model.LedgerRecord) decimal.Decimal {
	total := decimal.Zero
	for _, l := range ledger {
		if l.Status == model.StatusCompleted {
			total = total.Add(l.Signed())
		}
	}
	return total
}

// outstandingChecks sums unmatched CREDIT checks.
func outstandingChecks(unmatched []model.LedgerRecord) decimal.Decimal {
	total := decimal.Zero
	for _, l := range unmatched {
		if l.Direction == model.Credit && l.ReferenceType == model.ReferenceCheck {
			total = total.Add(l.Amount.Abs())
		}
	}
	return total
}

// depositsInTransit sums unmatched DEBIT deposits that no statement line
// could account for within the transit window.
func depositsInTransit(unmatched []model.LedgerRecord, bank []model.BankRecord, tolerance decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range unmatched {
		if l.Direction != model.Debit || l.ReferenceType != model.ReferenceDeposit {
			continue
		}
		if !reachedBank(l, bank, tolerance) {
			total = total.Add(l.Amount.Abs())
		}
	}
	return total
}

func reachedBank(l model.LedgerRecord, bank []model.BankRecord, tolerance decimal.Decimal) bool {
	for _, b := range bank {
		if b.Direction != l.Direction {
			continue
		}
		if model.DaysBetween(b.Date, l.Date) > transitWindowDays {
			continue
		}
		if b.Amount.Abs().Sub(l.Amount.Abs()).Abs().LessThanOrEqual(tolerance) {
			return true
		}
	}
	return false
}
