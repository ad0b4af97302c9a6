package match_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babylon/reconciler/match"
	"babylon/reconciler/model"
)

func TestCombinationPass_SmallestSizeFirst(t *testing.T) {
	state := match.NewState(
		[]model.BankRecord{bankRec("b1", "150", model.Debit, day(2024, 3, 1))},
		[]model.LedgerRecord{
			ledgerRec("l1", "50", model.Debit, day(2024, 3, 1)),
			ledgerRec("l2", "50", model.Debit, day(2024, 3, 1)),
			ledgerRec("l3", "50", model.Debit, day(2024, 3, 1)),
			ledgerRec("l4", "100", model.Debit, day(2024, 3, 1)),
		},
	)

	out := newEngine().CombinationPass(state)

	require.Len(t, out.Matches, 1)
	// {l1,l4} is the first pair in lexicographic order that sums to 150.
	assert.Equal(t, []string{"l1", "l4"}, out.Matches[0].LedgerIDs())
	assert.Equal(t, []string{"l2", "l3"}, ledgerIDs(out.Ledger))
}

func TestCombinationPass_RespectsWindowAndDirection(t *testing.T) {
	state := match.NewState(
		[]model.BankRecord{bankRec("b1", "200", model.Debit, day(2024, 3, 1))},
		[]model.LedgerRecord{
			ledgerRec("credit", "100", model.Credit, day(2024, 3, 1)),
			ledgerRec("too-late", "100", model.Debit, day(2024, 3, 12)),
			ledgerRec("ok", "100", model.Debit, day(2024, 3, 11)),
		},
	)

	out := newEngine().CombinationPass(state)

	assert.Empty(t, out.Matches)
	assert.Len(t, out.Bank, 1)
	assert.Len(t, out.Ledger, 3)
}

func TestCombinationPass_SizeCap(t *testing.T) {
	ledger := make([]model.LedgerRecord, 0, 5)
	for _, id := range []string{"l1", "l2", "l3", "l4", "l5"} {
		ledger = append(ledger, ledgerRec(id, "100", model.Credit, day(2024, 3, 1)))
	}
	bank := []model.BankRecord{bankRec("b1", "500", model.Credit, day(2024, 3, 1))}

	out := newEngine().CombinationPass(match.NewState(bank, ledger))
	assert.Empty(t, out.Matches, "five records exceed the default size cap of four")

	cfg := match.DefaultConfig()
	cfg.MaxCombinationSize = 5
	out = match.NewEngine(cfg).CombinationPass(match.NewState(bank, ledger))
	require.Len(t, out.Matches, 1)
	assert.Len(t, out.Matches[0].Ledger, 5)
}

func TestCombinationPass_Tolerance(t *testing.T) {
	state := match.NewState(
		[]model.BankRecord{bankRec("b1", "100", model.Debit, day(2024, 3, 1))},
		[]model.LedgerRecord{
			ledgerRec("l1", "33.33", model.Debit, day(2024, 3, 1)),
			ledgerRec("l2", "33.33", model.Debit, day(2024, 3, 2)),
			ledgerRec("l3", "33.33", model.Debit, day(2024, 3, 3)),
		},
	)

	out := newEngine().CombinationPass(state)

	require.Len(t, out.Matches, 1)
	assert.True(t, out.Matches[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestCombinationPass_LedgerNotReused(t *testing.T) {
	state := match.NewState(
		[]model.BankRecord{
			bankRec("b1", "100", model.Debit, day(2024, 3, 1)),
			bankRec("b2", "100", model.Debit, day(2024, 3, 1)),
		},
		[]model.LedgerRecord{
			ledgerRec("l1", "50", model.Debit, day(2024, 3, 1)),
			ledgerRec("l2", "50", model.Debit, day(2024, 3, 1)),
			ledgerRec("l3", "50", model.Debit, day(2024, 3, 1)),
		},
	)

	out := newEngine().CombinationPass(state)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, "b1", out.Matches[0].Bank.ID)
	assert.Equal(t, []string{"b2"}, bankIDs(out.Bank))
	assert.Equal(t, []string{"l3"}, ledgerIDs(out.Ledger))
}

func TestCombinationPass_CandidateCap(t *testing.T) {
	cfg := match.DefaultConfig()
	cfg.MaxCandidates = 2

	state := match.NewState(
		[]model.BankRecord{bankRec("b1", "30", model.Debit, day(2024, 3, 1))},
		[]model.LedgerRecord{
			ledgerRec("l1", "10", model.Debit, day(2024, 3, 1)),
			ledgerRec("l2", "10", model.Debit, day(2024, 3, 1)),
			ledgerRec("l3", "10", model.Debit, day(2024, 3, 1)),
		},
	)

	out := match.NewEngine(cfg).CombinationPass(state)
	assert.Empty(t, out.Matches, "only the first two candidates are considered")
}

func TestCombinationPass_NoCandidateCapByDefault(t *testing.T) {
	ledger := make([]model.LedgerRecord, 0, 45)
	for i := 0; i < 43; i++ {
		ledger = append(ledger, ledgerRec(fmt.Sprintf("small-%02d", i), "1", model.Debit, day(2024, 3, 1)))
	}
	ledger = append(ledger,
		ledgerRec("half-a", "50", model.Debit, day(2024, 3, 2)),
		ledgerRec("half-b", "50", model.Debit, day(2024, 3, 2)),
	)
	state := match.NewState([]model.BankRecord{bankRec("b1", "100", model.Debit, day(2024, 3, 1))}, ledger)

	out := newEngine().CombinationPass(state)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, []string{"half-a", "half-b"}, out.Matches[0].LedgerIDs())
	assert.Len(t, out.Ledger, 43)
}
