package match_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babylon/reconciler/match"
	"babylon/reconciler/model"
)

func TestRun_ExactMatch(t *testing.T) {
	bank := []model.BankRecord{bankRec("b1", "500", model.Debit, day(2024, 3, 10))}
	ledger := []model.LedgerRecord{ledgerRec("l1", "500", model.Debit, day(2024, 3, 10))}

	res := newEngine().Run(bank, ledger)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, model.MatchExact, m.Type)
	assert.Equal(t, 100.0, m.Score)
	assert.True(t, m.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "b1", m.Bank.ID)
	assert.True(t, m.Bank.Matched)
	assert.Equal(t, []string{"l1"}, m.LedgerIDs())
	assert.Equal(t, model.ReconMatched, m.Ledger[0].ReconStatus)
	assert.Empty(t, res.Bank)
	assert.Empty(t, res.Ledger)
}

func TestRun_CombinedMatchOfThree(t *testing.T) {
	bank := []model.BankRecord{bankRec("b1", "300", model.Credit, day(2024, 3, 1))}
	ledger := []model.LedgerRecord{
		ledgerRec("l1", "100", model.Credit, day(2024, 3, 1)),
		ledgerRec("l2", "100", model.Credit, day(2024, 3, 2)),
		ledgerRec("l3", "100", model.Credit, day(2024, 3, 3)),
	}

	res := newEngine().Run(bank, ledger)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, model.MatchCombined, m.Type)
	assert.Equal(t, 75.0, m.Score)
	assert.True(t, m.Amount.Equal(decimal.NewFromInt(300)))
	assert.ElementsMatch(t, []string{"l1", "l2", "l3"}, m.LedgerIDs())
	assert.Empty(t, res.Bank)
	assert.Empty(t, res.Ledger)
}

func TestRun_NoCandidateLeavesBankUnmatched(t *testing.T) {
	bank := []model.BankRecord{bankRec("b1", "999", model.Credit, day(2024, 3, 1))}
	ledger := []model.LedgerRecord{ledgerRec("l1", "10", model.Debit, day(2024, 6, 1))}

	res := newEngine().Run(bank, ledger)

	assert.Empty(t, res.Matches)
	assert.Equal(t, []string{"b1"}, bankIDs(res.Bank))
	assert.Equal(t, []string{"l1"}, ledgerIDs(res.Ledger))
	assert.Empty(t, res.Skipped)
}

func TestRun_ExactPassSkipsFarCandidate(t *testing.T) {
	bank := []model.BankRecord{bankRec("b1", "200", model.Debit, day(2024, 3, 10))}
	ledger := []model.LedgerRecord{
		ledgerRec("far", "200", model.Debit, day(2024, 3, 15)),
		ledgerRec("near", "200", model.Debit, day(2024, 3, 10)),
	}

	res := newEngine().Run(bank, ledger)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, model.MatchExact, res.Matches[0].Type)
	assert.Equal(t, []string{"near"}, res.Matches[0].LedgerIDs())
	assert.Equal(t, []string{"far"}, ledgerIDs(res.Ledger))
}

func TestRun_AmountPassTakesFirstInPoolOrder(t *testing.T) {
	// Neither is within one day; the second is closer but the first one in
	// pool order is taken.
	bank := []model.BankRecord{bankRec("b1", "200", model.Debit, day(2024, 3, 10))}
	ledger := []model.LedgerRecord{
		ledgerRec("five-days", "200", model.Debit, day(2024, 3, 15)),
		ledgerRec("three-days", "200", model.Debit, day(2024, 3, 13)),
	}

	res := newEngine().Run(bank, ledger)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, model.MatchAmount, m.Type)
	assert.Equal(t, []string{"five-days"}, m.LedgerIDs())
	assert.Equal(t, 65.0, m.Score)
	assert.Equal(t, []string{"three-days"}, ledgerIDs(res.Ledger))
}

func TestAmountPass_ScoreFloor(t *testing.T) {
	cfg := match.DefaultConfig()
	cfg.AmountDayWindow = 30
	engine := match.NewEngine(cfg, match.WithIDGenerator(sequenceIDs()))

	state := match.NewState(
		[]model.BankRecord{
			bankRec("same-day", "10", model.Debit, day(2024, 3, 1)),
			bankRec("twenty-days", "20", model.Debit, day(2024, 3, 1)),
		},
		[]model.LedgerRecord{
			ledgerRec("l1", "10", model.Debit, day(2024, 3, 1)),
			ledgerRec("l2", "20", model.Debit, day(2024, 3, 21)),
		},
	)

	out := engine.AmountPass(state)

	require.Len(t, out.Matches, 2)
	assert.Equal(t, 90.0, out.Matches[0].Score)
	assert.Equal(t, 60.0, out.Matches[1].Score)
}

func TestPasses_DoNotMutateInput(t *testing.T) {
	bank := []model.BankRecord{bankRec("b1", "500", model.Debit, day(2024, 3, 10))}
	ledger := []model.LedgerRecord{ledgerRec("l1", "500", model.Debit, day(2024, 3, 10))}
	state := match.NewState(bank, ledger)

	out := newEngine().ExactPass(state)

	require.Len(t, out.Matches, 1)
	assert.Len(t, state.Bank, 1)
	assert.Len(t, state.Ledger, 1)
	assert.Empty(t, state.Matches)
	assert.False(t, bank[0].Matched)
	assert.Equal(t, model.ReconUnmatched, ledger[0].ReconStatus)
}

func TestRun_SnapshotVisitsEveryBankRecord(t *testing.T) {
	// Consecutive matches shrink the live pool; every record must still be visited once.
	bank := []model.BankRecord{
		bankRec("b1", "10", model.Debit, day(2024, 3, 1)),
		bankRec("b2", "20", model.Debit, day(2024, 3, 1)),
		bankRec("b3", "30", model.Debit, day(2024, 3, 1)),
	}
	ledger := []model.LedgerRecord{
		ledgerRec("l3", "30", model.Debit, day(2024, 3, 1)),
		ledgerRec("l2", "20", model.Debit, day(2024, 3, 1)),
		ledgerRec("l1", "10", model.Debit, day(2024, 3, 1)),
	}

	res := newEngine().Run(bank, ledger)

	require.Len(t, res.Matches, 3)
	for i, want := range []string{"b1", "b2", "b3"} {
		assert.Equal(t, want, res.Matches[i].Bank.ID)
	}
}

func TestRun_SkipsInvalidAndDuplicateRecords(t *testing.T) {
	noDate := bankRec("b-bad", "10", model.Debit, day(2024, 3, 1))
	noDate.Date = time.Time{}

	bank := []model.BankRecord{
		bankRec("b1", "10", model.Debit, day(2024, 3, 1)),
		noDate,
		bankRec("b1", "99", model.Debit, day(2024, 3, 1)),
	}
	badLedger := ledgerRec("l-bad", "10", model.Debit, day(2024, 3, 1))
	badLedger.Direction = "UNKNOWN"
	ledger := []model.LedgerRecord{badLedger, ledgerRec("l1", "10", model.Debit, day(2024, 3, 1))}

	res := newEngine().Run(bank, ledger)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "b1", res.Matches[0].Bank.ID)
	assert.Empty(t, res.Bank)
	assert.Empty(t, res.Ledger)

	skippedIDs := make([]string, 0, len(res.Skipped))
	for _, s := range res.Skipped {
		skippedIDs = append(skippedIDs, s.RecordID)
	}
	assert.ElementsMatch(t, []string{"b-bad", "b1", "l-bad"}, skippedIDs)
}

func TestRun_DisabledPasses(t *testing.T) {
	cfg := match.DefaultConfig()
	cfg.Passes = match.Passes{Combined: true}
	engine := match.NewEngine(cfg)

	bank := []model.BankRecord{bankRec("b1", "500", model.Debit, day(2024, 3, 10))}
	ledger := []model.LedgerRecord{ledgerRec("l1", "500", model.Debit, day(2024, 3, 10))}

	res := engine.Run(bank, ledger)

	assert.Empty(t, res.Matches, "pairwise passes are off and a single record is not a combination")
	assert.Len(t, res.Bank, 1)
}

func randomPools(seed int64, n int) ([]model.BankRecord, []model.LedgerRecord) {
	rng := rand.New(rand.NewSource(seed))
	dirs := []model.Direction{model.Debit, model.Credit}

	var bank []model.BankRecord
	var ledger []model.LedgerRecord
	for i := 0; i < n; i++ {
		amount := fmt.Sprintf("%d.%02d", rng.Intn(50), rng.Intn(100))
		bank = append(bank, bankRec(fmt.Sprintf("b%d", i), amount, dirs[rng.Intn(2)], day(2024, 3, 1+rng.Intn(20))))
	}
	for i := 0; i < n*2; i++ {
		amount := fmt.Sprintf("%d.%02d", rng.Intn(30), rng.Intn(100))
		ledger = append(ledger, ledgerRec(fmt.Sprintf("l%d", i), amount, dirs[rng.Intn(2)], day(2024, 3, 1+rng.Intn(20))))
	}
	return bank, ledger
}

func TestRun_PartitionAndDirectionSafety(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		bank, ledger := randomPools(seed, 25)
		res := newEngine().Run(bank, ledger)

		seenBank := map[string]int{}
		seenLedger := map[string]int{}
		for _, m := range res.Matches {
			seenBank[m.Bank.ID]++
			size := len(m.Ledger)
			if m.Type == model.MatchCombined {
				assert.GreaterOrEqual(t, size, 2)
				assert.LessOrEqual(t, size, 4)
			} else {
				assert.Equal(t, 1, size)
			}
			for _, l := range m.Ledger {
				seenLedger[l.ID]++
				assert.Equal(t, m.Bank.Direction, l.Direction, "seed %d match %s", seed, m.ID)
			}
		}
		for _, b := range res.Bank {
			seenBank[b.ID]++
		}
		for _, l := range res.Ledger {
			seenLedger[l.ID]++
		}

		require.Len(t, seenBank, len(bank), "seed %d", seed)
		require.Len(t, seenLedger, len(ledger), "seed %d", seed)
		for id, count := range seenBank {
			assert.Equal(t, 1, count, "seed %d bank %s", seed, id)
		}
		for id, count := range seenLedger {
			assert.Equal(t, 1, count, "seed %d ledger %s", seed, id)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	bank, ledger := randomPools(42, 30)

	first := newEngine().Run(bank, ledger)
	second := newEngine().Run(bank, ledger)

	assert.Equal(t, first, second)
}
