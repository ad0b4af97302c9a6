package synthetic

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAccountID = "0000"
	defaultSeed      = 1
	// periodDays is how many days the generated statement spans.
	periodDays = 28
	// checkClearingDays is how long a generated check takes to reach the bank.
	checkClearingDays = 3
)

var (
	statementHeader = []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance", "Check or Slip #"}
	ledgerHeader    = []string{"Id", "Date", "Description", "Reference Type", "Reference Id", "Amount", "Type", "Status"}
	openingBalance  = decimal.NewFromInt(10000)
)

// Options controls the generated data set.
type Options struct {
	Rows      int
	Dir       string
	AccountID string
	Start     time.Time
	Seed      int64
}

// Files are the paths written by Generate.
type Files struct {
	StatementPath string
	LedgerPath    string
}

type bankRow struct {
	date        time.Time
	description string
	amount      decimal.Decimal
	reference   string
}

type ledgerRow struct {
	id          string
	date        time.Time
	description string
	refType     string
	refID       string
	amount      decimal.Decimal
}

// Generate writes a bank statement and a ledger export for the same account
// that exercise every kind of match. Rows cycle through five cases:
// a same-day deposit, a check that clears a few days late, a deposit that
// bundles several ledger receipts, a check that never clears and a bank fee
// with no ledger entry.
func Generate(opts Options) (*Files, error) {
	if opts.Rows <= 0 {
		return nil, fmt.Errorf("rows must be positive, got %d", opts.Rows)
	}
	if opts.AccountID == "" {
		opts.AccountID = defaultAccountID
	}
	if opts.Start.IsZero() {
		now := time.Now().UTC()
		opts.Start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.Seed == 0 {
		opts.Seed = defaultSeed
	}

	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory '%s': %w", opts.Dir, err)
	}

	bank, ledger := buildRows(opts)

	files := &Files{
		StatementPath: filepath.Join(opts.Dir, fmt.Sprintf("chase%s_synthetic_statement.csv", opts.AccountID)),
		LedgerPath:    filepath.Join(opts.Dir, fmt.Sprintf("ledger_%s_synthetic.csv", opts.AccountID)),
	}
	if err := writeCSV(files.StatementPath, statementHeader, statementRecords(bank)); err != nil {
		return nil, err
	}
	if err := writeCSV(files.LedgerPath, ledgerHeader, ledgerRecords(ledger)); err != nil {
		return nil, err
	}
	return files, nil
}

func buildRows(opts Options) ([]bankRow, []ledgerRow) {
	rng := rand.New(rand.NewSource(opts.Seed))
	amount := func() decimal.Decimal {
		return decimal.New(int64(rng.Intn(200000)+5000), -2)
	}

	var (
		bank   []bankRow
		ledger []ledgerRow
		check  = 1000
	)
	addLedger := func(date time.Time, desc, refType, refID string, amt decimal.Decimal) {
		ledger = append(ledger, ledgerRow{
			id:          fmt.Sprintf("SYN-%04d", len(ledger)+1),
			date:        date,
			description: desc,
			refType:     refType,
			refID:       refID,
			amount:      amt,
		})
	}

	for i := 0; i < opts.Rows; i++ {
		date := opts.Start.AddDate(0, 0, i*periodDays/opts.Rows)

		switch i % 5 {
		case 0:
			amt := amount()
			ref := fmt.Sprintf("D-%d", i)
			bank = append(bank, bankRow{date: date, description: "REMOTE DEPOSIT " + ref, amount: amt})
			addLedger(date, "Customer receipt "+ref, "DEPOSIT", ref, amt)
		case 1:
			check++
			amt := amount()
			ref := fmt.Sprint(check)
			bank = append(bank, bankRow{date: date, description: "CHECK " + ref, amount: amt.Neg(), reference: ref})
			addLedger(date.AddDate(0, 0, -checkClearingDays), "Check "+ref+" to supplier", "CHECK", ref, amt)
		case 2:
			parts := 2 + rng.Intn(2)
			total := decimal.Zero
			for p := 0; p < parts; p++ {
				amt := amount()
				total = total.Add(amt)
				addLedger(date.AddDate(0, 0, -p), fmt.Sprintf("Card settlement %d-%d", i, p), "", "", amt)
			}
			bank = append(bank, bankRow{date: date, description: "MERCHANT BATCH DEPOSIT", amount: total})
		case 3:
			check++
			addLedger(date, fmt.Sprintf("Check %d to contractor", check), "CHECK", fmt.Sprint(check), amount())
		default:
			bank = append(bank, bankRow{date: date, description: "MONTHLY SERVICE FEE", amount: decimal.New(int64(500+rng.Intn(2000)), -2).Neg()})
		}
	}
	return bank, ledger
}

func statementRecords(rows []bankRow) [][]string {
	balance := openingBalance
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		balance = balance.Add(r.amount)
		details := "DEBIT"
		if r.amount.IsPositive() {
			details = "CREDIT"
		}
		records = append(records, []string{
			details,
			r.date.Format("01/02/2006"),
			r.description,
			r.amount.StringFixed(2),
			"SYNTHETIC",
			balance.StringFixed(2),
			r.reference,
		})
	}
	return records
}

func ledgerRecords(rows []ledgerRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		direction := "DEBIT"
		if r.refType == "CHECK" {
			direction = "CREDIT"
		}
		records = append(records, []string{
			r.id,
			r.date.Format(time.DateOnly),
			r.description,
			r.refType,
			r.refID,
			r.amount.StringFixed(2),
			direction,
			"COMPLETED",
		})
	}
	return records
}

func writeCSV(path string, header []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write rows to '%s': %w", path, err)
	}
	return nil
}
