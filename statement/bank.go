package statement

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/model"
)

// ParseStatement reads a bank export with the columns
// Details, Posting Date, Description, Amount, Type, Balance, Check or Slip #
// and the optional Id, Reference and Currency.
//
// Amounts are signed from the account holder's view: positive lines are
// money in and become DEBIT records, negative lines become CREDIT records.
// Records are returned oldest first; newest-first exports are reversed.
// Opening and closing balances come from the running balance column when
// present.
func (p *CSVParser) ParseStatement(ctx context.Context, filePath, source, accountID string) (*StatementFile, error) {
	logger := appcontext.LoggerFromContext(ctx)

	t, err := readTable(ctx, filePath)
	if err != nil {
		return nil, err
	}

	out := &StatementFile{}
	if len(t.rows) == 0 {
		return out, nil
	}
	for _, col := range []string{"posting date", "amount"} {
		if !t.has(col) {
			return nil, MissingColumnError(col, filePath)
		}
	}

	fileName := filepath.Base(filePath)
	for i, row := range t.rows {
		rowNum := i + 1
		skip := func(reason string, attrs ...any) {
			logger.WarnContext(ctx, "Skipping statement row", append([]any{"file", fileName, "row", rowNum, "reason", reason}, attrs...)...)
			out.Skipped = append(out.Skipped, model.RecordError{Row: rowNum, Reason: reason})
		}

		date, err := parseDate(t.get(row, "posting date"))
		if err != nil {
			skip("invalid posting date", "error", err)
			continue
		}

		amountStr := t.get(row, "amount")
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			skip("invalid amount", "value", amountStr)
			continue
		}

		var balance *decimal.Decimal
		if balanceStr := t.get(row, "balance"); balanceStr != "" {
			parsed, err := decimal.NewFromString(balanceStr)
			if err != nil {
				// the line is still usable without its running balance
				logger.WarnContext(ctx, "Ignoring invalid balance", "file", fileName, "row", rowNum, "value", balanceStr)
			} else {
				balance = &parsed
			}
		}

		direction := model.Debit
		if amount.IsNegative() {
			direction = model.Credit
		}

		reference := t.get(row, "reference")
		if reference == "" {
			reference = t.get(row, "check or slip #")
		}
		description := t.get(row, "description")

		id := t.get(row, "id")
		if id == "" {
			id = rowID("bnk_", accountID, fileName, strconv.Itoa(rowNum), date.Format("2006-01-02"), description, amount.String())
		}

		out.Records = append(out.Records, model.BankRecord{
			ID:          id,
			AccountID:   accountID,
			Date:        date,
			Description: description,
			Reference:   reference,
			Amount:      amount.Abs(),
			Direction:   direction,
			Balance:     balance,
		})
	}

	if len(out.Records) == 0 {
		return out, nil
	}

	if out.Records[0].Date.After(out.Records[len(out.Records)-1].Date) {
		for i, j := 0, len(out.Records)-1; i < j; i, j = i+1, j-1 {
			out.Records[i], out.Records[j] = out.Records[j], out.Records[i]
		}
	}

	first, last := out.Records[0], out.Records[len(out.Records)-1]
	stmt := model.Statement{
		AccountID:   accountID,
		Source:      source,
		Currency:    t.get(t.rows[0], "currency"),
		PeriodStart: model.DateOnly(first.Date),
		PeriodEnd:   model.DateOnly(last.Date),
	}
	if first.Balance != nil {
		stmt.OpeningBalance = first.Balance.Sub(first.Signed())
	}
	if last.Balance != nil {
		stmt.ClosingBalance = *last.Balance
	} else {
		net := decimal.Zero
		for _, r := range out.Records {
			net = net.Add(r.Signed())
		}
		stmt.ClosingBalance = stmt.OpeningBalance.Add(net)
	}
	stmt.ID = rowID("stm_", accountID, source, fileName, stmt.PeriodStart.Format("2006-01-02"), stmt.PeriodEnd.Format("2006-01-02"))

	for i := range out.Records {
		out.Records[i].StatementID = stmt.ID
	}
	out.Statement = stmt

	return out, nil
}
