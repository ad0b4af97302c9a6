package statement

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/model"
)

// ParseLedger reads a ledger export with the columns
// Id, Date, Description, Reference Type, Reference Id, Amount, Type, Status
// and the optional Recon Status. Type is DEBIT or CREDIT; when it is empty
// the sign of Amount decides. Status defaults to COMPLETED and Recon Status
// to UNMATCHED.
func (p *CSVParser) ParseLedger(ctx context.Context, filePath, accountID string) (*LedgerFile, error) {
	logger := appcontext.LoggerFromContext(ctx)

	t, err := readTable(ctx, filePath)
	if err != nil {
		return nil, err
	}

	out := &LedgerFile{}
	if len(t.rows) == 0 {
		return out, nil
	}
	for _, col := range []string{"date", "amount"} {
		if !t.has(col) {
			return nil, MissingColumnError(col, filePath)
		}
	}

	fileName := filepath.Base(filePath)
	for i, row := range t.rows {
		rowNum := i + 1
		skip := func(reason string) {
			logger.WarnContext(ctx, "Skipping ledger row", "file", fileName, "row", rowNum, "reason", reason)
			out.Skipped = append(out.Skipped, model.RecordError{RecordID: t.get(row, "id"), Row: rowNum, Reason: reason})
		}

		date, err := parseDate(t.get(row, "date"))
		if err != nil {
			skip("invalid date")
			continue
		}

		amount, err := decimal.NewFromString(t.get(row, "amount"))
		if err != nil {
			skip("invalid amount")
			continue
		}

		var direction model.Direction
		if typ := t.get(row, "type"); typ != "" {
			direction, err = model.ParseDirection(typ)
			if err != nil {
				skip("invalid type")
				continue
			}
		} else if amount.IsNegative() {
			direction = model.Credit
		} else {
			direction = model.Debit
		}

		status := model.LedgerStatus(strings.ToUpper(t.get(row, "status")))
		switch status {
		case "":
			status = model.StatusCompleted
		case model.StatusCompleted, model.StatusPending, model.StatusCancelled:
		default:
			skip("invalid status")
			continue
		}

		reconStatus := model.ReconStatus(strings.ToUpper(t.get(row, "recon status")))
		switch reconStatus {
		case "":
			reconStatus = model.ReconUnmatched
		case model.ReconUnmatched, model.ReconMatched, model.ReconReconciled:
		default:
			skip("invalid recon status")
			continue
		}

		description := t.get(row, "description")
		id := t.get(row, "id")
		if id == "" {
			id = rowID("ldg_", accountID, fileName, strconv.Itoa(rowNum), date.Format("2006-01-02"), description, amount.String())
		}

		out.Records = append(out.Records, model.LedgerRecord{
			ID:            id,
			AccountID:     accountID,
			Date:          date,
			Description:   description,
			ReferenceType: strings.ToUpper(t.get(row, "reference type")),
			ReferenceID:   t.get(row, "reference id"),
			Amount:        amount.Abs(),
			Direction:     direction,
			Status:        status,
			ReconStatus:   reconStatus,
		})
	}

	return out, nil
}
