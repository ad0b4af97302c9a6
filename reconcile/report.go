package reconcile

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"babylon/reconciler/model"
)

// WriteReport renders a plain-text summary of run.
func WriteReport(w io.Writer, run model.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Reconciliation\t%s\n", run.ID)
	fmt.Fprintf(tw, "Account\t%s\n", run.AccountID)
	fmt.Fprintf(tw, "Period\t%s to %s\n", run.PeriodStart.Format(time.DateOnly), run.PeriodEnd.Format(time.DateOnly))
	fmt.Fprintf(tw, "Status\t%s\n", run.Status)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Statement balance\t%s\n", run.StatementBalance.StringFixed(2))
	fmt.Fprintf(tw, "Book balance\t%s\n", run.BookBalance.StringFixed(2))
	fmt.Fprintf(tw, "Difference\t%s\n", run.Difference.StringFixed(2))
	fmt.Fprintf(tw, "Total matched\t%s\n", run.TotalMatched.StringFixed(2))
	fmt.Fprintf(tw, "Outstanding checks\t%s\n", run.OutstandingChecks.StringFixed(2))
	fmt.Fprintf(tw, "Deposits in transit\t%s\n", run.DepositsInTransit.StringFixed(2))

	fmt.Fprintf(tw, "\nMatches (%d)\n", len(run.Matches))
	fmt.Fprintln(tw, "TYPE\tSCORE\tBANK\tDATE\tAMOUNT\tLEDGER")
	for _, m := range run.Matches {
		fmt.Fprintf(tw, "%s\t%.0f\t%s\t%s\t%s\t%s\n",
			m.Type, m.Score, m.Bank.ID, m.Bank.Date.Format(time.DateOnly),
			m.Amount.StringFixed(2), strings.Join(m.LedgerIDs(), ","))
	}

	fmt.Fprintf(tw, "\nUnmatched bank records (%d)\n", len(run.UnmatchedBank))
	fmt.Fprintln(tw, "ID\tDATE\tDIRECTION\tAMOUNT\tDESCRIPTION")
	for _, b := range run.UnmatchedBank {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Date.Format(time.DateOnly), b.Direction, b.Amount.StringFixed(2), b.Description)
	}

	fmt.Fprintf(tw, "\nUnmatched ledger records (%d)\n", len(run.UnmatchedLedger))
	fmt.Fprintln(tw, "ID\tDATE\tDIRECTION\tAMOUNT\tREFERENCE\tDESCRIPTION")
	for _, l := range run.UnmatchedLedger {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Date.Format(time.DateOnly), l.Direction, l.Amount.StringFixed(2),
			strings.TrimSpace(l.ReferenceType+" "+l.ReferenceID), l.Description)
	}

	if len(run.Skipped) > 0 {
		fmt.Fprintf(tw, "\nSkipped records (%d)\n", len(run.Skipped))
		for _, s := range run.Skipped {
			fmt.Fprintf(tw, "%s\n", s.Error())
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
