package synthetic

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"babylon/reconciler/config"
)

// RunGenerateSyntheticData parses the generate-synthetic-data flags and
// writes a statement and ledger pair.
func RunGenerateSyntheticData(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	genFlagSet := flag.NewFlagSet("generate-synthetic-data", flag.ContinueOnError)
	rows := genFlagSet.Int("rows", cfg.SyntheticDataRows, "Number of rows to generate")
	dir := genFlagSet.String("dir", cfg.SyntheticDataDir, "Directory to write synthetic data to")
	account := genFlagSet.String("account", defaultAccountID, "Four digit account number used in the file names")
	start := genFlagSet.String("start", "", "First statement date (YYYY-MM-DD), defaults to the first of this month")
	seed := genFlagSet.Int64("seed", defaultSeed, "Random seed")
	if err := genFlagSet.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	opts := Options{Rows: *rows, Dir: *dir, AccountID: *account, Seed: *seed}
	if *start != "" {
		t, err := time.Parse(time.DateOnly, *start)
		if err != nil {
			return fmt.Errorf("invalid -start %q: %w", *start, err)
		}
		opts.Start = t
	}

	logger.InfoContext(ctx, "Generating synthetic data", "rows", opts.Rows, "dir", opts.Dir, "account", opts.AccountID)
	files, err := Generate(opts)
	if err != nil {
		return fmt.Errorf("failed to generate synthetic data: %w", err)
	}
	logger.InfoContext(ctx, "Synthetic data generated successfully",
		"statement", files.StatementPath, "ledger", files.LedgerPath)
	return nil
}
