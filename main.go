// main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/config"
	"babylon/reconciler/datasource"
	"babylon/reconciler/ingest"
	"babylon/reconciler/match"
	"babylon/reconciler/model"
	"babylon/reconciler/reconcile"
	"babylon/reconciler/statement"
	"babylon/reconciler/storage"
	"babylon/reconciler/synthetic"
)

const usage = `Usage: reconciler <command> [options]

Commands:
  ingest                   load statement and ledger CSVs from the unprocessed directory
  reconcile                match an account's statement against its ledger (-account, -from, -to)
  suggest                  rank ledger candidates for a run's unmatched bank lines (-run)
  match                    record a manual match inside a run (-run, -bank, -ledger)
  finalize                 finalize a calculated run (-run)
  report                   print a run (-run)
  generate-synthetic-data  write a synthetic statement and ledger pair`

func main() {
	// Create the logger instance at the very beginning.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if err := run(logger, command, args); err != nil {
		logger.Error("Application terminated with an error", "error", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, command string, args []string) error {
	ctx := appcontext.WithLogger(context.Background(), logger)

	cfg, err := config.LoadConfig(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	switch command {
	case "generate-synthetic-data":
		return synthetic.RunGenerateSyntheticData(ctx, logger, args, cfg)
	case "ingest":
		return withService(ctx, cfg, func(svc *reconcile.Service) error {
			sink := ingest.NewSink(ingest.SinkDependencies{
				Config:    cfg,
				Target:    svc,
				Extractor: datasource.NewDefaultExtractor(),
				Parser:    statement.NewCSVParser(),
			})
			_, err := sink.Ingest(ctx)
			return err
		})
	case "reconcile":
		return runReconcile(ctx, cfg, args)
	case "suggest":
		return runSuggest(ctx, cfg, args)
	case "match":
		return runManualMatch(ctx, cfg, args)
	case "finalize", "report":
		return runRunCommand(ctx, cfg, command, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// withService opens the configured store and hands fn a ready Service.
func withService(ctx context.Context, cfg *config.Config, fn func(*reconcile.Service) error) error {
	logger := appcontext.LoggerFromContext(ctx)

	var store reconcile.Store
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		repo, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to open SQLite database", "path", cfg.SQLitePath, "error", err)
			return err
		}
		defer func() {
			if deferErr := repo.Close(); deferErr != nil {
				logger.ErrorContext(ctx, "Error closing SQLite database", "error", deferErr)
			}
		}()
		store = repo
	default:
		client, err := storage.ConnectToMongoDB(ctx, cfg.MongoURI)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to connect to MongoDB", "error", err)
			return fmt.Errorf("connection to MongoDB failed: %w", err)
		}
		defer func() {
			if deferErr := client.Disconnect(context.Background()); deferErr != nil {
				logger.ErrorContext(ctx, "Error disconnecting from MongoDB", "error", deferErr)
			}
		}()
		store = storage.NewMongoRepository(storage.NewMongoProvider(client))
	}

	svc := reconcile.NewService(store, match.NewEngine(cfg.Matching), reconcile.WithWorkers(cfg.Workers))
	return fn(svc)
}

func runReconcile(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	accounts := fs.String("account", "", "Comma separated account ids")
	from := fs.String("from", "", "Period start (YYYY-MM-DD)")
	to := fs.String("to", "", "Period end (YYYY-MM-DD)")
	finalize := fs.Bool("finalize", false, "Finalize each run after it is calculated")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if *accounts == "" || *to == "" {
		return errors.New("reconcile needs -account and -to")
	}
	periodEnd, err := time.Parse(time.DateOnly, *to)
	if err != nil {
		return fmt.Errorf("invalid -to %q: %w", *to, err)
	}
	var periodStart time.Time
	if *from != "" {
		if periodStart, err = time.Parse(time.DateOnly, *from); err != nil {
			return fmt.Errorf("invalid -from %q: %w", *from, err)
		}
	}

	var reqs []reconcile.Request
	for _, acc := range strings.Split(*accounts, ",") {
		if acc = strings.TrimSpace(acc); acc != "" {
			reqs = append(reqs, reconcile.Request{AccountID: acc, PeriodStart: periodStart, PeriodEnd: periodEnd})
		}
	}

	return withService(ctx, cfg, func(svc *reconcile.Service) error {
		var errs []error
		for _, o := range svc.ReconcileAll(ctx, reqs) {
			if o.Err != nil {
				errs = append(errs, fmt.Errorf("account %s: %w", o.Request.AccountID, o.Err))
				continue
			}
			result := o.Run
			if *finalize {
				if result, err = svc.Finalize(ctx, result.ID); err != nil {
					errs = append(errs, fmt.Errorf("account %s: %w", o.Request.AccountID, err))
					continue
				}
			}
			if err := reconcile.WriteReport(os.Stdout, result); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout)
		}
		return errors.Join(errs...)
	})
}

func runSuggest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	runID := fs.String("run", "", "Reconciliation run id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *runID == "" {
		return errors.New("suggest needs -run")
	}

	return withService(ctx, cfg, func(svc *reconcile.Service) error {
		suggestions, err := svc.Suggest(ctx, *runID)
		if err != nil {
			return err
		}
		for _, s := range suggestions {
			fmt.Fprintf(os.Stdout, "%s %s %s %s (confidence %.0f)\n",
				s.Bank.ID, s.Bank.Date.Format(time.DateOnly), s.Bank.Direction, s.Bank.Amount.StringFixed(2), s.Confidence)
			for _, c := range s.Candidates {
				fmt.Fprintf(os.Stdout, "  %-20s %s %s %5.1f  %s\n",
					c.Ledger.ID, c.Ledger.Date.Format(time.DateOnly), c.Ledger.Amount.StringFixed(2), c.Score, c.Ledger.Description)
			}
		}
		return nil
	})
}

func runManualMatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	runID := fs.String("run", "", "Reconciliation run id")
	bankID := fs.String("bank", "", "Bank record id")
	ledgerIDs := fs.String("ledger", "", "Comma separated ledger record ids")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *runID == "" || *bankID == "" || *ledgerIDs == "" {
		return errors.New("match needs -run, -bank and -ledger")
	}

	return withService(ctx, cfg, func(svc *reconcile.Service) error {
		result, m, err := svc.ManualMatch(ctx, *runID, *bankID, strings.Split(*ledgerIDs, ","))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "matched %s to %s as %s\n", m.Bank.ID, strings.Join(m.LedgerIDs(), ","), m.Type)
		return reconcile.WriteReport(os.Stdout, result)
	})
}

func runRunCommand(ctx context.Context, cfg *config.Config, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	runID := fs.String("run", "", "Reconciliation run id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *runID == "" {
		return fmt.Errorf("%s needs -run", command)
	}

	return withService(ctx, cfg, func(svc *reconcile.Service) error {
		var (
			result model.Run
			err    error
		)
		if command == "finalize" {
			result, err = svc.Finalize(ctx, *runID)
		} else {
			result, err = svc.GetRun(ctx, *runID)
		}
		if err != nil {
			return err
		}
		return reconcile.WriteReport(os.Stdout, result)
	})
}
