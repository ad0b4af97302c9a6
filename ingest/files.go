package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/datasource"
	"babylon/reconciler/model"
	"babylon/reconciler/statement"
)

// Target receives parsed records. reconcile.Service implements it.
type Target interface {
	IngestStatement(ctx context.Context, stmt model.Statement, records []model.BankRecord) ([]model.RecordError, error)
	IngestLedger(ctx context.Context, records []model.LedgerRecord) ([]model.RecordError, error)
}

// IngestCSVFiles loads every CSV file in unprocessedDir into target. The
// filename decides whether a file is a bank statement or a ledger export.
func IngestCSVFiles(
	ctx context.Context,
	target Target,
	extractor datasource.InfoExtractor,
	parser statement.Parser,
	unprocessedDir string,
	processedDir string,
	moveProcessedFiles bool,
) (*Stats, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "Reading data from sink", "sink", unprocessedDir)

	files, err := os.ReadDir(unprocessedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	stats := NewStats()
	stats.TotalFiles = len(files)

	for _, file := range files {
		if !validateFile(file) {
			reason := "Not a valid CSV file"
			stats.AddFailure(file.Name(), reason)
			logger.WarnContext(ctx, "file was not processed", "fileName", file.Name(), "reason", reason)
			continue
		}

		res, err := processFile(ctx, target, extractor, parser, file.Name(), unprocessedDir, processedDir, moveProcessedFiles)
		stats.AddSkipped(res.kind, res.skipped)
		if err != nil {
			stats.AddFailure(file.Name(), err.Error())
			logger.ErrorContext(ctx, "failed to process file", "file", file.Name(), "error", err)
			continue
		}
		stats.AddProcessed(res.kind, res.loaded)
	}

	return stats, nil
}

// Return true only if the entry pointed to by FILE is a regular CSV file.
func validateFile(file os.DirEntry) bool {
	return !file.IsDir() && strings.EqualFold(filepath.Ext(file.Name()), ".csv")
}

// fileResult is what processFile learned about one file, even on failure.
type fileResult struct {
	kind    datasource.Kind
	loaded  int
	skipped int
}

// processFile loads one file and reports its kind along with how many rows
// were stored and how many were skipped.
func processFile(
	ctx context.Context,
	target Target,
	extractor datasource.InfoExtractor,
	parser statement.Parser,
	fileName string,
	unprocessedDir string,
	processedDir string,
	moveProcessedFiles bool,
) (fileResult, error) {
	var res fileResult
	sourceInfo, err := extractor.ExtractInfo(fileName)
	if err != nil {
		return res, fmt.Errorf("failed to extract source info: %w", err)
	}
	res.kind = sourceInfo.Kind

	cleanFileName := filepath.Clean(fileName)
	if strings.HasPrefix(cleanFileName, "../") {
		return res, statement.ValidFileNotFoundError(fileName)
	}
	filePath := filepath.Join(unprocessedDir, cleanFileName)

	var (
		parsedCount int
		skipped     []model.RecordError
	)
	switch sourceInfo.Kind {
	case datasource.KindLedger:
		parsed, err := parser.ParseLedger(ctx, filePath, sourceInfo.AccountID)
		if err != nil {
			return res, err
		}
		rejected, err := target.IngestLedger(ctx, parsed.Records)
		skipped = append(parsed.Skipped, rejected...)
		res.skipped = len(skipped)
		if err != nil {
			return res, fmt.Errorf("failed to store ledger records: %w", err)
		}
		parsedCount = len(parsed.Records) - len(rejected)
	default:
		parsed, err := parser.ParseStatement(ctx, filePath, sourceInfo.DataSource, sourceInfo.AccountID)
		if err != nil {
			return res, err
		}
		rejected, err := target.IngestStatement(ctx, parsed.Statement, parsed.Records)
		skipped = append(parsed.Skipped, rejected...)
		res.skipped = len(skipped)
		if err != nil {
			return res, fmt.Errorf("failed to store statement: %w", err)
		}
		parsedCount = len(parsed.Records) - len(rejected)
	}

	if moveProcessedFiles {
		if err := moveFile(filePath, processedDir); err != nil {
			return res, fmt.Errorf("failed to move file: %w", err)
		}
	}

	res.loaded = parsedCount
	return res, nil
}

func moveFile(filePath, processedDir string) error {
	if err := os.MkdirAll(processedDir, 0o750); err != nil {
		return fmt.Errorf("failed to create processed directory '%s': %w", processedDir, err)
	}

	newPath := filepath.Join(processedDir, filepath.Base(filePath))
	if err := os.Rename(filePath, newPath); err != nil {
		return fmt.Errorf("failed to move file from '%s' to '%s': %w", filePath, newPath, err)
	}

	return nil
}
