package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"babylon/reconciler/config"
	"babylon/reconciler/datasource"
	"babylon/reconciler/ingest"
	"babylon/reconciler/model"
	"babylon/reconciler/statement"
)

// --- Mocks for dependencies ---

type mockTarget struct {
	statements []model.Statement
	bank       []model.BankRecord
	ledger     []model.LedgerRecord
	err        error
}

func (m *mockTarget) IngestStatement(ctx context.Context, stmt model.Statement, records []model.BankRecord) ([]model.RecordError, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.statements = append(m.statements, stmt)
	m.bank = append(m.bank, records...)
	return nil, nil
}

func (m *mockTarget) IngestLedger(ctx context.Context, records []model.LedgerRecord) ([]model.RecordError, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ledger = append(m.ledger, records...)
	return nil, nil
}

const statementCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
CREDIT,03/02/2024,DEPOSIT,500.00,ACH_CREDIT,1500.00,
DEBIT,03/05/2024,CHECK 101,-50.00,CHECK_PAID,1450.00,101
DEBIT,03/06/2024,BROKEN,abc,CHECK_PAID,1450.00,`

const ledgerCSV = `Id,Date,Description,Reference Type,Reference Id,Amount,Type,Status
L-1,2024-03-02,Deposit,deposit,D-1,500.00,DEBIT,COMPLETED
L-2,2024-03-03,Check 101,check,101,50.00,CREDIT,COMPLETED`

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestIngestCSVFiles(t *testing.T) {
	ctx := context.Background()
	unprocessed := t.TempDir()
	writeFiles(t, unprocessed, map[string]string{
		"Chase1234_Activity_202403.CSV": statementCSV,
		"ledger_1234_march.csv":         ledgerCSV,
		"notes.txt":                     "not a csv",
		"unknown.csv":                   statementCSV,
	})

	target := &mockTarget{}
	stats, err := ingest.IngestCSVFiles(ctx, target, datasource.NewDefaultExtractor(), statement.NewCSVParser(),
		unprocessed, "", false)
	if err != nil {
		t.Fatalf("IngestCSVFiles returned an unexpected error: %v", err)
	}

	if stats.TotalFiles != 4 {
		t.Errorf("Expected 4 files, got %d", stats.TotalFiles)
	}
	if stats.ProcessedFiles != 2 {
		t.Errorf("Expected 2 processed files, got %d", stats.ProcessedFiles)
	}
	if stats.FailedFiles != 2 {
		t.Errorf("Expected 2 failed files, got %d: %v", stats.FailedFiles, stats.Failures)
	}
	if !strings.Contains(stats.Failures["unknown.csv"], "failed to extract source info") {
		t.Errorf("Unexpected failure reason for unknown.csv: %q", stats.Failures["unknown.csv"])
	}
	if stats.SkippedRecords != 1 {
		t.Errorf("Expected 1 skipped record, got %d", stats.SkippedRecords)
	}
	if want := (ingest.KindStats{Files: 1, Loaded: 2, Skipped: 1}); stats.Statements != want {
		t.Errorf("Statement stats got %+v, want %+v", stats.Statements, want)
	}
	if want := (ingest.KindStats{Files: 1, Loaded: 2}); stats.Ledgers != want {
		t.Errorf("Ledger stats got %+v, want %+v", stats.Ledgers, want)
	}

	if len(target.statements) != 1 || target.statements[0].AccountID != "1234" || target.statements[0].Source != "chase" {
		t.Errorf("Unexpected statements %+v", target.statements)
	}
	if len(target.bank) != 2 {
		t.Errorf("Expected 2 bank records, got %d", len(target.bank))
	}
	if len(target.ledger) != 2 || target.ledger[0].AccountID != "1234" {
		t.Errorf("Unexpected ledger records %+v", target.ledger)
	}
}

func TestIngestCSVFiles_MovesProcessedFiles(t *testing.T) {
	ctx := context.Background()
	unprocessed := t.TempDir()
	processed := filepath.Join(t.TempDir(), "processed")
	writeFiles(t, unprocessed, map[string]string{"ledger1234.csv": ledgerCSV})

	stats, err := ingest.IngestCSVFiles(ctx, &mockTarget{}, datasource.NewDefaultExtractor(), statement.NewCSVParser(),
		unprocessed, processed, true)
	if err != nil {
		t.Fatalf("IngestCSVFiles returned an unexpected error: %v", err)
	}
	if stats.ProcessedFiles != 1 {
		t.Fatalf("Expected 1 processed file, got %d", stats.ProcessedFiles)
	}

	if _, err := os.Stat(filepath.Join(processed, "ledger1234.csv")); err != nil {
		t.Errorf("Expected file in processed directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(unprocessed, "ledger1234.csv")); !os.IsNotExist(err) {
		t.Errorf("Expected file to be moved out of unprocessed directory, got %v", err)
	}
}

func TestIngestCSVFiles_TargetError(t *testing.T) {
	ctx := context.Background()
	unprocessed := t.TempDir()
	writeFiles(t, unprocessed, map[string]string{"chase1234.csv": statementCSV})

	target := &mockTarget{err: errors.New("database unavailable")}
	stats, err := ingest.IngestCSVFiles(ctx, target, datasource.NewDefaultExtractor(), statement.NewCSVParser(),
		unprocessed, "", true)
	if err != nil {
		t.Fatalf("IngestCSVFiles returned an unexpected error: %v", err)
	}
	if stats.FailedFiles != 1 || !strings.Contains(stats.Failures["chase1234.csv"], "database unavailable") {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.Statements.Files != 0 || stats.Statements.Skipped != 1 {
		t.Errorf("Failed statement must not count as loaded, got %+v", stats.Statements)
	}
	if _, err := os.Stat(filepath.Join(unprocessed, "chase1234.csv")); err != nil {
		t.Errorf("Failed file must stay in place: %v", err)
	}
}

func TestIngestCSVFiles_DirectoryNotFound(t *testing.T) {
	_, err := ingest.IngestCSVFiles(context.Background(), &mockTarget{}, datasource.NewDefaultExtractor(),
		statement.NewCSVParser(), "/non/existent/dir", "", false)
	if err == nil || !strings.Contains(err.Error(), "failed to read directory") {
		t.Errorf("Expected read directory error, got: %v", err)
	}
}

func TestSink_Ingest_UnprocessedDirNotFound(t *testing.T) {
	cfg := &config.Config{
		UnprocessedDir: "/non/existent/dir",
	}
	sink := ingest.NewSink(ingest.SinkDependencies{Config: cfg})

	_, err := sink.Ingest(context.Background())
	if err == nil {
		t.Fatal("Ingest did not return an error for non-existent directory")
	}
	if !strings.Contains(err.Error(), "stat check for directory") {
		t.Errorf("Expected 'stat check for directory' error, got: %v", err)
	}
}

func TestSink_Ingest_Success(t *testing.T) {
	unprocessed := t.TempDir()
	writeFiles(t, unprocessed, map[string]string{"ledger1234.csv": ledgerCSV})

	target := &mockTarget{}
	sink := ingest.NewSink(ingest.SinkDependencies{
		Config:    &config.Config{UnprocessedDir: unprocessed},
		Target:    target,
		Extractor: datasource.NewDefaultExtractor(),
		Parser:    statement.NewCSVParser(),
	})

	stats, err := sink.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest returned an unexpected error: %v", err)
	}
	if stats.ProcessedFiles != 1 || len(target.ledger) != 2 {
		t.Errorf("Unexpected result: stats %+v, ledger %d", stats, len(target.ledger))
	}
}
