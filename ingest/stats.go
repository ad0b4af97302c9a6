package ingest

import (
	"log/slog"

	"babylon/reconciler/datasource"
)

// KindStats counts the work done for one kind of input file.
type KindStats struct {
	Files   int
	Loaded  int
	Skipped int
}

// Stats summarizes one ingestion pass, split into bank statements and
// ledger exports.
type Stats struct {
	TotalFiles     int
	ProcessedFiles int
	FailedFiles    int
	// SkippedRecords is the number of rows rejected across both kinds,
	// including rows from files that later failed.
	SkippedRecords int
	Statements     KindStats
	Ledgers        KindStats
	Failures       map[string]string
}

func NewStats() *Stats {
	return &Stats{
		Failures: make(map[string]string),
	}
}

// AddFailure records a failed file and its reason.
func (s *Stats) AddFailure(file, reason string) {
	s.FailedFiles++
	s.Failures[file] = reason
}

// AddProcessed counts a file that was stored, along with its loaded rows.
func (s *Stats) AddProcessed(kind datasource.Kind, loaded int) {
	s.ProcessedFiles++
	k := s.forKind(kind)
	k.Files++
	k.Loaded += loaded
}

// AddSkipped counts rejected rows whether or not the file went on to fail.
func (s *Stats) AddSkipped(kind datasource.Kind, skipped int) {
	s.SkippedRecords += skipped
	s.forKind(kind).Skipped += skipped
}

func (s *Stats) forKind(kind datasource.Kind) *KindStats {
	if kind == datasource.KindLedger {
		return &s.Ledgers
	}
	return &s.Statements
}

// Log writes the summary to logger, one line per kind and one per failure.
func (s *Stats) Log(logger *slog.Logger) {
	logger.Info("ingestion stats",
		"totalFiles", s.TotalFiles,
		"processedFiles", s.ProcessedFiles,
		"failedFiles", s.FailedFiles,
		"skippedRecords", s.SkippedRecords)
	logger.Info("statement files",
		"files", s.Statements.Files, "loaded", s.Statements.Loaded, "skipped", s.Statements.Skipped)
	logger.Info("ledger files",
		"files", s.Ledgers.Files, "loaded", s.Ledgers.Loaded, "skipped", s.Ledgers.Skipped)
	for file, reason := range s.Failures {
		logger.Warn("file failed", "file", file, "reason", reason)
	}
}
