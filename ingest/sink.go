package ingest

import (
	"context"
	"fmt"
	"os"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/config"
	"babylon/reconciler/datasource"
	"babylon/reconciler/statement"
)

// SinkDependencies holds all the dependencies for the Sink.
type SinkDependencies struct {
	Config    *config.Config
	Target    Target
	Extractor datasource.InfoExtractor
	Parser    statement.Parser
}

// Sink runs IngestCSVFiles over the configured directories.
type Sink struct {
	deps               SinkDependencies
	UnprocessedDir     string
	ProcessedDir       string
	MoveProcessedFiles bool
}

// NewSink creates a new Sink instance.
func NewSink(deps SinkDependencies) *Sink {
	return &Sink{
		deps:               deps,
		UnprocessedDir:     deps.Config.UnprocessedDir,
		ProcessedDir:       deps.Config.ProcessedDir,
		MoveProcessedFiles: deps.Config.MoveProcessedFiles,
	}
}

// Ingest handles the main data ingestion process.
func (s *Sink) Ingest(ctx context.Context) (*Stats, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Starting data ingestion process")

	if _, err := os.Stat(s.UnprocessedDir); err != nil {
		logger.ErrorContext(
			ctx,
			"The directory does not exist. Please create it and place your CSV files inside.",
			"dir", s.UnprocessedDir,
			"error", err,
		)
		return nil, fmt.Errorf("stat check for directory %s: %w", s.UnprocessedDir, err)
	}

	stats, err := IngestCSVFiles(
		ctx,
		s.deps.Target,
		s.deps.Extractor,
		s.deps.Parser,
		s.UnprocessedDir,
		s.ProcessedDir,
		s.MoveProcessedFiles,
	)
	if err != nil {
		logger.ErrorContext(ctx, "Error ingesting CSV files", "error", err)
		return nil, fmt.Errorf("ingestion of CSV files failed: %w", err)
	}

	logger.InfoContext(ctx, "Data ingestion process completed successfully.")
	stats.Log(logger)

	return stats, nil
}
