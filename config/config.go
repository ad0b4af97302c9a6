package config

import (
	"time"

	"babylon/reconciler/match"
)

// Config holds the application configuration.
type Config struct {
	MongoURI string
	// StoreDriver is either StoreMongo or StoreSQLite.
	StoreDriver        string
	SQLitePath         string
	UnprocessedDir     string
	ProcessedDir       string
	MoveProcessedFiles bool
	SyntheticDataDir   string
	SyntheticDataRows  int
	Timeout            time.Duration
	// Workers bounds how many accounts are reconciled in parallel.
	Workers  int
	Matching match.Config
}
