package config

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"babylon/reconciler/match"
)

const (
	defaultTimeoutSeconds     = 30
	defaultMongoHost          = "localhost"
	defaultMongoPort          = "27017"
	defaultCSVDir             = "./data"
	defaultProcessedDir       = "processed"
	defaultUnprocessedDir     = "unprocessed"
	defaultMoveProcessedFiles = false
	defaultSyntheticDataDir   = "tmp/synthetic"
	defaultSyntheticDataRows  = 100
	defaultWorkers            = 4
	defaultStoreDriver        = StoreMongo
	defaultSQLitePath         = "./data/reconciler.db"
	envMongoURI               = "MONGO_URI"
	envMongoHost              = "MONGO_HOST"
	envCSVDirectory           = "CSV_DIR"
	envProcessedDirectory     = "PROCESSED_DIR"
	envUnprocessedDirectory   = "UNPROCESSED_DIR"
	envMoveProcessedFiles     = "MOVE_PROCESSED_FILES"
	envMongoUser              = "MONGO_USER"
	envMongoPassword          = "MONGO_PASSWORD"
	envSyntheticDataDir       = "SYNTHETIC_DATA_DIR"
	envSyntheticDataRows      = "SYNTHETIC_DATA_ROWS"
	envTimeoutSeconds         = "TIMEOUT_SECONDS"
	envWorkers                = "RECONCILE_WORKERS"
	envMatchTolerance         = "MATCH_TOLERANCE"
	envMatchingConfig         = "MATCHING_CONFIG"
	envStoreDriver            = "STORE_DRIVER"
	envSQLitePath             = "SQLITE_PATH"
)

// Supported values of STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// LoadConfig loads the application configuration from environment variables or uses default values.
// Matching settings start from match.DefaultConfig, then the MATCHING_CONFIG
// YAML file, then MATCH_TOLERANCE.
func LoadConfig(ctx context.Context, logger *slog.Logger) (*Config, error) {
	// Variables already set in the environment win over the .env file.
	if err := godotenv.Load(); err != nil {
		logger.DebugContext(ctx, "No .env file loaded, relying on environment variables", "error", err)
	}

	mongoURI := os.Getenv(envMongoURI)
	mongoURI = formatMongoURI(ctx, mongoURI, logger)

	csvDirectory := getEnvString(ctx, logger, envCSVDirectory, defaultCSVDir)

	// Configure the dirs for processed/unprocessed files.
	unprocessedDir := fmt.Sprintf("%s/%s", csvDirectory, getEnvString(ctx, logger, envUnprocessedDirectory, defaultUnprocessedDir))
	processedDir := fmt.Sprintf("%s/%s", csvDirectory, getEnvString(ctx, logger, envProcessedDirectory, defaultProcessedDir))

	logger.DebugContext(ctx, "Constructed directory paths", "unprocessed", unprocessedDir, "processed", processedDir)

	moveProcessedFiles := defaultMoveProcessedFiles
	if moveProcessedFilesStr := os.Getenv(envMoveProcessedFiles); moveProcessedFilesStr != "" {
		parsedBool, err := strconv.ParseBool(moveProcessedFilesStr)
		if err != nil {
			logger.WarnContext(
				ctx,
				"Invalid value for MOVE_PROCESSED_FILES, using default",
				"value", moveProcessedFilesStr,
				"default", defaultMoveProcessedFiles,
				"error", err,
			)
		} else {
			moveProcessedFiles = parsedBool
			logger.DebugContext(ctx, "Set moveProcessedFiles from environment variable", "value", moveProcessedFiles)
		}
	} else {
		logger.DebugContext(ctx, "Using default value for moveProcessedFiles", "value", defaultMoveProcessedFiles)
	}

	matching := match.DefaultConfig()
	if path := os.Getenv(envMatchingConfig); path != "" {
		var err error
		matching, err = LoadMatchingFile(path, matching)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "Loaded matching overrides", "path", path)
	}
	if toleranceStr := os.Getenv(envMatchTolerance); toleranceStr != "" {
		tolerance, err := decimal.NewFromString(toleranceStr)
		if err != nil || tolerance.IsNegative() {
			logger.WarnContext(ctx, "Invalid value for MATCH_TOLERANCE, keeping current tolerance",
				"value", toleranceStr,
				"tolerance", matching.Tolerance.String(),
				"error", err,
			)
		} else {
			matching.Tolerance = tolerance
		}
	}

	storeDriver := getEnvString(ctx, logger, envStoreDriver, defaultStoreDriver)
	if storeDriver != StoreMongo && storeDriver != StoreSQLite {
		return nil, fmt.Errorf("unsupported %s %q, expected %s or %s", envStoreDriver, storeDriver, StoreMongo, StoreSQLite)
	}

	return &Config{
		MongoURI:           mongoURI,
		StoreDriver:        storeDriver,
		SQLitePath:         getEnvString(ctx, logger, envSQLitePath, defaultSQLitePath),
		UnprocessedDir:     unprocessedDir,
		ProcessedDir:       processedDir,
		MoveProcessedFiles: moveProcessedFiles,
		SyntheticDataDir:   getEnvString(ctx, logger, envSyntheticDataDir, defaultSyntheticDataDir),
		SyntheticDataRows:  getEnvInt(ctx, logger, envSyntheticDataRows, defaultSyntheticDataRows),
		Timeout:            time.Duration(getEnvInt(ctx, logger, envTimeoutSeconds, defaultTimeoutSeconds)) * time.Second,
		Workers:            getEnvInt(ctx, logger, envWorkers, defaultWorkers),
		Matching:           matching,
	}, nil
}

// getEnvString fetches KEY or falls back to a default value.
func getEnvString(ctx context.Context, logger *slog.Logger, key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		logger.DebugContext(ctx, "Using default value", "key", key, "value", fallback)
		return fallback
	}
	logger.DebugContext(ctx, "Using value from environment variable", "key", key, "value", value)
	return value
}

// getEnvInt fetches a positive integer KEY or falls back to a default value.
func getEnvInt(ctx context.Context, logger *slog.Logger, key string, fallback int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		logger.DebugContext(ctx, "Using default value", "key", key, "value", fallback)
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		logger.WarnContext(ctx, "Invalid integer value, using default", "key", key, "value", valueStr, "default", fallback)
		return fallback
	}
	return value
}

// formatMongoURI formats mongo settings to a url and return the result.
func formatMongoURI(
	ctx context.Context,
	mongoURI string,
	logger *slog.Logger,
) string {
	if mongoURI != "" {
		logger.DebugContext(ctx, "Using MongoDB URI from environment variable")
		return mongoURI
	}

	mongoHost := os.Getenv(envMongoHost)
	if mongoHost == "" {
		mongoHost = defaultMongoHost
		logger.DebugContext(ctx, "Using default MongoDB host", "host", mongoHost)
	} else {
		logger.DebugContext(ctx, "Using MongoDB host from environment variable", "host", mongoHost)
	}

	mongoUser := os.Getenv(envMongoUser)
	mongoPassword := os.Getenv(envMongoPassword)

	if mongoUser != "" && mongoPassword != "" {
		hostPort := net.JoinHostPort(mongoHost, defaultMongoPort)
		mongoURI = fmt.Sprintf(
			"mongodb://%s:%s@%s/reconciliation?authSource=admin",
			mongoUser,
			mongoPassword,
			hostPort,
		)
		logger.DebugContext(ctx, "Created MongoDB URI from user, password, and host", "host", hostPort)
	} else {
		mongoURI = fmt.Sprintf("mongodb://%s/reconciliation", net.JoinHostPort(mongoHost, defaultMongoPort))
		logger.DebugContext(ctx, "Using MongoDB URI without credentials", "uri", mongoURI)
	}
	return mongoURI
}
