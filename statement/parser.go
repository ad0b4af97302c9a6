// Package statement loads bank statements and ledger exports from CSV files
// into model records. Rows that cannot be parsed are skipped and reported
// instead of failing the whole file.
package statement

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/model"
)

var errTargetFileNotFound = errors.New("the valid target file was not found")
var errMissingColumn = errors.New("required column missing")

func ValidFileNotFoundError(path string) error {
	return fmt.Errorf("%w, %s", errTargetFileNotFound, path)
}

func MissingColumnError(column, path string) error {
	return fmt.Errorf("%w, %s in %s", errMissingColumn, column, path)
}

// Parser loads statement and ledger files.
type Parser interface {
	ParseStatement(ctx context.Context, filePath, source, accountID string) (*StatementFile, error)
	ParseLedger(ctx context.Context, filePath, accountID string) (*LedgerFile, error)
}

// StatementFile is a parsed bank statement.
type StatementFile struct {
	Statement model.Statement
	Records   []model.BankRecord
	Skipped   []model.RecordError
}

// LedgerFile is a parsed ledger export.
type LedgerFile struct {
	Records []model.LedgerRecord
	Skipped []model.RecordError
}

// CSVParser implements Parser for comma separated files with a header row.
type CSVParser struct{}

// NewCSVParser creates a new CSVParser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

var dateLayouts = []string{"01/02/2006", "2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// table is a CSV file read into memory with a lowercase header index.
type table struct {
	colIndex map[string]int
	rows     [][]string
}

func readTable(ctx context.Context, filePath string) (*table, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "Parsing data from csv", "filePath", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.Comma = ','

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &table{colIndex: map[string]int{}}, nil
		}
		return nil, fmt.Errorf("failed to read CSV header from file %s: %w", filePath, err)
	}

	t := &table{colIndex: make(map[string]int, len(header))}
	for i, col := range header {
		t.colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for {
		record, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read record from CSV in file %s: %w", filePath, readErr)
		}
		t.rows = append(t.rows, record)
	}

	return t, nil
}

// get returns the trimmed value of column name in row, or "".
func (t *table) get(row []string, name string) string {
	idx, ok := t.colIndex[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *table) has(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// rowID derives a stable identifier so re-ingesting a file upserts the same records.
func rowID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + hex.EncodeToString(sum[:12])
}
