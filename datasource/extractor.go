package datasource

import (
	"errors"
)

// Kind says what a file holds.
type Kind string

const (
	// KindStatement is a bank statement export.
	KindStatement Kind = "statement"
	// KindLedger is an export of the business's own ledger transactions.
	KindLedger Kind = "ledger"
)

// SourceInfo holds the extracted data source and account ID.
type SourceInfo struct {
	DataSource string
	AccountID  string
	Kind       Kind
}

// InfoExtractor defines the interface for extracting source information from a filename.
type InfoExtractor interface {
	ExtractInfo(filename string) (*SourceInfo, error)
}

// ErrUnableToExtractInfo is returned when the extractor cannot parse the filename.
var ErrUnableToExtractInfo = errors.New("unable to extract source info from filename")

// ChainExtractor tries each extractor in order and returns the first match.
type ChainExtractor []InfoExtractor

// NewDefaultExtractor recognises ledger, Chase and generic test files.
func NewDefaultExtractor() ChainExtractor {
	return ChainExtractor{NewLedgerExtractor(), NewChaseExtractor(), NewGenericExtractor()}
}

// ExtractInfo implements InfoExtractor.
func (c ChainExtractor) ExtractInfo(filename string) (*SourceInfo, error) {
	for _, e := range c {
		info, err := e.ExtractInfo(filename)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, ErrUnableToExtractInfo) {
			return nil, err
		}
	}
	return nil, ErrUnableToExtractInfo
}
