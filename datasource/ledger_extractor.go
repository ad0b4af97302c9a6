package datasource

import (
	"regexp"
	"strings"
)

var ledgerPattern = regexp.MustCompile(`ledger[_-]?(\d{4})`)

// LedgerExtractor recognises ledger exports named like "ledger1234.csv" or
// "ledger_1234_march.csv".
type LedgerExtractor struct{}

// NewLedgerExtractor creates a new LedgerExtractor.
func NewLedgerExtractor() *LedgerExtractor {
	return &LedgerExtractor{}
}

// ExtractInfo implements InfoExtractor.
func (e *LedgerExtractor) ExtractInfo(filename string) (*SourceInfo, error) {
	matches := ledgerPattern.FindStringSubmatch(strings.ToLower(filename))
	if len(matches) > 1 {
		return &SourceInfo{
			DataSource: string(Ledger),
			AccountID:  matches[1],
			Kind:       KindLedger,
		}, nil
	}

	return nil, ErrUnableToExtractInfo
}
