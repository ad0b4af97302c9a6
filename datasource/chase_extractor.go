package datasource

import (
	"regexp"
	"strings"
)

var chasePattern = regexp.MustCompile(`chase(\d{4})`)

// ChaseExtractor extracts info for Chase bank files.
type ChaseExtractor struct{}

// NewChaseExtractor creates a new ChaseExtractor.
func NewChaseExtractor() *ChaseExtractor {
	return &ChaseExtractor{}
}

// ExtractInfo extracts data source and account ID from Chase filenames,
// e.g. "Chase1234_Activity_20240131.CSV".
func (e *ChaseExtractor) ExtractInfo(filename string) (*SourceInfo, error) {
	matches := chasePattern.FindStringSubmatch(strings.ToLower(filename))
	if len(matches) > 1 {
		return &SourceInfo{
			DataSource: string(Chase),
			AccountID:  matches[1],
			Kind:       KindStatement,
		}, nil
	}

	return nil, ErrUnableToExtractInfo
}
