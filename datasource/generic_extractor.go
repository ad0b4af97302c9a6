package datasource

import (
	"strings"
)

// GenericExtractor provides a fallback for generic and synthetic filenames.
type GenericExtractor struct{}

// NewGenericExtractor creates a new GenericExtractor.
func NewGenericExtractor() *GenericExtractor {
	return &GenericExtractor{}
}

// ExtractInfo extracts data source and account ID from generic filenames.
func (e *GenericExtractor) ExtractInfo(filename string) (*SourceInfo, error) {
	lowerFileName := strings.ToLower(filename)

	switch {
	case strings.Contains(lowerFileName, string(Synthetic)):
		return &SourceInfo{
			DataSource: string(Synthetic),
			AccountID:  "0000", // Assign a default account ID for synthetic files
			Kind:       KindStatement,
		}, nil
	case strings.Contains(lowerFileName, "test"):
		return &SourceInfo{
			DataSource: "test",
			AccountID:  "0000",
			Kind:       KindStatement,
		}, nil
	}

	return nil, ErrUnableToExtractInfo
}
