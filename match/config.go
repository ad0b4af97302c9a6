package match

import (
	"github.com/shopspring/decimal"
)

const (
	defaultExactDayWindow       = 1
	defaultAmountDayWindow      = 7
	defaultCombinationDayWindow = 10
	defaultMinCombinationSize   = 2
	defaultMaxCombinationSize   = 4

	exactScore    = 100.0
	combinedScore = 75.0
	manualScore   = 100.0
)

// Passes switches individual matching passes on or off.
type Passes struct {
	Exact    bool
	Amount   bool
	Combined bool
}

// Config tunes the automatic matcher.
type Config struct {
	// Tolerance is the largest absolute amount difference accepted by every pass.
	Tolerance decimal.Decimal
	Passes    Passes

	ExactDayWindow       int
	AmountDayWindow      int
	CombinationDayWindow int

	// MinCombinationSize and MaxCombinationSize bound the subset sizes tried
	// by the combination pass, smallest first.
	MinCombinationSize int
	MaxCombinationSize int
	// MaxCandidates caps the ledger records considered for one bank record in
	// the combination pass. Zero, the default, means every candidate is tried.
	MaxCandidates int
}

// DefaultConfig returns the standard three-pass configuration with a
// tolerance of one currency unit.
func DefaultConfig() Config {
	return Config{
		Tolerance:            decimal.NewFromInt(1),
		Passes:               Passes{Exact: true, Amount: true, Combined: true},
		ExactDayWindow:       defaultExactDayWindow,
		AmountDayWindow:      defaultAmountDayWindow,
		CombinationDayWindow: defaultCombinationDayWindow,
		MinCombinationSize:   defaultMinCombinationSize,
		MaxCombinationSize:   defaultMaxCombinationSize,
	}
}

// normalize replaces out-of-range values with defaults.
func (c Config) normalize() Config {
	if c.Tolerance.IsNegative() {
		c.Tolerance = c.Tolerance.Abs()
	}
	if c.ExactDayWindow < 0 {
		c.ExactDayWindow = defaultExactDayWindow
	}
	if c.AmountDayWindow < 0 {
		c.AmountDayWindow = defaultAmountDayWindow
	}
	if c.CombinationDayWindow < 0 {
		c.CombinationDayWindow = defaultCombinationDayWindow
	}
	if c.MinCombinationSize < 2 {
		c.MinCombinationSize = defaultMinCombinationSize
	}
	if c.MaxCombinationSize < c.MinCombinationSize {
		c.MaxCombinationSize = max(c.MinCombinationSize, defaultMaxCombinationSize)
	}
	if c.MaxCandidates < 0 {
		c.MaxCandidates = 0
	}
	return c
}
