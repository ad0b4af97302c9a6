package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"babylon/reconciler/match"
)

// matchingFile is the YAML shape of the matching overrides. Unset fields
// keep the base value.
type matchingFile struct {
	Tolerance string `yaml:"tolerance"`
	Passes    struct {
		Exact    *bool `yaml:"exact"`
		Amount   *bool `yaml:"amount"`
		Combined *bool `yaml:"combined"`
	} `yaml:"passes"`
	ExactDayWindow       *int `yaml:"exact_day_window"`
	AmountDayWindow      *int `yaml:"amount_day_window"`
	CombinationDayWindow *int `yaml:"combination_day_window"`
	MinCombinationSize   *int `yaml:"min_combination_size"`
	MaxCombinationSize   *int `yaml:"max_combination_size"`
	MaxCandidates        *int `yaml:"max_candidates"`
}

// LoadMatchingFile applies the YAML file at path on top of base.
//
// Example:
//
//	tolerance: "0.50"
//	passes:
//	  combined: false
//	max_combination_size: 3
func LoadMatchingFile(path string, base match.Config) (match.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read matching config %s: %w", path, err)
	}

	var file matchingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("failed to parse matching config %s: %w", path, err)
	}

	cfg := base
	if file.Tolerance != "" {
		tolerance, err := decimal.NewFromString(file.Tolerance)
		if err != nil {
			return base, fmt.Errorf("invalid tolerance %q in %s: %w", file.Tolerance, path, err)
		}
		if tolerance.IsNegative() {
			return base, fmt.Errorf("tolerance must not be negative in %s", path)
		}
		cfg.Tolerance = tolerance
	}

	setBool(&cfg.Passes.Exact, file.Passes.Exact)
	setBool(&cfg.Passes.Amount, file.Passes.Amount)
	setBool(&cfg.Passes.Combined, file.Passes.Combined)
	setInt(&cfg.ExactDayWindow, file.ExactDayWindow)
	setInt(&cfg.AmountDayWindow, file.AmountDayWindow)
	setInt(&cfg.CombinationDayWindow, file.CombinationDayWindow)
	setInt(&cfg.MinCombinationSize, file.MinCombinationSize)
	setInt(&cfg.MaxCombinationSize, file.MaxCombinationSize)
	setInt(&cfg.MaxCandidates, file.MaxCandidates)

	if cfg.MinCombinationSize < 2 || cfg.MaxCombinationSize < cfg.MinCombinationSize {
		return base, fmt.Errorf("combination sizes must satisfy 2 <= min <= max, got %d..%d in %s",
			cfg.MinCombinationSize, cfg.MaxCombinationSize, path)
	}

	return cfg, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
