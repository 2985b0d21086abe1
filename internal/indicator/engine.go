package indicator

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// DecisionColumns must be present for a series to be decided on.
var DecisionColumns = []string{"golden_cross_ema", "death_cross_ema"}

// IndicatorConfig requests an extra indicator on top of the default set.
type IndicatorConfig struct {
	Type   string `yaml:"type"` // "SMA", "EMA", "RSI"
	Period int    `yaml:"period"`
}

// Name returns the column the config produces, e.g. "rsi9".
func (c IndicatorConfig) Name() string {
	return fmt.Sprintf("%s%d", strings.ToLower(c.Type), c.Period)
}

// ValidateConfigs checks types and period bounds of extra indicators.
func ValidateConfigs(configs []IndicatorConfig) error {
	seen := make(map[string]bool)
	for _, cfg := range configs {
		var err error
		switch strings.ToUpper(cfg.Type) {
		case "SMA", "EMA":
			err = checkPeriod(cfg.Name(), cfg.Period, 5, 200)
		case "RSI":
			err = checkPeriod(cfg.Name(), cfg.Period, 7, 21)
		default:
			return fmt.Errorf("unknown indicator type %q", cfg.Type)
		}
		if err != nil {
			return err
		}
		if seen[cfg.Name()] {
			return fmt.Errorf("duplicate indicator %s", cfg.Name())
		}
		seen[cfg.Name()] = true
	}
	return nil
}

// Engine adds the full indicator set to a series.
type Engine struct {
	extra []IndicatorConfig
}

// NewEngine creates an engine that also computes the given extra indicators.
func NewEngine(extra []IndicatorConfig) *Engine {
	return &Engine{extra: extra}
}

// AddAll computes every indicator on s. Indicators that cannot be computed
// (usually a series shorter than their lookback) are skipped; their
// *RangeError values are combined into the returned error and can be split
// with multierr.Errors. Successful columns are kept either way.
func (e *Engine) AddAll(s *Series) error {
	var errs error
	try := func(err error) { errs = multierr.Append(errs, err) }

	s.AddChangePct()
	s.AddCMA()
	for _, p := range []int{5, 20, 50, 200} {
		try(s.AddSMA(p))
	}
	for _, p := range []int{5, 12, 13, 20, 26} {
		try(s.AddEMA(p))
	}
	try(s.AddGoldenCross())
	try(s.AddDeathCross())
	try(s.AddRSI(14))
	try(s.AddMACD())
	s.AddOBV()
	try(s.AddElderRay())
	try(s.AddFibonacciBollingerBands(20, 3))
	try(s.AddEMACrossSignals())
	try(s.AddSMACrossSignals())
	try(s.AddMACDCrossSignals())
	s.AddCandlePatterns()

	for _, cfg := range e.extra {
		switch strings.ToUpper(cfg.Type) {
		case "SMA":
			try(s.AddSMA(cfg.Period))
		case "EMA":
			try(s.AddEMA(cfg.Period))
		case "RSI":
			try(s.AddRSI(cfg.Period))
		}
	}
	return errs
}

// Decidable reports whether every decision column is present.
func Decidable(s *Series) bool {
	for _, name := range DecisionColumns {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// FailedIndicators lists the indicator names carried by the range errors
// inside err.
func FailedIndicators(err error) []string {
	var names []string
	for _, e := range multierr.Errors(err) {
		if re, ok := e.(*RangeError); ok {
			names = append(names, re.Indicator)
		}
	}
	return names
}
