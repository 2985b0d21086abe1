// Package indicator derives technical indicator columns from a price series.
//
// A Series holds the base OHLCV columns plus an append-only set of named
// float and bool columns. Every indicator is a pure function over slices;
// the Add* methods on Series compute prerequisites on demand and store the
// result under a fixed column name. Adding the same indicator twice
// recomputes identical values in place.
package indicator

import (
	"fmt"
	"math"

	"cryptosignal/internal/model"
)

// Indicator is the interface of the streaming kernels (SMA, EMA, Wilder
// mean) that the batch functions are built on.
type Indicator interface {
	// Name returns the kernel name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds the next value.
	Update(v float64)

	// Value returns the current value. Returns 0 before the first update.
	Value() float64

	// Ready returns true when enough values have been accumulated.
	Ready() bool
}

// Series is an indicator-augmented price series for one instrument.
// Column slices returned by accessors are shared and must not be modified.
type Series struct {
	bars   []model.PriceBar
	floats map[string][]float64
	flags  map[string][]bool
	names  []string
}

// NewSeries validates bars and builds a Series over them.
// An empty input yields an empty Series.
func NewSeries(bars []model.PriceBar) (*Series, error) {
	if err := validateBars(bars); err != nil {
		return nil, err
	}

	n := len(bars)
	s := &Series{
		bars:   bars,
		floats: make(map[string][]float64),
		flags:  make(map[string][]bool),
	}
	low, high := make([]float64, n), make([]float64, n)
	open, cls, vol := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, b := range bars {
		low[i], high[i], open[i], cls[i], vol[i] = b.Low, b.High, b.Open, b.Close, b.Volume
	}
	s.setFloat("low", low)
	s.setFloat("high", high)
	s.setFloat("open", open)
	s.setFloat("close", cls)
	s.setFloat("volume", vol)
	return s, nil
}

// ValidateColumns checks that a tabular source exposes exactly the bar
// columns in the expected order.
func ValidateColumns(cols []string) error {
	if len(cols) != len(model.BarColumns) {
		return &SchemaError{Row: -1, Reason: fmt.Sprintf("expected %d columns %v, got %v", len(model.BarColumns), model.BarColumns, cols)}
	}
	for i, want := range model.BarColumns {
		if cols[i] != want {
			return &SchemaError{Column: cols[i], Row: -1, Reason: fmt.Sprintf("column %d must be %q", i, want)}
		}
	}
	return nil
}

func validateBars(bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	market, gran := bars[0].Market, bars[0].Granularity
	if !model.SupportedGranularity(gran) {
		return &SchemaError{Column: "granularity", Row: 0, Reason: fmt.Sprintf("unsupported granularity %d", gran)}
	}
	for i, b := range bars {
		if b.Market != market {
			return &SchemaError{Column: "market", Row: i, Reason: fmt.Sprintf("mixed instruments %q and %q", market, b.Market)}
		}
		if b.Granularity != gran {
			return &SchemaError{Column: "granularity", Row: i, Reason: fmt.Sprintf("granularity changed from %d to %d", gran, b.Granularity)}
		}
		for _, c := range []struct {
			name string
			v    float64
		}{{"low", b.Low}, {"high", b.High}, {"open", b.Open}, {"close", b.Close}, {"volume", b.Volume}} {
			if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
				return &SchemaError{Column: c.name, Row: i, Reason: "non-numeric value"}
			}
		}
		if b.Low > math.Min(b.Open, b.Close) || b.High < math.Max(b.Open, b.Close) {
			return &SchemaError{Column: "low/high", Row: i, Reason: "open/close outside low..high"}
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return &SchemaError{Column: "date", Row: i, Reason: "timestamps must be strictly increasing"}
		}
	}
	return nil
}

// Len returns the number of rows.
func (s *Series) Len() int { return len(s.bars) }

// Bar returns row i of the base series.
func (s *Series) Bar(i int) model.PriceBar { return s.bars[i] }

// Bars returns the base rows.
func (s *Series) Bars() []model.PriceBar { return s.bars }

// Names returns every column name in the order it was first added.
func (s *Series) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether a float or bool column exists.
func (s *Series) Has(name string) bool {
	if _, ok := s.floats[name]; ok {
		return true
	}
	_, ok := s.flags[name]
	return ok
}

// Float returns a numeric column.
func (s *Series) Float(name string) ([]float64, bool) {
	v, ok := s.floats[name]
	return v, ok
}

// Flag returns a boolean column.
func (s *Series) Flag(name string) ([]bool, bool) {
	v, ok := s.flags[name]
	return v, ok
}

// FloatNames returns the names of the derived float columns.
func (s *Series) FloatNames() []string {
	return s.namesOf(func(n string) bool {
		_, ok := s.floats[n]
		return ok
	})
}

// FlagNames returns the names of the derived boolean columns.
func (s *Series) FlagNames() []string {
	return s.namesOf(func(n string) bool {
		_, ok := s.flags[n]
		return ok
	})
}

func (s *Series) namesOf(keep func(string) bool) []string {
	var out []string
	for _, n := range s.names {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s *Series) col(name string) []float64 { return s.floats[name] }

func (s *Series) setFloat(name string, v []float64) {
	if !s.Has(name) {
		s.names = append(s.names, name)
	}
	s.floats[name] = v
}

func (s *Series) setFlag(name string, v []bool) {
	if !s.Has(name) {
		s.names = append(s.names, name)
	}
	s.flags[name] = v
}
