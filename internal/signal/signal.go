// Package signal projects one row of an indicator series into a flat
// Signal that the decision engine reads.
package signal

import (
	"sort"
	"time"

	"cryptosignal/internal/indicator"
)

// Signal is the value of every column of a series at one row.
type Signal struct {
	Date   time.Time          `json:"date"`
	Market string             `json:"market"`
	Close  float64            `json:"close_price"`
	Values map[string]float64 `json:"values"`
	Flags  map[string]bool    `json:"flags"`
}

// Latest returns the last row of s. ok is false for an empty series, which
// callers treat as "nothing to evaluate this cycle".
func Latest(s *indicator.Series) (Signal, bool) {
	if s == nil || s.Len() == 0 {
		return Signal{}, false
	}
	return At(s, s.Len()-1), true
}

// At returns row i of s. i must be within [0, s.Len()).
func At(s *indicator.Series, i int) Signal {
	b := s.Bar(i)
	sig := Signal{
		Date:   b.Date,
		Market: b.Market,
		Close:  b.Close,
		Values: make(map[string]float64),
		Flags:  make(map[string]bool),
	}
	for _, name := range s.FloatNames() {
		col, _ := s.Float(name)
		sig.Values[name] = col[i]
	}
	for _, name := range s.FlagNames() {
		col, _ := s.Flag(name)
		sig.Flags[name] = col[i]
	}
	return sig
}

// Flag returns a boolean column value; missing columns read as false.
func (sig Signal) Flag(name string) bool { return sig.Flags[name] }

// Value returns a numeric column value and whether the column exists.
func (sig Signal) Value(name string) (float64, bool) {
	v, ok := sig.Values[name]
	return v, ok
}

// Active returns the names of the flags set on this row, sorted.
func (sig Signal) Active() []string {
	var out []string
	for name, v := range sig.Flags {
		if v {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
