package indicator

import (
	"math"
	"sort"
	"time"
)

// LevelKind tells a support level from a resistance level.
type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// Level is a price level formed at bar Index.
type Level struct {
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
	Kind  LevelKind `json:"kind"`
}

// IsSupport reports whether low[i] is a five-bar local minimum whose
// neighbours keep falling away on both sides. Requires 2 <= i < len-2.
func IsSupport(low []float64, i int) bool {
	if i < 2 || i+2 >= len(low) {
		return false
	}
	return low[i] < low[i-1] && low[i] < low[i+1] && low[i+1] < low[i+2] && low[i-1] < low[i-2]
}

// IsResistance is the mirror of IsSupport over highs.
func IsResistance(high []float64, i int) bool {
	if i < 2 || i+2 >= len(high) {
		return false
	}
	return high[i] > high[i-1] && high[i] > high[i+1] && high[i+1] > high[i+2] && high[i-1] > high[i-2]
}

// SupportResistance scans for support and resistance points. A point is
// kept only when no earlier kept level lies within the mean bar range.
// Levels are confirmed two bars after they form, so this is a whole-series
// view and is not stored as a column.
func SupportResistance(high, low []float64) []Level {
	n := len(high)
	if n < 5 {
		return nil
	}
	ranges := make([]float64, n)
	for i := range high {
		ranges[i] = high[i] - low[i]
	}
	tol := mean(ranges)

	var levels []Level
	farFromAll := func(p float64) bool {
		for _, l := range levels {
			if math.Abs(p-l.Price) < tol {
				return false
			}
		}
		return true
	}
	for i := 2; i < n-2; i++ {
		switch {
		case IsSupport(low, i):
			if farFromAll(low[i]) {
				levels = append(levels, Level{Index: i, Price: low[i], Kind: Support})
			}
		case IsResistance(high, i):
			if farFromAll(high[i]) {
				levels = append(levels, Level{Index: i, Price: high[i], Kind: Resistance})
			}
		}
	}
	return levels
}

// SupportResistanceLevels returns the levels of the series with bar dates.
func (s *Series) SupportResistanceLevels() []Level {
	levels := SupportResistance(s.col("high"), s.col("low"))
	for i := range levels {
		levels[i].Date = s.bars[levels[i].Index].Date
	}
	return levels
}

// Resistance returns the lowest level above price, or price itself when
// none exists.
func (s *Series) Resistance(price float64) float64 {
	if price <= 0 {
		return price
	}
	levels := s.SupportResistanceLevels()
	prices := make([]float64, len(levels))
	for i, l := range levels {
		prices[i] = l.Price
	}
	sort.Float64s(prices)
	for _, p := range prices {
		if p > price {
			return p
		}
	}
	return price
}

// FibLevel is one Fibonacci retracement level.
type FibLevel struct {
	Name  string  `json:"name"`
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// retracements in ascending price order; prices below the max are
// max - ratio*diff, extensions above are max + (ratio-1)*diff.
var retracements = []struct {
	name  string
	ratio float64
}{
	{"ratio1", 1}, {"ratio0_768", 0.768}, {"ratio0_618", 0.618}, {"ratio0_5", 0.5},
	{"ratio0_382", 0.382}, {"ratio0_286", 0.286}, {"ratio0", 0},
	{"ratio1_272", 1.272}, {"ratio1_414", 1.414}, {"ratio1_618", 1.618},
}

// RetracementLevels returns every level over the close range, ascending,
// each truncated to two decimals.
func RetracementLevels(close []float64) []FibLevel {
	if len(close) == 0 {
		return nil
	}
	lo, hi := close[0], close[0]
	for _, c := range close {
		lo, hi = math.Min(lo, c), math.Max(hi, c)
	}
	diff := hi - lo

	out := make([]FibLevel, 0, len(retracements))
	for _, r := range retracements {
		p := hi - r.ratio*diff
		if r.ratio > 1 {
			p = hi + (r.ratio-1)*diff
		}
		out = append(out, FibLevel{Name: r.name, Ratio: r.ratio, Price: truncate(p, 2)})
	}
	return out
}

// FibonacciLevels returns all retracement levels when price is 0, else the
// pair of levels bracketing price (only the bottom level when price is at
// or under the low, none above the last extension).
func (s *Series) FibonacciLevels(price float64) []FibLevel {
	all := RetracementLevels(s.col("close"))
	if price == 0 || len(all) == 0 {
		return all
	}
	if price <= all[0].Price {
		return all[:1]
	}
	for k := 0; k+1 < len(all); k++ {
		if price > all[k].Price && price <= all[k+1].Price {
			return all[k : k+2]
		}
	}
	return nil
}

// FibonacciUpper returns the first retracement level above price, or price.
func (s *Series) FibonacciUpper(price float64) float64 {
	if price <= 0 {
		return price
	}
	for _, l := range RetracementLevels(s.col("close")) {
		if l.Price > price {
			return l.Price
		}
	}
	return price
}

// TradeExit suggests an exit target above price: the nearer of the next
// resistance and the next Fibonacci level that is more than 1% away.
// Returns price when neither qualifies.
func (s *Series) TradeExit(price float64) float64 {
	if price <= 0 {
		return price
	}
	r := s.Resistance(price)
	f := s.FibonacciUpper(price)
	if price >= r || price >= f {
		return price
	}
	rMargin := (r - price) / price * 100
	fMargin := (f - price) / price * 100
	switch {
	case rMargin > 1 && fMargin > 1:
		return math.Min(r, f)
	case rMargin > 1 && fMargin < 1:
		return r
	case fMargin > 1 && rMargin < 1:
		return f
	}
	return price
}

func truncate(f float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Floor(f*p) / p
}
