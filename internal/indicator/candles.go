package indicator

import "math"

// ohlc gives detectors direct access to the base columns.
type ohlc struct {
	o, h, l, c []float64
}

// pattern is a candlestick detector over bar i and its predecessors.
// match is only called when i >= lookback.
type pattern struct {
	name     string
	lookback int
	match    func(b ohlc, i int) bool
}

func body(b ohlc, i int) float64 { return math.Abs(b.o[i] - b.c[i]) }
func top(b ohlc, i int) float64  { return math.Max(b.o[i], b.c[i]) }
func foot(b ohlc, i int) float64 { return math.Min(b.o[i], b.c[i]) }

// isDoji is the small-body, long-shadows test shared by the doji patterns.
func isDoji(b ohlc, i int) bool {
	return body(b, i)/(b.h[i]-b.l[i]) < 0.1 &&
		b.h[i]-top(b, i) > 3*body(b, i) &&
		foot(b, i)-b.l[i] > 3*body(b, i)
}

// blackCrow is a bar opening inside the previous body and closing under its low.
func blackCrow(b ohlc, i int) bool {
	return b.o[i] < b.o[i-1] && b.o[i] > b.c[i-1] &&
		b.c[i] < b.l[i-1] &&
		b.l[i]-top(b, i) < body(b, i)
}

func whiteSoldier(b ohlc, i int) bool {
	return b.o[i] > b.o[i-1] && b.o[i] < b.c[i-1] &&
		b.c[i] > b.h[i-1] &&
		b.h[i]-top(b, i) < body(b, i)
}

// patterns lists the candlestick detectors in column order.
var patterns = []pattern{
	{"hammer", 0, func(b ohlc, i int) bool {
		rng := 0.001 + b.h[i] - b.l[i]
		return b.h[i]-b.l[i] > 3*(b.o[i]-b.c[i]) &&
			(b.c[i]-b.l[i])/rng > 0.6 &&
			(b.o[i]-b.l[i])/rng > 0.6
	}},
	{"shooting_star", 1, func(b ohlc, i int) bool {
		return b.o[i-1] < b.c[i-1] && b.c[i-1] < b.o[i] &&
			b.h[i]-top(b, i) >= 3*body(b, i) &&
			foot(b, i)-b.l[i] <= body(b, i)
	}},
	{"hanging_man", 2, func(b ohlc, i int) bool {
		rng := 0.001 + b.h[i] - b.l[i]
		return b.h[i]-b.l[i] > 4*(b.o[i]-b.c[i]) &&
			(b.c[i]-b.l[i])/rng >= 0.75 &&
			(b.o[i]-b.l[i])/rng >= 0.75 &&
			b.h[i-1] < b.o[i] && b.h[i-2] < b.o[i]
	}},
	{"inverted_hammer", 0, func(b ohlc, i int) bool {
		rng := 0.001 + b.h[i] - b.l[i]
		return b.h[i]-b.l[i] > 3*(b.o[i]-b.c[i]) &&
			(b.h[i]-b.c[i])/rng > 0.6 &&
			(b.h[i]-b.o[i])/rng > 0.6
	}},
	{"three_white_soldiers", 2, func(b ohlc, i int) bool {
		return whiteSoldier(b, i) && whiteSoldier(b, i-1)
	}},
	{"three_black_crows", 2, func(b ohlc, i int) bool {
		return blackCrow(b, i) && blackCrow(b, i-1)
	}},
	{"doji", 0, isDoji},
	{"three_line_strike", 3, func(b ohlc, i int) bool {
		return blackCrow(b, i-1) && blackCrow(b, i-2) &&
			b.o[i] < b.l[i-1] && b.c[i] > b.h[i-3]
	}},
	{"two_black_gapping", 2, func(b ohlc, i int) bool {
		return blackCrow(b, i) && b.h[i-1] < b.l[i-2]
	}},
	{"morning_star", 2, func(b ohlc, i int) bool {
		return top(b, i-1) < b.c[i-2] && b.c[i-2] < b.o[i-2] &&
			b.c[i] > b.o[i] && b.o[i] > top(b, i-1)
	}},
	{"evening_star", 2, func(b ohlc, i int) bool {
		return foot(b, i-1) > b.c[i-2] && b.c[i-2] > b.o[i-2] &&
			b.c[i] < b.o[i] && b.o[i] < foot(b, i-1)
	}},
	{"abandoned_baby", 2, func(b ohlc, i int) bool {
		return b.o[i] < b.c[i] && b.h[i-1] < b.l[i] &&
			b.o[i-2] > b.c[i-2] && b.h[i-1] < b.l[i-2]
	}},
	{"morning_doji_star", 2, func(b ohlc, i int) bool {
		return b.c[i-2] < b.o[i-2] && body(b, i-2)/(b.h[i-2]-b.l[i-2]) >= 0.7 &&
			isDoji(b, i-1) &&
			b.c[i] > b.o[i] && body(b, i)/(b.h[i]-b.l[i]) >= 0.7 &&
			b.c[i-2] > b.c[i-1] && b.c[i-2] > b.o[i-1] &&
			b.c[i-1] < b.o[i] && b.o[i-1] < b.o[i] &&
			b.c[i] > b.c[i-2]
	}},
	{"evening_doji_star", 2, func(b ohlc, i int) bool {
		return b.c[i-2] > b.o[i-2] && body(b, i-2)/(b.h[i-2]-b.l[i-2]) >= 0.7 &&
			isDoji(b, i-1) &&
			b.c[i] < b.o[i] && body(b, i)/(b.h[i]-b.l[i]) >= 0.7 &&
			b.c[i-2] < b.c[i-1] && b.c[i-2] < b.o[i-1] &&
			b.c[i-1] > b.o[i] && b.o[i-1] > b.o[i] &&
			b.c[i] < b.c[i-2]
	}},
	{"astral_buy", 12, func(b ohlc, i int) bool {
		for k := 0; k < 8; k++ {
			if !(b.c[i-k] < b.c[i-k-3] && b.l[i-k] < b.l[i-k-5]) {
				return false
			}
		}
		return true
	}},
	{"astral_sell", 12, func(b ohlc, i int) bool {
		for k := 0; k < 8; k++ {
			if !(b.c[i-k] > b.c[i-k-3] && b.h[i-k] > b.h[i-k-5]) {
				return false
			}
		}
		return true
	}},
}

// detectPattern evaluates one detector over every bar. Bars without enough
// predecessors are false.
func detectPattern(p pattern, open, high, low, close []float64) []bool {
	b := ohlc{o: open, h: high, l: low, c: close}
	out := make([]bool, len(close))
	for i := p.lookback; i < len(close); i++ {
		out[i] = p.match(b, i)
	}
	return out
}

// AddCandlePatterns adds one boolean column per detector.
func (s *Series) AddCandlePatterns() {
	for _, p := range patterns {
		s.setFlag(p.name, detectPattern(p, s.col("open"), s.col("high"), s.col("low"), s.col("close")))
	}
}

// PatternNames returns the candlestick column names.
func PatternNames() []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = p.name
	}
	return out
}
