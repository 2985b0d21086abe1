package indicator

import (
	"math"
	"strings"

	"github.com/markcheno/go-talib"
)

// FibonacciRatios scale the Fibonacci Bollinger Band offsets.
var FibonacciRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.764, 1}

// FibonacciBands holds the mid line and the band offsets of each ratio.
type FibonacciBands struct {
	Mid   []float64
	Upper map[float64][]float64
	Lower map[float64][]float64
}

// FibonacciBollingerBands computes bands around the interval-period mean of
// typical price (high+low+close)/3, offset by multiplier sample standard
// deviations times each Fibonacci ratio. Rows before the window fills are 0.
func FibonacciBollingerBands(high, low, close []float64, interval int, multiplier float64) (FibonacciBands, error) {
	if err := checkPeriod("fbb", interval, 2, 200); err != nil {
		return FibonacciBands{}, err
	}
	if err := checkRows("fbb", len(close), interval); err != nil {
		return FibonacciBands{}, err
	}

	tp := talib.TypPrice(high, low, close)
	n := len(tp)
	mid, dev := make([]float64, n), make([]float64, n)
	for i := interval - 1; i < n; i++ {
		window := tp[i-interval+1 : i+1]
		m := mean(window)
		mid[i] = m
		dev[i] = multiplier * sampleStd(window, m)
	}

	bands := FibonacciBands{
		Mid:   mid,
		Upper: make(map[float64][]float64, len(FibonacciRatios)),
		Lower: make(map[float64][]float64, len(FibonacciRatios)),
	}
	for _, r := range FibonacciRatios {
		up, lo := make([]float64, n), make([]float64, n)
		for i := range mid {
			up[i] = mid[i] + r*dev[i]
			lo[i] = mid[i] - r*dev[i]
		}
		bands.Upper[r], bands.Lower[r] = up, lo
	}
	return bands, nil
}

// AddFibonacciBollingerBands adds fbb_mid and fbb_upper<r>/fbb_lower<r>
// for every ratio (e.g. fbb_upper0_236, fbb_lower1).
func (s *Series) AddFibonacciBollingerBands(interval int, multiplier float64) error {
	b, err := FibonacciBollingerBands(s.col("high"), s.col("low"), s.col("close"), interval, multiplier)
	if err != nil {
		return err
	}
	s.setFloat("fbb_mid", b.Mid)
	for _, r := range FibonacciRatios {
		s.setFloat("fbb_upper"+ratioSuffix(r), b.Upper[r])
		s.setFloat("fbb_lower"+ratioSuffix(r), b.Lower[r])
	}
	return nil
}

// ratioSuffix renders 0.236 as "0_236" and 1 as "1".
func ratioSuffix(r float64) string {
	s := strings.TrimRight(strings.TrimRight(formatFloat(r), "0"), ".")
	return strings.ReplaceAll(s, ".", "_")
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func sampleStd(v []float64, m float64) float64 {
	if len(v) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range v {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(v)-1))
}
