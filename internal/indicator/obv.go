package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// OnBalanceVolume returns OBV seeded with the first bar's volume: volume is
// added on an up close, subtracted on a down close and carried on a tie.
func OnBalanceVolume(close, volume []float64) []float64 {
	if len(close) == 0 {
		return []float64{}
	}
	return talib.Obv(close, volume)
}

// PercentChange returns 100 * (v[i]/v[i-1] - 1) rounded to two decimals,
// with 0 where the previous value is zero and on row 0.
func PercentChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		pc := (values[i]/values[i-1] - 1) * 100
		if math.IsNaN(pc) || math.IsInf(pc, 0) {
			continue
		}
		out[i] = math.Round(pc*100) / 100
	}
	return out
}

// AddOBV adds "obv" and "obv_pc".
func (s *Series) AddOBV() {
	obv := OnBalanceVolume(s.col("close"), s.col("volume"))
	s.setFloat("obv", obv)
	s.setFloat("obv_pc", PercentChange(obv))
}
