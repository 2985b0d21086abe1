package indicator

import (
	"fmt"
	"math"
)

// neutralRSI is reported wherever the averages are not yet defined.
const neutralRSI = 50.0

// RelativeStrengthIndex returns RSI(period) of values.
//
// Gains and losses of close-to-close deltas are smoothed with a Wilder mean
// (center of mass period-1). The first period rows are neutral (50). A zero
// average loss with positive gains reads 100; flat windows read 50.
func RelativeStrengthIndex(values []float64, period int) ([]float64, error) {
	name := fmt.Sprintf("rsi%d", period)
	if err := checkPeriod(name, period, 7, 21); err != nil {
		return nil, err
	}
	if err := checkRows(name, len(values), period); err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	out[0] = neutralRSI
	gains, losses := NewWilderMean(period), NewWilderMean(period)
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gains.Update(math.Max(delta, 0))
		losses.Update(math.Max(-delta, 0))
		if !gains.Ready() {
			out[i] = neutralRSI
			continue
		}
		out[i] = rsiFromAverages(gains.Value(), losses.Value())
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return neutralRSI
		}
		return 100
	}
	rs := math.Abs(avgGain / avgLoss)
	return 100 - 100/(1+rs)
}

// AddRSI adds column "rsi<period>".
func (s *Series) AddRSI(period int) error {
	v, err := RelativeStrengthIndex(s.col("close"), period)
	if err != nil {
		return err
	}
	s.setFloat(fmt.Sprintf("rsi%d", period), v)
	return nil
}
