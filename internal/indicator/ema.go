package indicator

import "fmt"

// EMA calculates an Exponential Moving Average seeded with the first
// value, with no warm-up bias correction. O(1) per update.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA kernel with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(v float64) {
	e.count++
	if e.count == 1 {
		e.current = v
		return
	}
	// EMA = (v * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// ExponentialMovingAverage returns the EMA of values with alpha 2/(period+1).
func ExponentialMovingAverage(values []float64, period int) ([]float64, error) {
	name := fmt.Sprintf("ema%d", period)
	if err := checkPeriod(name, period, 5, 200); err != nil {
		return nil, err
	}
	if err := checkRows(name, len(values), period); err != nil {
		return nil, err
	}
	return run(NewEMA(period), values), nil
}

// AddEMA adds column "ema<period>".
func (s *Series) AddEMA(period int) error {
	v, err := ExponentialMovingAverage(s.col("close"), period)
	if err != nil {
		return err
	}
	s.setFloat(fmt.Sprintf("ema%d", period), v)
	return nil
}

func (s *Series) ensureEMA(period int) error {
	if s.Has(fmt.Sprintf("ema%d", period)) {
		return nil
	}
	return s.AddEMA(period)
}
