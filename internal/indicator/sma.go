package indicator

import "fmt"

// SMA calculates a Simple Moving Average over a rolling window.
// Until the window fills, Value is the mean of everything seen so far.
// Uses a preallocated circular buffer.
type SMA struct {
	period int
	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total values received
	sum    float64
}

// NewSMA creates a new SMA kernel with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}
	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *SMA) Value() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(min(s.count, s.period))
}

func (s *SMA) Ready() bool { return s.count >= s.period }

// SimpleMovingAverage returns the trailing mean of values over period rows.
// Rows before the window fills use all rows available so far.
func SimpleMovingAverage(values []float64, period int) ([]float64, error) {
	name := fmt.Sprintf("sma%d", period)
	if err := checkPeriod(name, period, 5, 200); err != nil {
		return nil, err
	}
	if err := checkRows(name, len(values), period); err != nil {
		return nil, err
	}
	return run(NewSMA(period), values), nil
}

// CumulativeMovingAverage returns the expanding mean of values.
func CumulativeMovingAverage(values []float64) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		out[i] = sum / float64(i+1)
	}
	return out
}

// AddSMA adds column "sma<period>".
func (s *Series) AddSMA(period int) error {
	v, err := SimpleMovingAverage(s.col("close"), period)
	if err != nil {
		return err
	}
	s.setFloat(fmt.Sprintf("sma%d", period), v)
	return nil
}

// AddCMA adds column "cma".
func (s *Series) AddCMA() {
	s.setFloat("cma", CumulativeMovingAverage(s.col("close")))
}

func (s *Series) ensureSMA(period int) error {
	if s.Has(fmt.Sprintf("sma%d", period)) {
		return nil
	}
	return s.AddSMA(period)
}

func run(k Indicator, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		k.Update(v)
		out[i] = k.Value()
	}
	return out
}
