package indicator

// WilderMean is an exponentially weighted mean with alpha = 1/period and
// bias-corrected weights: each value is the weighted average of every input
// so far with weights (1-alpha)^age. It is not Ready (and Value is
// meaningless) until period values have been seen.
type WilderMean struct {
	period int
	decay  float64
	num    float64
	den    float64
	count  int
}

// NewWilderMean creates a Wilder-style mean with center of mass period-1.
func NewWilderMean(period int) *WilderMean {
	return &WilderMean{
		period: period,
		decay:  1 - 1/float64(period),
	}
}

func (w *WilderMean) Name() string { return "SMMA" }

func (w *WilderMean) Update(v float64) {
	w.num = v + w.decay*w.num
	w.den = 1 + w.decay*w.den
	w.count++
}

func (w *WilderMean) Value() float64 {
	if w.den == 0 {
		return 0
	}
	return w.num / w.den
}

func (w *WilderMean) Ready() bool { return w.count >= w.period }
