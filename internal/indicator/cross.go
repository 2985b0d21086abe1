package indicator

// CrossAbove is true on bars where fast moves from <= slow to > slow.
// Row 0 has no previous bar and is always false.
func CrossAbove(fast, slow []float64) []bool {
	out := make([]bool, len(fast))
	for i := 1; i < len(fast); i++ {
		out[i] = fast[i] > slow[i] && fast[i-1] <= slow[i-1]
	}
	return out
}

// CrossBelow is the mirror of CrossAbove.
func CrossBelow(fast, slow []float64) []bool {
	out := make([]bool, len(fast))
	for i := 1; i < len(fast); i++ {
		out[i] = fast[i] < slow[i] && fast[i-1] >= slow[i-1]
	}
	return out
}

// Greater is the per-row relation a > b.
func Greater(a, b []float64) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] > b[i]
	}
	return out
}

// Less is the per-row relation a < b.
func Less(a, b []float64) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] < b[i]
	}
	return out
}

// Onset is true on bars where rel becomes true after being false.
func Onset(rel []bool) []bool {
	out := make([]bool, len(rel))
	for i := 1; i < len(rel); i++ {
		out[i] = rel[i] && !rel[i-1]
	}
	return out
}

// AddGoldenCross adds "golden_cross" (SMA5 over SMA20) and
// "golden_cross_ema" (EMA5 over EMA20).
func (s *Series) AddGoldenCross() error {
	if err := s.ensureCrossInputs(); err != nil {
		return err
	}
	s.setFlag("golden_cross", CrossAbove(s.col("sma5"), s.col("sma20")))
	s.setFlag("golden_cross_ema", CrossAbove(s.col("ema5"), s.col("ema20")))
	return nil
}

// AddDeathCross adds "death_cross" and "death_cross_ema".
func (s *Series) AddDeathCross() error {
	if err := s.ensureCrossInputs(); err != nil {
		return err
	}
	s.setFlag("death_cross", CrossBelow(s.col("sma5"), s.col("sma20")))
	s.setFlag("death_cross_ema", CrossBelow(s.col("ema5"), s.col("ema20")))
	return nil
}

func (s *Series) ensureCrossInputs() error {
	for _, p := range []int{5, 20} {
		if err := s.ensureSMA(p); err != nil {
			return err
		}
		if err := s.ensureEMA(p); err != nil {
			return err
		}
	}
	return nil
}

// AddEMACrossSignals adds the EMA12/EMA26 relation flags
// ema12gtema26, ema12gtema26co, ema12ltema26, ema12ltema26co.
func (s *Series) AddEMACrossSignals() error {
	for _, p := range []int{12, 26} {
		if err := s.ensureEMA(p); err != nil {
			return err
		}
	}
	s.addRelationFlags("ema12", "ema26")
	return nil
}

// AddSMACrossSignals adds the SMA50/SMA200 relation flags.
func (s *Series) AddSMACrossSignals() error {
	for _, p := range []int{50, 200} {
		if err := s.ensureSMA(p); err != nil {
			return err
		}
	}
	s.addRelationFlags("sma50", "sma200")
	return nil
}

func (s *Series) addRelationFlags(a, b string) {
	gt := Greater(s.col(a), s.col(b))
	lt := Less(s.col(a), s.col(b))
	s.setFlag(a+"gt"+b, gt)
	s.setFlag(a+"gt"+b+"co", Onset(gt))
	s.setFlag(a+"lt"+b, lt)
	s.setFlag(a+"lt"+b+"co", Onset(lt))
}
