package indicator

// AddElderRay adds the Elder Ray Index over EMA13:
// elder_ray_bull = high - ema13, elder_ray_bear = low - ema13.
//
// eri_buy: bear power negative but rising, or bull power rising.
// eri_sell: bull power positive but falling, or bear power falling.
func (s *Series) AddElderRay() error {
	if err := s.ensureEMA(13); err != nil {
		return err
	}
	ema, high, low := s.col("ema13"), s.col("high"), s.col("low")
	n := s.Len()
	bull, bear := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		bull[i] = high[i] - ema[i]
		bear[i] = low[i] - ema[i]
	}

	buy, sell := make([]bool, n), make([]bool, n)
	for i := 1; i < n; i++ {
		buy[i] = (bear[i] < 0 && bear[i] > bear[i-1]) || bull[i] > bull[i-1]
		sell[i] = (bull[i] > 0 && bull[i] < bull[i-1]) || bear[i] < bear[i-1]
	}
	s.setFloat("elder_ray_bull", bull)
	s.setFloat("elder_ray_bear", bear)
	s.setFlag("eri_buy", buy)
	s.setFlag("eri_sell", sell)
	return nil
}
