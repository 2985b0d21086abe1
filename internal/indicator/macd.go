package indicator

// MACD returns macd = EMA12 - EMA26 and its EMA9 signal line.
func MACD(values []float64) (macd, signal []float64, err error) {
	if err := checkRows("macd", len(values), 26); err != nil {
		return nil, nil, err
	}
	fast, _ := ExponentialMovingAverage(values, 12)
	slow, _ := ExponentialMovingAverage(values, 26)
	macd = make([]float64, len(values))
	for i := range values {
		macd[i] = fast[i] - slow[i]
	}
	return macd, run(NewEMA(9), macd), nil
}

// AddMACD adds "macd" and "signal".
func (s *Series) AddMACD() error {
	macd, signal, err := MACD(s.col("close"))
	if err != nil {
		return err
	}
	s.setFloat("macd", macd)
	s.setFloat("signal", signal)
	return nil
}

// AddMACDCrossSignals adds macdgtsignal, macdgtsignalco, macdltsignal
// and macdltsignalco.
func (s *Series) AddMACDCrossSignals() error {
	if !s.Has("macd") {
		if err := s.AddMACD(); err != nil {
			return err
		}
	}
	s.addRelationFlags("macd", "signal")
	return nil
}
