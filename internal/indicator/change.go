package indicator

import "strconv"

// AddChangePct adds "close_pc" (fractional change from the previous close,
// 0 on row 0) and "close_cpc" (cumulative product of 1+close_pc).
func (s *Series) AddChangePct() {
	c := s.col("close")
	pc, cpc := make([]float64, len(c)), make([]float64, len(c))
	acc := 1.0
	for i := range c {
		if i > 0 && c[i-1] != 0 {
			pc[i] = c[i]/c[i-1] - 1
		}
		acc *= 1 + pc[i]
		cpc[i] = acc
	}
	s.setFloat("close_pc", pc)
	s.setFloat("close_cpc", cpc)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
