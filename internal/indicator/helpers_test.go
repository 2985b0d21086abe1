package indicator

import (
	"math"
	"testing"
	"time"

	"cryptosignal/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) model.PriceBar {
	return model.PriceBar{
		Date:        t0.Add(time.Duration(i) * time.Minute),
		Market:      "BTCUSDT",
		Granularity: 60,
		Open:        o, High: h, Low: l, Close: c,
		Volume: 100,
	}
}

func barsFromCloses(closes []float64) []model.PriceBar {
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = bar(i, c, c+0.5, c-0.5, c)
	}
	return bars
}

func mustSeries(t *testing.T, bars []model.PriceBar) *Series {
	t.Helper()
	s, err := NewSeries(bars)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func ramp(from float64, n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func countTrue(v []bool) int {
	n := 0
	for _, b := range v {
		if b {
			n++
		}
	}
	return n
}
