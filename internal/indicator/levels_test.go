package indicator

import (
	"testing"

	"cryptosignal/internal/model"
)

func barsFromLows(lows []float64) []model.PriceBar {
	bars := make([]model.PriceBar, len(lows))
	for i, l := range lows {
		bars[i] = bar(i, l+0.5, l+1, l, l+0.5)
	}
	return bars
}

func TestSupportResistance_FindsLocalExtremes(t *testing.T) {
	// support at row 2 (low 3), resistance at row 6 (high 8)
	s := mustSeries(t, barsFromLows([]float64{5, 4, 3, 4, 5, 6, 7, 6, 5}))
	levels := s.SupportResistanceLevels()
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %+v", levels)
	}
	if levels[0].Kind != Support || levels[0].Index != 2 || levels[0].Price != 3 {
		t.Errorf("support: got %+v", levels[0])
	}
	if levels[1].Kind != Resistance || levels[1].Index != 6 || levels[1].Price != 8 {
		t.Errorf("resistance: got %+v", levels[1])
	}
	if !levels[1].Date.Equal(s.Bar(6).Date) {
		t.Errorf("level date %v, want %v", levels[1].Date, s.Bar(6).Date)
	}

	assertClose(t, "Resistance(5)", s.Resistance(5), 8, 1e-12)
	assertClose(t, "Resistance(9)", s.Resistance(9), 9, 1e-12)
}

func TestSupportResistance_DeduplicatesNearbyLevels(t *testing.T) {
	// two supports at 3 and 3.5 with a mean bar range of 1: only the first survives
	lows := []float64{5, 4, 3, 4, 5, 4.5, 4, 3.5, 4, 5}
	levels := SupportResistance(ramp(0, 0, 0), nil)
	if levels != nil {
		t.Fatalf("empty input should yield no levels")
	}
	s := mustSeries(t, barsFromLows(lows))
	levels = s.SupportResistanceLevels()
	supports := 0
	for _, l := range levels {
		if l.Kind == Support {
			supports++
		}
	}
	if supports != 1 {
		t.Errorf("expected 1 support after de-duplication, got %+v", levels)
	}
}

func TestIsSupport_BoundaryChecks(t *testing.T) {
	lows := []float64{5, 4, 3, 4, 5}
	if IsSupport(lows, 1) || IsSupport(lows, 3) {
		t.Error("rows without two neighbours on each side cannot be support")
	}
	if !IsSupport(lows, 2) {
		t.Error("row 2 should be support")
	}
}

func TestRetracementLevels(t *testing.T) {
	levels := RetracementLevels([]float64{150, 100, 200, 180})
	want := map[string]float64{
		"ratio1":     100,
		"ratio0_768": 123.2,
		"ratio0_618": 138.2,
		"ratio0_5":   150,
		"ratio0_382": 161.8,
		"ratio0_286": 171.4,
		"ratio0":     200,
		"ratio1_272": 227.2,
		"ratio1_414": 241.4,
		"ratio1_618": 261.8,
	}
	if len(levels) != len(want) {
		t.Fatalf("got %d levels, want %d", len(levels), len(want))
	}
	for i, l := range levels {
		// truncation to two decimals may land one cent low
		assertClose(t, l.Name, l.Price, want[l.Name], 0.0100001)
		if i > 0 && l.Price < levels[i-1].Price {
			t.Errorf("levels not ascending at %s", l.Name)
		}
	}
}

func TestFibonacciHelpers(t *testing.T) {
	s := mustSeries(t, barsFromCloses([]float64{150, 100, 200, 180}))

	if got := s.FibonacciLevels(0); len(got) != 10 {
		t.Errorf("price 0 should return all levels, got %d", len(got))
	}
	pair := s.FibonacciLevels(145)
	if len(pair) != 2 || pair[0].Name != "ratio0_618" || pair[1].Name != "ratio0_5" {
		t.Errorf("bracket of 145: got %+v", pair)
	}
	if low := s.FibonacciLevels(90); len(low) != 1 || low[0].Name != "ratio1" {
		t.Errorf("below range: got %+v", low)
	}
	if above := s.FibonacciLevels(500); len(above) != 0 {
		t.Errorf("above range: got %+v", above)
	}

	assertClose(t, "FibonacciUpper(151)", s.FibonacciUpper(151), 161.8, 0.0100001)
	assertClose(t, "FibonacciUpper(300)", s.FibonacciUpper(300), 300, 1e-12)
	// no support/resistance on four bars: exit falls back to the price
	assertClose(t, "TradeExit(151)", s.TradeExit(151), 151, 1e-12)
}

func TestTradeExit_PicksNearerTarget(t *testing.T) {
	// closes ranging 3.5..7.5 with a resistance at high 8 (row 6)
	s := mustSeries(t, barsFromLows([]float64{5, 4, 3, 4, 5, 6, 7, 6, 5}))
	price := 6.0
	r := s.Resistance(price)
	f := s.FibonacciUpper(price)
	got := s.TradeExit(price)
	want := r
	if f < r {
		want = f
	}
	assertClose(t, "TradeExit", got, want, 1e-12)
	if got <= price {
		t.Errorf("exit %v should be above price %v", got, price)
	}
}
