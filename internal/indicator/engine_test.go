package indicator

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"cryptosignal/internal/model"
)

func scenarioCloses() []float64 {
	// Five flat bars at 10, then a monotonic rise: 25 bars in total.
	closes := []float64{10, 10, 10, 10, 10}
	for v := 11.0; len(closes) < 25; v++ {
		closes = append(closes, v)
	}
	return closes
}

func riseThenFall() []float64 {
	closes := ramp(100, 30, 1)
	return append(closes, ramp(128, 30, -1)...)
}

func TestGoldenCrossEMA_FiresAtFirstCrossing(t *testing.T) {
	s := mustSeries(t, barsFromCloses(scenarioCloses()))
	if err := s.AddGoldenCross(); err != nil {
		t.Fatal(err)
	}
	gc, _ := s.Flag("golden_cross_ema")
	ema5, _ := s.Float("ema5")
	ema20, _ := s.Float("ema20")

	first := -1
	for i := range ema5 {
		if ema5[i] > ema20[i] {
			first = i
			break
		}
	}
	if first != 5 {
		t.Fatalf("EMA5 first exceeds EMA20 at %d, want 5", first)
	}
	for i, v := range gc {
		if v != (i == first) {
			t.Errorf("golden_cross_ema[%d] = %v", i, v)
		}
	}
}

func TestGoldenCross_AtMostOncePerRegime(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/9)
	}
	s := mustSeries(t, barsFromCloses(closes))
	if err := s.AddGoldenCross(); err != nil {
		t.Fatal(err)
	}
	for _, pair := range [][3]string{
		{"golden_cross", "sma5", "sma20"},
		{"golden_cross_ema", "ema5", "ema20"},
	} {
		flags, _ := s.Flag(pair[0])
		fast, _ := s.Float(pair[1])
		slow, _ := s.Float(pair[2])
		if countTrue(flags) == 0 {
			t.Fatalf("%s never fired on an oscillating series", pair[0])
		}
		last := -1
		for i, f := range flags {
			if !f {
				continue
			}
			if last >= 0 {
				// the regime must have ended between two firings
				ended := false
				for j := last + 1; j < i; j++ {
					if fast[j] <= slow[j] {
						ended = true
						break
					}
				}
				if !ended {
					t.Errorf("%s fired at %d and %d within one bullish regime", pair[0], last, i)
				}
			}
			last = i
		}
	}
}

func TestCrosses_RiseThenFall(t *testing.T) {
	s := mustSeries(t, barsFromCloses(riseThenFall()))
	if err := s.AddGoldenCross(); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDeathCross(); err != nil {
		t.Fatal(err)
	}
	gc, _ := s.Flag("golden_cross_ema")
	dc, _ := s.Flag("death_cross_ema")
	if countTrue(gc) != 1 || !gc[1] {
		t.Errorf("golden_cross_ema: want exactly row 1, got %d firings", countTrue(gc))
	}
	if countTrue(dc) != 1 {
		t.Fatalf("death_cross_ema: want 1 firing, got %d", countTrue(dc))
	}
	for i, v := range dc {
		if v && (i < 30 || i >= 45) {
			t.Errorf("death_cross_ema fired at %d, want shortly after the top (30)", i)
		}
	}
}

func TestRelationFlags_OnsetOnly(t *testing.T) {
	s := mustSeries(t, barsFromCloses(riseThenFall()))
	if err := s.AddEMACrossSignals(); err != nil {
		t.Fatal(err)
	}
	gt, _ := s.Flag("ema12gtema26")
	co, _ := s.Flag("ema12gtema26co")
	for i := range gt {
		want := i > 0 && gt[i] && !gt[i-1]
		if co[i] != want {
			t.Errorf("ema12gtema26co[%d] = %v, want %v", i, co[i], want)
		}
	}
	if countTrue(co) != 1 {
		t.Errorf("expected one onset, got %d", countTrue(co))
	}
}

func TestEngine_AddAllIsIdempotent(t *testing.T) {
	s := mustSeries(t, barsFromCloses(riseThenFall()))
	engine := NewEngine([]IndicatorConfig{{Type: "RSI", Period: 9}})

	_ = engine.AddAll(s)
	names := s.Names()
	floats := make(map[string][]float64)
	flags := make(map[string][]bool)
	for _, n := range s.FloatNames() {
		v, _ := s.Float(n)
		floats[n] = append([]float64(nil), v...)
	}
	for _, n := range s.FlagNames() {
		v, _ := s.Flag(n)
		flags[n] = append([]bool(nil), v...)
	}

	_ = engine.AddAll(s)
	if !reflect.DeepEqual(names, s.Names()) {
		t.Fatalf("column set changed: %d -> %d columns", len(names), len(s.Names()))
	}
	for n, want := range floats {
		got, _ := s.Float(n)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("column %s changed on second pass", n)
		}
	}
	for n, want := range flags {
		got, _ := s.Flag(n)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("column %s changed on second pass", n)
		}
	}
	if !s.Has("rsi9") {
		t.Error("extra indicator rsi9 missing")
	}
}

func TestEngine_ShortSeriesReportsFailedIndicators(t *testing.T) {
	s := mustSeries(t, barsFromCloses(riseThenFall()))
	err := NewEngine(nil).AddAll(s)
	if err == nil {
		t.Fatal("expected sma200 to fail on 60 rows")
	}
	failed := FailedIndicators(err)
	found := false
	for _, n := range failed {
		if n == "sma200" {
			found = true
		}
	}
	if !found {
		t.Errorf("sma200 not reported, got %v", failed)
	}
	if !Decidable(s) {
		t.Error("decision columns should exist on 60 rows")
	}
	for i, n := range s.Names() {
		col, ok := s.Float(n)
		if ok && len(col) != s.Len() {
			t.Errorf("column %d (%s) has %d rows, want %d", i, n, len(col), s.Len())
		}
	}

	tiny := mustSeries(t, barsFromCloses(ramp(10, 10, 1)))
	_ = NewEngine(nil).AddAll(tiny)
	if Decidable(tiny) {
		t.Error("10 rows cannot carry EMA20 crosses")
	}
}

func TestValidateConfigs(t *testing.T) {
	if err := ValidateConfigs([]IndicatorConfig{{"SMA", 10}, {"EMA", 50}, {"RSI", 7}}); err != nil {
		t.Errorf("valid configs rejected: %v", err)
	}
	bad := [][]IndicatorConfig{
		{{"WMA", 10}},
		{{"RSI", 30}},
		{{"SMA", 3}},
		{{"EMA", 9}, {"EMA", 9}},
	}
	for _, cfgs := range bad {
		if err := ValidateConfigs(cfgs); err == nil {
			t.Errorf("expected error for %v", cfgs)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Schema validation
// ────────────────────────────────────────────────────────────

func TestNewSeries_SchemaErrors(t *testing.T) {
	good := barsFromCloses(ramp(10, 5, 1))

	cases := map[string]func([]model.PriceBar){
		"duplicate timestamp": func(b []model.PriceBar) { b[3].Date = b[2].Date },
		"NaN close":           func(b []model.PriceBar) { b[1].Close = math.NaN() },
		"mixed granularity":   func(b []model.PriceBar) { b[4].Granularity = 300 },
		"unsupported gran":    func(b []model.PriceBar) { for i := range b { b[i].Granularity = 120 } },
		"close above high":    func(b []model.PriceBar) { b[2].Close = b[2].High + 1 },
		"mixed instruments":   func(b []model.PriceBar) { b[1].Market = "ETHUSDT" },
	}
	for name, mutate := range cases {
		bars := append([]model.PriceBar(nil), good...)
		mutate(bars)
		_, err := NewSeries(bars)
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected *SchemaError, got %v", name, err)
		}
	}

	s, err := NewSeries(nil)
	if err != nil {
		t.Fatalf("empty input: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("empty input: got len=%d", s.Len())
	}
}

func TestValidateColumns(t *testing.T) {
	if err := ValidateColumns(model.BarColumns); err != nil {
		t.Errorf("canonical order rejected: %v", err)
	}
	swapped := []string{"date", "market", "granularity", "high", "low", "open", "close", "volume"}
	if err := ValidateColumns(swapped); err == nil {
		t.Error("expected error for swapped low/high")
	}
	if err := ValidateColumns(model.BarColumns[:7]); err == nil {
		t.Error("expected error for missing volume")
	}
}
