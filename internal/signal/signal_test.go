package signal

import (
	"testing"
	"time"

	"cryptosignal/internal/indicator"
	"cryptosignal/internal/model"
)

func series(t *testing.T, closes []float64) *indicator.Series {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = model.PriceBar{
			Date: start.Add(time.Duration(i) * time.Hour), Market: "ETHUSDT", Granularity: 3600,
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	s, err := indicator.NewSeries(bars)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func TestLatest_EmptySeries(t *testing.T) {
	if _, ok := Latest(series(t, nil)); ok {
		t.Error("empty series should yield no signal")
	}
	if _, ok := Latest(nil); ok {
		t.Error("nil series should yield no signal")
	}
}

func TestLatest_ProjectsLastRow(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26}
	s := series(t, closes)
	_ = indicator.NewEngine(nil).AddAll(s)

	sig, ok := Latest(s)
	if !ok {
		t.Fatal("expected a signal")
	}
	last := s.Bar(s.Len() - 1)
	if sig.Close != 26 || !sig.Date.Equal(last.Date) || sig.Market != "ETHUSDT" {
		t.Errorf("got close=%v date=%v market=%s", sig.Close, sig.Date, sig.Market)
	}
	ema5, _ := s.Float("ema5")
	if v, ok := sig.Value("ema5"); !ok || v != ema5[len(ema5)-1] {
		t.Errorf("ema5 = %v (ok=%v), want %v", v, ok, ema5[len(ema5)-1])
	}
	if _, ok := sig.Value("sma200"); ok {
		t.Error("sma200 cannot exist on 21 rows")
	}
	if len(sig.Values) != len(s.FloatNames()) || len(sig.Flags) != len(s.FlagNames()) {
		t.Errorf("signal has %d values / %d flags, series %d / %d",
			len(sig.Values), len(sig.Flags), len(s.FloatNames()), len(s.FlagNames()))
	}
}

func TestAt_MatchesColumns(t *testing.T) {
	s := series(t, []float64{10, 10, 10, 10, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25})
	if err := s.AddGoldenCross(); err != nil {
		t.Fatal(err)
	}
	gc, _ := s.Flag("golden_cross_ema")
	for i := 0; i < s.Len(); i++ {
		if got := At(s, i).Flag("golden_cross_ema"); got != gc[i] {
			t.Errorf("row %d: golden_cross_ema = %v, want %v", i, got, gc[i])
		}
	}
	active := At(s, 5).Active()
	found := false
	for _, name := range active {
		if name == "golden_cross_ema" {
			found = true
		}
	}
	if !found {
		t.Errorf("row 5 active flags %v should include golden_cross_ema", active)
	}
}
