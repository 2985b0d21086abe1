package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"cryptosignal/internal/indicator"
	"cryptosignal/internal/model"
)

func testBars(market string, n int, start time.Time) []model.PriceBar {
	bars := make([]model.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.PriceBar{
			Date:        start.Add(time.Duration(i) * time.Hour),
			Market:      market,
			Granularity: 3600,
			Low:         c - 1,
			High:        c + 1,
			Open:        c - 0.5,
			Close:       c,
			Volume:      10,
		}
	}
	return bars
}

func TestArchive_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := Open(filepath.Join(t.TempDir(), "bars.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// written newest first, read back oldest first
	bars := testBars("BTCUSDT", 5, start)
	rev := make([]model.PriceBar, len(bars))
	for i := range bars {
		rev[len(bars)-1-i] = bars[i]
	}
	if err := a.WriteBars(ctx, rev); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteBars(ctx, testBars("ETHUSDT", 3, start)); err != nil {
		t.Fatal(err)
	}

	got, err := a.ReadBars(ctx, "BTCUSDT", 3600, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d bars, want 5", len(got))
	}
	for i := range got {
		if got[i] != bars[i] {
			t.Errorf("bar %d = %+v, want %+v", i, got[i], bars[i])
		}
	}

	got, err = a.ReadBars(ctx, "BTCUSDT", 3600, start.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Date.Equal(start.Add(3*time.Hour)) {
		t.Errorf("from filter returned %d bars", len(got))
	}

	ts, err := a.GetLastTimestamp(ctx, "ETHUSDT", 3600)
	if err != nil {
		t.Fatal(err)
	}
	if ts != start.Add(2*time.Hour).Unix() {
		t.Errorf("last timestamp = %d", ts)
	}
	if ts, _ := a.GetLastTimestamp(ctx, "SOLUSDT", 3600); ts != 0 {
		t.Errorf("unknown market: got %d, want 0", ts)
	}
}

func TestArchive_UpsertReplacesBar(t *testing.T) {
	ctx := context.Background()
	a, err := Open(filepath.Join(t.TempDir(), "bars.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	bars := testBars("BTCUSDT", 2, time.Unix(1700000000, 0).UTC())
	if err := a.WriteBars(ctx, bars); err != nil {
		t.Fatal(err)
	}
	bars[1].Close = 100.5
	if err := a.WriteBars(ctx, bars[1:]); err != nil {
		t.Fatal(err)
	}
	got, _ := a.ReadBars(ctx, "BTCUSDT", 3600, time.Time{})
	if len(got) != 2 || got[1].Close != 100.5 {
		t.Errorf("upsert failed: %+v", got)
	}
}

func TestReader_RejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.db")
	w, err := New(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if _, err := w.DB().Exec(`DROP TABLE bars`); err != nil {
		t.Fatal(err)
	}
	if _, err := w.DB().Exec(`CREATE TABLE bars (date INTEGER, market TEXT, granularity INTEGER, high REAL, low REAL, open REAL, close REAL, volume REAL)`); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	_, err = r.ReadBars(context.Background(), "BTCUSDT", 3600, time.Time{})
	var se *indicator.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
}
