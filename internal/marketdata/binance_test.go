package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
)

var open0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testFeed(t *testing.T, h http.HandlerFunc) *BinanceFeed {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := binance.NewClient("", "")
	c.BaseURL = srv.URL
	f := NewBinanceFeed(c, 0)
	f.now = func() time.Time { return open0.Add(2*time.Hour + 30*time.Minute) }
	return f
}

func klineJSON(i int, o, h, l, c, v string) string {
	ot := open0.Add(time.Duration(i) * time.Hour).UnixMilli()
	ct := ot + time.Hour.Milliseconds() - 1
	return fmt.Sprintf(`[%d,%q,%q,%q,%q,%q,%d,"0",1,"0","0","0"]`, ot, o, h, l, c, v, ct)
}

func TestBars_ParsesAndDropsOpenBar(t *testing.T) {
	var gotQuery string
	f := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, "["+strings.Join([]string{
			klineJSON(0, "100", "110", "95", "105", "12.5"),
			klineJSON(1, "105", "112", "101", "111", "8"),
			klineJSON(2, "111", "115", "109", "113", "3"), // still open at 02:30
		}, ",")+"]")
	})

	bars, err := f.Bars(context.Background(), "BTCUSDT", 3600)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gotQuery, "interval=1h") || !strings.Contains(gotQuery, "limit=300") || !strings.Contains(gotQuery, "symbol=BTCUSDT") {
		t.Errorf("query %q", gotQuery)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 closed bars, got %d", len(bars))
	}
	b := bars[0]
	if !b.Date.Equal(open0) || b.Market != "BTCUSDT" || b.Granularity != 3600 {
		t.Errorf("bar identity %+v", b)
	}
	if b.Open != 100 || b.High != 110 || b.Low != 95 || b.Close != 105 || b.Volume != 12.5 {
		t.Errorf("bar values %+v", b)
	}
}

func TestBars_UnsupportedGranularity(t *testing.T) {
	f := testFeed(t, func(w http.ResponseWriter, r *http.Request) { t.Error("no request expected") })
	if _, err := f.Bars(context.Background(), "BTCUSDT", 120); err == nil {
		t.Error("expected error")
	}
}

func TestPrice(t *testing.T) {
	f := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"BTCUSDT","price":"64123.45"}]`)
	})
	p, err := f.Price(context.Background(), "BTCUSDT")
	if err != nil || p != 64123.45 {
		t.Errorf("Price = %v, %v", p, err)
	}
	if _, err := f.Price(context.Background(), "ETHUSDT"); err == nil {
		t.Error("expected error for missing ticker")
	}
}

func TestInterval(t *testing.T) {
	for g, want := range map[int]string{60: "1m", 300: "5m", 900: "15m", 3600: "1h", 21600: "6h", 86400: "1d"} {
		if got, err := Interval(g); err != nil || got != want {
			t.Errorf("Interval(%d) = %q, %v", g, got, err)
		}
	}
}
