package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"cryptosignal/internal/model"
)

var day = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleTrades() []model.Trade {
	return []model.Trade{
		{Date: day, Symbol: "BTC/USDT", Type: model.SideBuy, CoinAmount: 0.01, Price: 60000, Amount: 600},
		{Date: day.Add(time.Hour), Symbol: "BTC/USDT", Type: model.SideSell, CoinAmount: 0.01, Price: 61000, Amount: 610},
		{Date: day.Add(2 * time.Hour), Symbol: "BTC/USDT", Type: model.SideBuy, CoinAmount: 0.02, Price: 59000, Amount: 1180},
		{Date: day.Add(3 * time.Hour), Symbol: "ETH/USDT", Type: model.SideBuy, CoinAmount: 1, Price: 3000, Amount: 3000},
	}
}

func exerciseJournal(t *testing.T, j model.TradeJournal) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := j.Last(ctx, "BTC/USDT", model.SideBuy); ok || err != nil {
		t.Fatalf("empty journal: ok=%v err=%v", ok, err)
	}
	for _, tr := range sampleTrades() {
		if err := j.Record(ctx, tr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	buy, ok, err := j.Last(ctx, "BTC/USDT", model.SideBuy)
	if err != nil || !ok {
		t.Fatalf("Last buy: ok=%v err=%v", ok, err)
	}
	if buy.Price != 59000 || buy.CoinAmount != 0.02 || !buy.Date.Equal(day.Add(2*time.Hour)) {
		t.Errorf("last buy %+v", buy)
	}
	sell, ok, _ := j.Last(ctx, "BTC/USDT", model.SideSell)
	if !ok || sell.Price != 61000 || sell.Amount != 610 {
		t.Errorf("last sell %+v", sell)
	}
	if _, ok, _ := j.Last(ctx, "ETH/USDT", model.SideSell); ok {
		t.Error("no ETH sell recorded")
	}
}

func TestCSVJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := NewCSVJournal(dir)
	if err != nil {
		t.Fatal(err)
	}
	exerciseJournal(t, j)

	path := filepath.Join(dir, "transaction_btc_usdt.csv")
	if j.Path("BTC/USDT") != path {
		t.Errorf("path %s, want %s", j.Path("BTC/USDT"), path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	header := "date,instrument_symbol,type,coin_amount,price,amount"
	if got := string(raw[:len(header)]); got != header {
		t.Errorf("header %q, want %q", got, header)
	}
	if n, _ := j.Count("BTC/USDT"); n != 3 {
		t.Errorf("BTC rows = %d, want 3", n)
	}
}

func TestSQLiteJournal(t *testing.T) {
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "trades.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	exerciseJournal(t, j)

	trades, err := j.GetTrades(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 || trades[0].Symbol != "ETH/USDT" {
		t.Errorf("GetTrades newest first: %+v", trades)
	}
}
