package execution

import (
	"testing"

	"github.com/shopspring/decimal"

	"cryptosignal/internal/model"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestBuyBudget(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		pct     float64
		limit   float64
		want    float64
		wantOK  bool
	}{
		{"half the balance", 1000, 50, 0, 500, true},
		{"under the minimum", 15, 50, 0, 7.5, false},
		{"limit caps the budget", 1000, 100, 200, 200, true},
		{"limit above balance ignored", 1000, 100, 5000, 1000, true},
		{"limit under minimum ignored", 1000, 100, 5, 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BuyBudget(d(tt.balance), tt.pct, tt.limit, d(10))
			if ok != tt.wantOK || !got.Equal(d(tt.want)) {
				t.Errorf("got (%s, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSellAmount(t *testing.T) {
	if got, ok := SellAmount(d(0.123456789), 100); !ok || !got.Equal(d(0.12345678)) {
		t.Errorf("got (%s, %v), want truncated to 8 decimals", got, ok)
	}
	if got, ok := SellAmount(d(2), 25); !ok || !got.Equal(d(0.5)) {
		t.Errorf("got (%s, %v), want 0.5", got, ok)
	}
	if _, ok := SellAmount(decimal.Zero, 100); ok {
		t.Error("nothing to sell should not be ok")
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		amount, step, want float64
	}{
		{0.12345678, 0.00001, 0.12345},
		{1.999, 0.01, 1.99},
		{0.5, 0.001, 0.5},
		{0.000009, 0.00001, 0},
		{3.7, 1, 3},
		{0.123, 0, 0.123},
	}
	for _, tt := range tests {
		if got := RoundToStep(d(tt.amount), d(tt.step)); !got.Equal(d(tt.want)) {
			t.Errorf("RoundToStep(%v, %v) = %s, want %v", tt.amount, tt.step, got, tt.want)
		}
	}
}

func TestSellPrice_ProfitFloor(t *testing.T) {
	req := model.OrderRequest{LastBuyPrice: 100, MinProfitPct: 2, SellWithProfitOnly: true}
	if got := SellPrice(d(101), req); !got.Equal(d(102)) {
		t.Errorf("floor: got %s, want 102", got)
	}
	if got := SellPrice(d(110), req); !got.Equal(d(110)) {
		t.Errorf("above floor: got %s, want 110", got)
	}
	req.StopLoss = true
	if got := SellPrice(d(90), req); !got.Equal(d(90)) {
		t.Errorf("stop-loss ignores the floor: got %s", got)
	}
	req.StopLoss, req.SellWithProfitOnly = false, false
	if got := SellPrice(d(90), req); !got.Equal(d(90)) {
		t.Errorf("floor disabled: got %s", got)
	}
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol("BTC/USDT")
	if err != nil || base != "BTC" || quote != "USDT" {
		t.Errorf("got %q %q %v", base, quote, err)
	}
	for _, bad := range []string{"BTCUSDT", "/USDT", "BTC/"} {
		if _, _, err := SplitSymbol(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
