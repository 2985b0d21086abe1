package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
)

// unreachable returns a store whose client can never connect.
func unreachable(cb *CircuitBreaker) *StateStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewStateStore(client, cb, zap.NewNop())
}

func TestKeys(t *testing.T) {
	if got := StateKey("BTCUSDT"); got != "state:BTCUSDT" {
		t.Errorf("StateKey = %q", got)
	}
	if got := ActionChannel("BTCUSDT"); got != "pub:action:BTCUSDT" {
		t.Errorf("ActionChannel = %q", got)
	}
}

func TestDecodeState(t *testing.T) {
	st := position.New("BTCUSDT", "BTC/USDT", 5)
	st.LastAction = model.ActionBuy
	st.InPosition = true
	st.LastBuyPrice = 100
	st.BuyCount = 1
	st.LastBarDate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := sonic.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeState(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastAction != model.ActionBuy || !got.InPosition || got.LastBuyPrice != 100 || !got.LastBarDate.Equal(st.LastBarDate) {
		t.Errorf("decoded %+v", got)
	}

	if _, err := DecodeState([]byte(`{"market":"X","maximum_loss_percentage":150}`)); err == nil {
		t.Error("expected invalid stop-loss percentage to be rejected")
	}
	if _, err := DecodeState([]byte(`{`)); err == nil {
		t.Error("expected malformed JSON to be rejected")
	}
}

func TestStateStore_BreakerTripsOnUnreachableRedis(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_cb_state"})
	trips := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_cb_trips"})
	InstrumentBreaker(cb, gauge, trips, zap.NewNop())

	s := unreachable(cb)
	defer s.Close()
	ctx := context.Background()
	st := position.New("BTCUSDT", "BTC/USDT", 0)

	for i := 0; i < 2; i++ {
		err := s.SaveState(ctx, st)
		if err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected a dial error, got %v", i, err)
		}
	}
	if err := s.PublishAction(ctx, model.ActionEvent{Market: "BTCUSDT"}); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen once tripped, got %v", err)
	}
	if _, ok, err := s.LoadState(ctx, "BTCUSDT"); ok || !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("LoadState: ok=%v err=%v", ok, err)
	}
	if v := testutil.ToFloat64(gauge); v != float64(StateOpen) {
		t.Errorf("gauge = %v, want %v", v, float64(StateOpen))
	}
	if v := testutil.ToFloat64(trips); v != 1 {
		t.Errorf("trips = %v, want 1", v)
	}
}
