// Package redis keeps position snapshots in Redis and publishes action
// events on Redis pub/sub. Every call goes through a CircuitBreaker so a
// down Redis costs one fast error per call instead of a dial timeout.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// StateKey is the key holding the snapshot of market.
func StateKey(market string) string { return "state:" + market }

// ActionChannel is the pub/sub channel carrying the action events of market.
func ActionChannel(market string) string { return "pub:action:" + market }

// StateStore saves and loads position snapshots.
type StateStore struct {
	client *goredis.Client
	cb     *CircuitBreaker
	log    *zap.Logger
}

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, cfg Config, cb *CircuitBreaker, log *zap.Logger) (*StateStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := NewStateStore(client, cb, log)
	s.log.Info("connected", zap.String("addr", cfg.Addr))
	return s, nil
}

// NewStateStore wraps an existing client.
func NewStateStore(client *goredis.Client, cb *CircuitBreaker, log *zap.Logger) *StateStore {
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	return &StateStore{client: client, cb: cb, log: log.Named("redis")}
}

// Client returns the underlying client for health checks.
func (s *StateStore) Client() *goredis.Client { return s.client }

// Breaker returns the breaker guarding the store.
func (s *StateStore) Breaker() *CircuitBreaker { return s.cb }

// SaveState stores the snapshot of st.Market.
func (s *StateStore) SaveState(ctx context.Context, st position.State) error {
	data, err := sonic.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", st.Market, err)
	}
	return s.cb.Execute(func() error {
		return s.client.Set(ctx, StateKey(st.Market), data, 0).Err()
	})
}

// LoadState returns the stored snapshot of market; ok is false when none
// exists.
func (s *StateStore) LoadState(ctx context.Context, market string) (st position.State, ok bool, err error) {
	var data []byte
	err = s.cb.Execute(func() error {
		var getErr error
		data, getErr = s.client.Get(ctx, StateKey(market)).Bytes()
		if getErr == goredis.Nil {
			return nil
		}
		return getErr
	})
	if err != nil || data == nil {
		return position.State{}, false, err
	}
	st, err = DecodeState(data)
	if err != nil {
		return position.State{}, false, err
	}
	if st.Market != market {
		return position.State{}, false, fmt.Errorf("snapshot under %s belongs to %q", StateKey(market), st.Market)
	}
	return st, true, nil
}

// DecodeState parses and validates a stored snapshot.
func DecodeState(data []byte) (position.State, error) {
	var st position.State
	if err := sonic.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return st, fmt.Errorf("stored state: %w", err)
	}
	return st, nil
}

// PublishAction publishes ev on its market's action channel.
func (s *StateStore) PublishAction(ctx context.Context, ev model.ActionEvent) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return s.cb.Execute(func() error {
		return s.client.Publish(ctx, ActionChannel(ev.Market), data).Err()
	})
}

// Close closes the client.
func (s *StateStore) Close() error {
	return s.client.Close()
}

// InstrumentBreaker reports breaker transitions to the given gauge and trip
// counter and logs them.
func InstrumentBreaker(cb *CircuitBreaker, state prometheus.Gauge, trips prometheus.Counter, log *zap.Logger) {
	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to BreakerState) {
		if prev != nil {
			prev(from, to)
		}
		state.Set(float64(to))
		if to == StateOpen {
			trips.Inc()
			log.Warn("redis circuit breaker open", zap.Stringer("from", from))
			return
		}
		log.Info("redis circuit breaker transition", zap.Stringer("from", from), zap.Stringer("to", to))
	}
}
