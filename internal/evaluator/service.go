// Package evaluator runs the evaluation cycle of every configured
// instrument: fetch bars, compute indicators, decide, execute, and commit
// the new position state.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"cryptosignal/config"
	"cryptosignal/internal/indicator"
	"cryptosignal/internal/logger"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/model"
	"cryptosignal/internal/notification"
	"cryptosignal/internal/position"
	"cryptosignal/internal/signal"
	"cryptosignal/internal/strategy"
)

// StateStore persists snapshots and publishes action events.
// *redis.StateStore satisfies it.
type StateStore interface {
	SaveState(ctx context.Context, st position.State) error
	LoadState(ctx context.Context, market string) (position.State, bool, error)
	PublishAction(ctx context.Context, ev model.ActionEvent) error
}

// SignalSink records the signal row behind each evaluation.
type SignalSink interface {
	WriteSignal(ctx context.Context, sig signal.Signal, ev model.ActionEvent) error
}

// EventPublisher receives every action event in process (the gateway hub).
type EventPublisher interface {
	Publish(ev model.ActionEvent)
}

// PriceMarker is a placer that simulates a book and needs the latest price
// to fill its resting orders. *execution.PaperExecutor satisfies it.
type PriceMarker interface {
	Mark(market string, price float64)
}

// Funder is a simulated account that can be credited on restore.
type Funder interface {
	Deposit(asset string, amount float64)
}

// Deps are the collaborators of a Service. Feed, Placer and Journal are
// required; the rest may be nil.
type Deps struct {
	Feed     model.BarFeed
	Quoter   model.PriceQuoter
	Placer   model.OrderPlacer
	Journal  model.TradeJournal
	Archive  model.BarStore
	States   StateStore
	Sink     SignalSink
	Events   EventPublisher
	Notifier notification.Notifier
	Strategy strategy.Strategy

	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
}

// Result is the outcome of one completed evaluation.
type Result struct {
	Signal   signal.Signal
	Decision strategy.Decision
	Event    model.ActionEvent
	Fill     *model.Fill
	Settled  *model.Fill // resting order that closed filled this cycle
	State    position.State
}

// Service evaluates instruments. Evaluations of one market are serialized
// through the registry; different markets run in parallel.
type Service struct {
	deps        Deps
	registry    *position.Registry
	instruments map[string]config.Instrument
	order       []string
	engines     map[string]*indicator.Engine
	log         *zap.Logger
	now         func() time.Time
}

// New registers a cold-start state for every instrument. Call Restore
// before the first evaluation to load persisted state.
func New(instruments []config.Instrument, deps Deps, log *zap.Logger) (*Service, error) {
	if deps.Feed == nil || deps.Placer == nil || deps.Journal == nil {
		return nil, fmt.Errorf("evaluator: feed, placer and journal are required")
	}
	if deps.Strategy == nil {
		deps.Strategy = strategy.Default()
	}
	s := &Service{
		deps:        deps,
		registry:    position.NewRegistry(),
		instruments: make(map[string]config.Instrument, len(instruments)),
		engines:     make(map[string]*indicator.Engine, len(instruments)),
		log:         log.Named("evaluator"),
		now:         time.Now,
	}
	for _, inst := range instruments {
		if err := s.registry.Register(position.New(inst.Market, inst.Symbol, inst.MaxLossPct)); err != nil {
			return nil, err
		}
		s.instruments[inst.Market] = inst
		s.order = append(s.order, inst.Market)
		s.engines[inst.Market] = indicator.NewEngine(inst.Indicators)
	}
	return s, nil
}

// SetEvents installs the in-process event publisher. The gateway hub reads
// the registry, so it can only be built after New.
func (s *Service) SetEvents(p EventPublisher) { s.deps.Events = p }

// Registry returns the registry holding the position states.
func (s *Service) Registry() *position.Registry { return s.registry }

// Evaluate runs one cycle for market. The committed state changes only
// when the cycle completes; on any error it is left as it was, except for
// the outcome of a resting order, which is committed as soon as it is known.
func (s *Service) Evaluate(ctx context.Context, market string) (res Result, err error) {
	inst, ok := s.instruments[market]
	if !ok {
		return res, fmt.Errorf("evaluator: unknown market %q", market)
	}

	start := s.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(market, start))
	log := s.log.With(logger.Fields(ctx, zap.String("market", market))...)
	defer func() { s.observe(market, start, err) }()

	lease, err := s.registry.Acquire(ctx, market)
	if err != nil {
		return res, err
	}
	defer lease.Release()

	bars, err := s.fetch(ctx, inst)
	if err != nil {
		return res, external("feed", err)
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.WriteBars(ctx, bars); err != nil {
			log.Warn("archive write failed", zap.Error(err))
		}
	}

	series, err := indicator.NewSeries(bars)
	if err != nil {
		return res, err
	}
	if series.Len() == 0 {
		return res, ErrDataGap
	}
	if err := s.engines[market].AddAll(series); err != nil {
		for _, name := range indicator.FailedIndicators(err) {
			log.Debug("indicator skipped", zap.String("indicator", name), zap.Int("rows", series.Len()))
			if s.deps.Metrics != nil {
				s.deps.Metrics.IndicatorFailures.WithLabelValues(name).Inc()
			}
		}
	}
	if !indicator.Decidable(series) {
		return res, fmt.Errorf("%w (%d rows)", ErrUndecidable, series.Len())
	}
	sig, ok := signal.Latest(series)
	if !ok {
		return res, ErrDataGap
	}

	price := s.quote(ctx, log, market, sig.Close)
	if m, ok := s.deps.Placer.(PriceMarker); ok {
		m.Mark(market, price)
	}

	base := lease.State()
	if settled, changed := s.settle(ctx, log, &base); changed {
		if err := lease.Commit(base); err != nil {
			return res, err
		}
		res.Settled = settled
	}

	st := base
	st.Observe(sig.Date, sig.Close, price)
	d := s.deps.Strategy.Decide(sig, st)

	ev := model.ActionEvent{
		Market:      market,
		Symbol:      inst.Symbol,
		Action:      d.Action,
		Reason:      d.Reason,
		Close:       sig.Close,
		MarketPrice: price,
		BarDate:     sig.Date,
		StopLoss:    d.StopLoss,
		Suppressed:  d.Suppressed,
		TraceID:     logger.TraceID(ctx),
	}
	if d.StopLoss {
		log.Warn("stop-loss triggered", zap.Float64("market_price", price), zap.Float64("stop_price", d.StopLossPrice))
	}

	side, place, reason := strategy.OrderSide(d, st)
	if place && st.HasOpenOrder() {
		settled, err := s.cancelOpen(ctx, log, &base)
		if err != nil {
			return res, external("placer", err)
		}
		if err := lease.Commit(base); err != nil {
			return res, err
		}
		st.OpenOrder = base.OpenOrder
		if settled != nil {
			if err := st.RecordFill(*settled); err != nil {
				return res, err
			}
			res.Settled = settled
		}
		side, place, reason = strategy.OrderSide(d, st)
	}
	switch {
	case d.Suppressed:
		log.Warn("buy signal suppressed", zap.String("reason", d.Reason))
		s.countSuppressed(market, model.SideBuy)
	case !place && reason != "":
		ev.Suppressed = true
		ev.Reason = reason
		log.Warn("order withheld", zap.String("action", string(d.Action)), zap.String("reason", reason))
		s.countSuppressed(market, sideOf(d.Action))
	}

	if place {
		fill, filled, err := s.deps.Placer.Place(ctx, orderRequest(inst, st, side, d, price))
		if err != nil {
			return res, external("placer", err)
		}
		if filled {
			if err := st.RecordFill(fill); err != nil {
				return res, err
			}
			s.record(ctx, log, fill)
			res.Fill = &fill
			ev.Filled = true
		} else if fill.OrderID != "" {
			st.OpenOrder = model.OpenOrder{
				ID:       fill.OrderID,
				Market:   fill.Market,
				Symbol:   fill.Symbol,
				Side:     fill.Side,
				Price:    fill.Price,
				Quantity: fill.CoinAmount,
				PlacedAt: s.now().UTC(),
			}
			log.Info("order resting", zap.String("order_id", fill.OrderID), zap.Float64("limit", fill.Price))
		} else {
			log.Info("order not filled", zap.String("side", string(side)))
		}
	}

	now := s.now()
	st.Apply(d.Action, now)
	if err := lease.Commit(st); err != nil {
		return res, err
	}
	ev.TS = now.UTC()

	log.Info("evaluated",
		zap.String("action", string(d.Action)),
		zap.String("reason", ev.Reason),
		zap.Float64("close", sig.Close),
		zap.Float64("market_price", price),
		zap.Bool("filled", ev.Filled),
	)

	s.emit(ctx, log, sig, ev, st)
	res = Result{Signal: sig, Decision: d, Event: ev, State: st, Fill: res.Fill, Settled: res.Settled}
	return res, nil
}

// settle follows up the resting order of st. changed reports whether st
// was updated; settled is the fill when the order closed filled. An order
// still on the book, or one that cannot be polled, stays tracked.
func (s *Service) settle(ctx context.Context, log *zap.Logger, st *position.State) (settled *model.Fill, changed bool) {
	if !st.HasOpenOrder() {
		return nil, false
	}
	tracker, ok := s.deps.Placer.(model.OrderTracker)
	if !ok {
		log.Warn("placer cannot track orders, open order dropped", zap.String("order_id", st.OpenOrder.ID))
		st.OpenOrder = model.OpenOrder{}
		return nil, true
	}
	fill, filled, open, err := tracker.OrderStatus(ctx, st.OpenOrder)
	if err != nil {
		log.Warn("order status unavailable", zap.String("order_id", st.OpenOrder.ID), zap.Error(err))
		return nil, false
	}
	if open {
		return nil, false
	}
	return s.closeOrder(ctx, log, st, fill, filled), true
}

// cancelOpen pulls the resting order of st before a new order replaces it.
// The order may have filled in the meantime; that fill is returned.
func (s *Service) cancelOpen(ctx context.Context, log *zap.Logger, st *position.State) (*model.Fill, error) {
	tracker, ok := s.deps.Placer.(model.OrderTracker)
	if !ok {
		st.OpenOrder = model.OpenOrder{}
		return nil, nil
	}
	if err := tracker.CancelOrder(ctx, st.OpenOrder); err != nil {
		return nil, err
	}
	fill, filled, open, err := tracker.OrderStatus(ctx, st.OpenOrder)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("order %s still open after cancel", st.OpenOrder.ID)
	}
	log.Info("resting order cancelled", zap.String("order_id", st.OpenOrder.ID), zap.Bool("filled", filled))
	return s.closeOrder(ctx, log, st, fill, filled), nil
}

func (s *Service) closeOrder(ctx context.Context, log *zap.Logger, st *position.State, fill model.Fill, filled bool) *model.Fill {
	id := st.OpenOrder.ID
	st.OpenOrder = model.OpenOrder{}
	if !filled {
		log.Info("resting order closed unfilled", zap.String("order_id", id))
		return nil
	}
	if err := st.RecordFill(fill); err != nil {
		log.Error("resting order fill not applied", zap.String("order_id", id), zap.Error(err))
		return nil
	}
	s.record(ctx, log, fill)
	return &fill
}

func (s *Service) fetch(ctx context.Context, inst config.Instrument) ([]model.PriceBar, error) {
	start := time.Now()
	bars, err := s.deps.Feed.Bars(ctx, inst.Market, inst.Granularity)
	if s.deps.Metrics != nil {
		s.deps.Metrics.FeedLatency.WithLabelValues(inst.Market).Observe(time.Since(start).Seconds())
	}
	return bars, err
}

// quote returns the current price, falling back to the last close.
func (s *Service) quote(ctx context.Context, log *zap.Logger, market string, close float64) float64 {
	if s.deps.Quoter == nil {
		return close
	}
	price, err := s.deps.Quoter.Price(ctx, market)
	if err != nil || price <= 0 {
		log.Warn("price quote unavailable, using last close", zap.Error(err))
		return close
	}
	return price
}

func orderRequest(inst config.Instrument, st position.State, side model.Side, d strategy.Decision, price float64) model.OrderRequest {
	req := model.OrderRequest{
		Market:             inst.Market,
		Symbol:             inst.Symbol,
		Side:               side,
		Price:              price,
		StopLoss:           d.StopLoss,
		LastBuyPrice:       st.LastBuyPrice,
		SellWithProfitOnly: inst.SellWithProfitOnly,
		MinProfitPct:       inst.MinProfitPct,
	}
	if side == model.SideBuy {
		req.Percentage = inst.BuyPct
		req.LimitBudget = inst.LimitBudget
	} else {
		req.Percentage = inst.SellPct
	}
	return req
}

// record writes a fill to the journal. The fill already happened, so a
// journal failure is reported but does not fail the cycle.
func (s *Service) record(ctx context.Context, log *zap.Logger, fill model.Fill) {
	err := s.deps.Journal.Record(ctx, model.TradeFromFill(fill))
	if s.deps.Health != nil {
		s.deps.Health.SetJournalOK(err == nil)
	}
	if err != nil {
		log.Error("journal write failed", zap.String("order_id", fill.OrderID), zap.Error(err))
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.FillsTotal.WithLabelValues(fill.Market, string(fill.Side)).Inc()
	}
	log.Info("order filled",
		zap.String("order_id", fill.OrderID),
		zap.String("side", string(fill.Side)),
		zap.Float64("coin_amount", fill.CoinAmount),
		zap.Float64("price", fill.Price),
	)
}

// emit fans a completed evaluation out to the optional sinks. Failures are
// logged only.
func (s *Service) emit(ctx context.Context, log *zap.Logger, sig signal.Signal, ev model.ActionEvent, st position.State) {
	if s.deps.States != nil {
		if err := s.deps.States.SaveState(ctx, st); err != nil {
			log.Warn("state snapshot not saved", zap.Error(err))
		}
		if err := s.deps.States.PublishAction(ctx, ev); err != nil {
			log.Warn("action not published", zap.Error(err))
		}
	}
	if s.deps.Events != nil {
		s.deps.Events.Publish(ev)
	}
	if s.deps.Sink != nil {
		if err := s.deps.Sink.WriteSignal(ctx, sig, ev); err != nil {
			log.Warn("signal not written", zap.Error(err))
		}
	}
	if s.deps.Notifier != nil {
		if alert, ok := notification.ActionAlert(ev, st); ok {
			if err := s.deps.Notifier.Send(ctx, alert); err != nil {
				log.Warn("notification failed", zap.Error(err))
			}
		}
	}
	if m := s.deps.Metrics; m != nil {
		m.ActionsTotal.WithLabelValues(ev.Market, actionLabel(ev.Action)).Inc()
		if ev.StopLoss {
			m.StopLossTotal.WithLabelValues(ev.Market).Inc()
		}
	}
	if s.deps.Health != nil {
		s.deps.Health.MarkEvaluated(ev.Market, ev.TS)
	}
}

func (s *Service) observe(market string, start time.Time, err error) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case Skipped(err):
		result = "skipped"
	case err != nil:
		result = "failed"
	}
	m.EvaluationsTotal.WithLabelValues(market, result).Inc()
	m.EvalDuration.WithLabelValues(market).Observe(s.now().Sub(start).Seconds())
}

func (s *Service) countSuppressed(market string, side model.Side) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SuppressedTotal.WithLabelValues(market, string(side)).Inc()
	}
}

func sideOf(a model.Action) model.Side {
	return model.Side(strings.ToLower(string(a)))
}

func actionLabel(a model.Action) string {
	if a == model.ActionNone {
		return string(model.ActionWait)
	}
	return string(a)
}
