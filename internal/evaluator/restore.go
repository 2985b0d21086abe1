package evaluator

import (
	"context"

	"go.uber.org/zap"

	"cryptosignal/config"
	"cryptosignal/internal/execution"
	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
)

// Restore source names, as logged.
const (
	SourceRedis   = "redis"
	SourceJournal = "journal"
	SourceCold    = "cold"
)

// Restore loads the persisted state of every instrument, trying the Redis
// snapshot first, then the last journal rows, then a cold start. It
// returns the source used per market.
func (s *Service) Restore(ctx context.Context) (map[string]string, error) {
	sources := make(map[string]string, len(s.order))
	for _, market := range s.order {
		inst := s.instruments[market]
		st, source := s.restoreOne(ctx, inst)
		s.reconcile(ctx, inst, &st)

		lease, err := s.registry.Acquire(ctx, market)
		if err != nil {
			return sources, err
		}
		err = lease.Commit(st)
		lease.Release()
		if err != nil {
			return sources, err
		}

		sources[market] = source
		s.log.Info("state restored",
			zap.String("market", market),
			zap.String("source", source),
			zap.String("last_action", string(st.LastAction)),
			zap.Bool("in_position", st.InPosition),
			zap.Float64("last_buy_price", st.LastBuyPrice),
		)
	}
	return sources, nil
}

func (s *Service) restoreOne(ctx context.Context, inst config.Instrument) (position.State, string) {
	cold := position.New(inst.Market, inst.Symbol, inst.MaxLossPct)

	if s.deps.States != nil {
		st, ok, err := s.deps.States.LoadState(ctx, inst.Market)
		switch {
		case err != nil:
			s.log.Warn("redis snapshot unavailable", zap.String("market", inst.Market), zap.Error(err))
		case ok:
			// configuration wins over the snapshot
			st.Symbol = inst.Symbol
			st.MaxLossPct = inst.MaxLossPct
			return st, SourceRedis
		}
	}

	buy, haveBuy := s.lastTrade(ctx, inst.Symbol, model.SideBuy)
	sell, haveSell := s.lastTrade(ctx, inst.Symbol, model.SideSell)
	if !haveBuy && !haveSell {
		return cold, SourceCold
	}
	var lastBuy, lastSell *model.Trade
	if haveBuy {
		lastBuy = &buy
	}
	if haveSell {
		lastSell = &sell
	}
	cold.Restore(lastBuy, lastSell)
	return cold, SourceJournal
}

// reconcile checks a restored open position against the account. A
// simulated account is credited with the coins of the last buy; a real one
// holding none of the base asset means the position was closed elsewhere.
func (s *Service) reconcile(ctx context.Context, inst config.Instrument, st *position.State) {
	log := s.log.With(zap.String("market", inst.Market))
	if settled, changed := s.settle(ctx, log, st); changed && settled != nil {
		log.Info("resting order filled while down", zap.String("order_id", settled.OrderID))
	}
	if !st.InPosition || st.HasOpenOrder() {
		return
	}
	holdings, ok := s.deps.Placer.(model.Holdings)
	if !ok {
		return
	}
	base, _, err := execution.SplitSymbol(inst.Symbol)
	if err != nil {
		log.Warn("position not reconciled", zap.Error(err))
		return
	}
	held, err := holdings.Holding(ctx, base)
	if err != nil {
		log.Warn("position not reconciled", zap.Error(err))
		return
	}
	if funder, ok := s.deps.Placer.(Funder); ok && st.LastBuySize > held {
		funder.Deposit(base, st.LastBuySize-held)
		log.Info("simulated account credited with restored position",
			zap.String("asset", base), zap.Float64("amount", st.LastBuySize-held))
		return
	}
	if held <= 0 {
		log.Warn("restored position holds no coins, marked closed", zap.String("asset", base))
		st.InPosition = false
		if st.SellCount < st.BuyCount {
			st.SellCount = st.BuyCount
		}
	}
}

func (s *Service) lastTrade(ctx context.Context, symbol string, side model.Side) (model.Trade, bool) {
	t, ok, err := s.deps.Journal.Last(ctx, symbol, side)
	if err != nil {
		s.log.Warn("journal read failed", zap.String("symbol", symbol), zap.String("side", string(side)), zap.Error(err))
		return model.Trade{}, false
	}
	return t, ok
}
