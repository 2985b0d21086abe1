package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
)

// PaperExecutor simulates order execution against an in-memory account.
// Buys and market sells fill immediately at the reference price moved by the
// configured slippage. A sell raised to its profit floor rests on the
// simulated book until Mark reports a price at or above the floor.
// Useful for backtesting and paper trading.
type PaperExecutor struct {
	mu       sync.RWMutex
	log      *zap.Logger
	balances map[string]decimal.Decimal // asset -> free amount
	fills    []model.Fill
	resting  map[string]*restingOrder // order id -> resting sell
	now      func() time.Time

	// Simulation parameters
	slippageBps float64 // basis points of slippage (e.g., 5 = 0.05%)
	minBudget   decimal.Decimal
}

// NewPaperExecutor creates a paper trading executor.
// slippageBps controls simulated slippage in basis points.
func NewPaperExecutor(log *zap.Logger, slippageBps, minBudget float64) *PaperExecutor {
	return &PaperExecutor{
		log:         log.Named("paper"),
		balances:    make(map[string]decimal.Decimal),
		fills:       make([]model.Fill, 0, 64),
		resting:     make(map[string]*restingOrder),
		now:         time.Now,
		slippageBps: slippageBps,
		minBudget:   decimal.NewFromFloat(minBudget),
	}
}

// Deposit credits amount of asset to the simulated account.
func (p *PaperExecutor) Deposit(asset string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[asset] = p.balances[asset].Add(decimal.NewFromFloat(amount))
}

// Balance returns the free amount of asset.
func (p *PaperExecutor) Balance(asset string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[asset].InexactFloat64()
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []model.Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Place simulates req. Orders that cannot be sized are declined with
// filled=false and a nil error.
func (p *PaperExecutor) Place(ctx context.Context, req model.OrderRequest) (model.Fill, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Fill{}, false, err
	}
	base, quote, err := SplitSymbol(req.Symbol)
	if err != nil {
		return model.Fill{}, false, err
	}
	if req.Price <= 0 {
		return model.Fill{}, false, fmt.Errorf("paper: no reference price for %s", req.Market)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ref := decimal.NewFromFloat(req.Price)
	var coins, amount, price decimal.Decimal
	switch req.Side {
	case model.SideBuy:
		budget, ok := BuyBudget(p.balances[quote], req.Percentage, req.LimitBudget, p.minBudget)
		if !ok {
			p.log.Warn("budget too small, buy declined",
				zap.String("market", req.Market), zap.String("budget", budget.String()), zap.String("balance", p.balances[quote].String()))
			return model.Fill{}, false, nil
		}
		price = slip(ref, model.SideBuy, p.slippageBps)
		coins = budget.Div(price).Truncate(coinPrecision)
		amount = budget
		p.balances[quote] = p.balances[quote].Sub(amount)
		p.balances[base] = p.balances[base].Add(coins)

	case model.SideSell:
		var ok bool
		coins, ok = SellAmount(p.balances[base], req.Percentage)
		if !ok {
			p.log.Warn("no coins to sell, sell declined", zap.String("market", req.Market))
			return model.Fill{}, false, nil
		}
		market := slip(ref, model.SideSell, p.slippageBps)
		price = SellPrice(market, req)
		p.balances[base] = p.balances[base].Sub(coins)
		if price.GreaterThan(market) {
			return p.rest(req, base, quote, coins, price), false, nil
		}
		amount = coins.Mul(price)
		p.balances[quote] = p.balances[quote].Add(amount)

	default:
		return model.Fill{}, false, fmt.Errorf("paper: unknown side %q", req.Side)
	}

	fill := model.Fill{
		OrderID:    "PAPER-" + uuid.NewString(),
		Market:     req.Market,
		Symbol:     req.Symbol,
		Side:       req.Side,
		CoinAmount: coins.InexactFloat64(),
		Price:      price.InexactFloat64(),
		Amount:     amount.InexactFloat64(),
		FilledAt:   p.now(),
	}
	p.fills = append(p.fills, fill)

	p.log.Info("filled",
		zap.String("market", req.Market),
		zap.String("side", string(req.Side)),
		zap.String("coins", coins.String()),
		zap.String("price", price.String()),
		zap.Bool("stop_loss", req.StopLoss),
		zap.String("order_id", fill.OrderID))
	return fill, true, nil
}

// SetClock replaces the fill timestamp source; backtests stamp fills with
// the bar date.
func (p *PaperExecutor) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// restingOrder is a simulated limit sell. Its coins leave the free balance
// when it is placed and come back if it is cancelled unfilled.
type restingOrder struct {
	market, symbol string
	base, quote    string
	coins, limit   decimal.Decimal
	fill           *model.Fill
	cancelled      bool
}

// rest books a limit sell; the caller holds p.mu.
func (p *PaperExecutor) rest(req model.OrderRequest, base, quote string, coins, limit decimal.Decimal) model.Fill {
	id := "PAPER-" + uuid.NewString()
	p.resting[id] = &restingOrder{
		market: req.Market, symbol: req.Symbol,
		base: base, quote: quote,
		coins: coins, limit: limit,
	}
	p.log.Info("order resting",
		zap.String("market", req.Market),
		zap.String("coins", coins.String()),
		zap.String("limit", limit.String()),
		zap.String("order_id", id))
	return model.Fill{
		OrderID:    id,
		Market:     req.Market,
		Symbol:     req.Symbol,
		Side:       model.SideSell,
		CoinAmount: coins.InexactFloat64(),
		Price:      limit.InexactFloat64(),
	}
}

// Mark reports the latest price of market. Resting sells whose limit is at
// or below price fill at their limit.
func (p *PaperExecutor) Mark(market string, price float64) {
	px := decimal.NewFromFloat(price)
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.resting {
		if o.market != market || o.fill != nil || o.cancelled || o.limit.GreaterThan(px) {
			continue
		}
		amount := o.coins.Mul(o.limit)
		p.balances[o.quote] = p.balances[o.quote].Add(amount)
		fill := model.Fill{
			OrderID:    id,
			Market:     o.market,
			Symbol:     o.symbol,
			Side:       model.SideSell,
			CoinAmount: o.coins.InexactFloat64(),
			Price:      o.limit.InexactFloat64(),
			Amount:     amount.InexactFloat64(),
			FilledAt:   p.now(),
		}
		o.fill = &fill
		p.fills = append(p.fills, fill)
		p.log.Info("resting order filled",
			zap.String("market", market),
			zap.String("price", o.limit.String()),
			zap.String("order_id", id))
	}
}

// OrderStatus reports a resting order. A filled or cancelled order is
// forgotten once reported; an unknown id reads as closed and unfilled.
func (p *PaperExecutor) OrderStatus(ctx context.Context, o model.OpenOrder) (model.Fill, bool, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Fill{}, false, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resting[o.ID]
	switch {
	case !ok:
		return model.Fill{}, false, false, nil
	case r.fill != nil:
		delete(p.resting, o.ID)
		return *r.fill, true, false, nil
	case r.cancelled:
		delete(p.resting, o.ID)
		return model.Fill{}, false, false, nil
	}
	return model.Fill{}, false, true, nil
}

// CancelOrder pulls a resting order and frees its coins. Cancelling a filled
// or unknown order is a no-op; OrderStatus still reports the fill.
func (p *PaperExecutor) CancelOrder(ctx context.Context, o model.OpenOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resting[o.ID]
	if !ok || r.fill != nil || r.cancelled {
		return nil
	}
	r.cancelled = true
	p.balances[r.base] = p.balances[r.base].Add(r.coins)
	p.log.Info("order cancelled", zap.String("market", r.market), zap.String("order_id", o.ID))
	return nil
}

// Holding returns the free amount of asset.
func (p *PaperExecutor) Holding(_ context.Context, asset string) (float64, error) {
	return p.Balance(asset), nil
}
