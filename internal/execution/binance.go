package execution

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
)

const testnetURL = "https://testnet.binance.vision"

// codeUnknownOrder is returned when cancelling an order that is no longer
// on the book.
const codeUnknownOrder = -2011

// defaultStep is the lot step assumed when exchange info is unavailable.
var defaultStep = decimal.New(1, -coinPrecision)

// BinanceExecutor places spot orders on Binance. Buys are market orders
// for a quote amount; sells are market orders for a coin amount, or GTC
// limit orders when the profit floor is above the reference price. Sell
// quantities are rounded down to the market's LOT_SIZE step.
type BinanceExecutor struct {
	client    *binance.Client
	log       *zap.Logger
	minBudget decimal.Decimal

	mu    sync.Mutex
	steps map[string]decimal.Decimal // market -> LOT_SIZE step
}

// NewBinanceClient creates a spot client, pointed at the testnet if asked.
func NewBinanceClient(apiKey, apiSecret string, testnet bool) *binance.Client {
	c := binance.NewClient(apiKey, apiSecret)
	if testnet {
		c.BaseURL = testnetURL
	}
	return c
}

// NewBinanceExecutor creates an executor over client.
func NewBinanceExecutor(client *binance.Client, log *zap.Logger, minBudget float64) *BinanceExecutor {
	return &BinanceExecutor{
		client:    client,
		log:       log.Named("binance"),
		minBudget: decimal.NewFromFloat(minBudget),
		steps:     make(map[string]decimal.Decimal),
	}
}

// lotStep returns the LOT_SIZE step of market, fetched once from exchange
// info. Failures fall back to defaultStep and are retried next time.
func (b *BinanceExecutor) lotStep(ctx context.Context, market string) decimal.Decimal {
	b.mu.Lock()
	step, ok := b.steps[market]
	b.mu.Unlock()
	if ok {
		return step
	}

	info, err := b.client.NewExchangeInfoService().Symbol(market).Do(ctx)
	if err != nil {
		b.log.Warn("exchange info unavailable, using default lot step", zap.String("market", market), zap.Error(err))
		return defaultStep
	}
	step = defaultStep
	for i := range info.Symbols {
		if info.Symbols[i].Symbol != market {
			continue
		}
		if f := info.Symbols[i].LotSizeFilter(); f != nil {
			if v, err := decimal.NewFromString(f.StepSize); err == nil && v.IsPositive() {
				step = v
			}
		}
	}
	b.mu.Lock()
	b.steps[market] = step
	b.mu.Unlock()
	return step
}

// FreeBalance returns the free amount of asset.
func (b *BinanceExecutor) FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "binance: get account")
	}
	for _, bal := range acct.Balances {
		if bal.Asset == asset {
			free, err := decimal.NewFromString(bal.Free)
			if err != nil {
				return decimal.Zero, errors.Wrapf(err, "binance: parse %s balance %q", asset, bal.Free)
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

// Place sizes and submits req. filled is false with a nil error when the
// order was declined before submission or rests on the book unfilled.
func (b *BinanceExecutor) Place(ctx context.Context, req model.OrderRequest) (model.Fill, bool, error) {
	base, quote, err := SplitSymbol(req.Symbol)
	if err != nil {
		return model.Fill{}, false, err
	}

	svc := b.client.NewCreateOrderService().Symbol(req.Market)
	var limit, coins decimal.Decimal
	switch req.Side {
	case model.SideBuy:
		bal, err := b.FreeBalance(ctx, quote)
		if err != nil {
			return model.Fill{}, false, err
		}
		budget, ok := BuyBudget(bal, req.Percentage, req.LimitBudget, b.minBudget)
		if !ok {
			b.log.Warn("budget too small, buy declined",
				zap.String("market", req.Market), zap.String("budget", budget.String()), zap.String("balance", bal.String()))
			return model.Fill{}, false, nil
		}
		svc = svc.Side(binance.SideTypeBuy).Type(binance.OrderTypeMarket).QuoteOrderQty(budget.StringFixed(2))

	case model.SideSell:
		bal, err := b.FreeBalance(ctx, base)
		if err != nil {
			return model.Fill{}, false, err
		}
		step := b.lotStep(ctx, req.Market)
		amount, ok := SellAmount(bal, req.Percentage)
		coins = RoundToStep(amount, step)
		if !ok || !coins.IsPositive() {
			b.log.Warn("no coins to sell, sell declined",
				zap.String("market", req.Market), zap.String("balance", bal.String()), zap.String("step", step.String()))
			return model.Fill{}, false, nil
		}
		ref := decimal.NewFromFloat(req.Price)
		price := SellPrice(ref, req)
		svc = svc.Side(binance.SideTypeSell).Quantity(coins.String())
		if price.GreaterThan(ref) {
			b.log.Warn("selling with profit only",
				zap.String("market", req.Market), zap.String("target", ref.String()), zap.String("limit", price.String()))
			limit = price
			svc = svc.Type(binance.OrderTypeLimit).TimeInForce(binance.TimeInForceTypeGTC).Price(price.String())
		} else {
			svc = svc.Type(binance.OrderTypeMarket)
		}

	default:
		return model.Fill{}, false, errors.Errorf("binance: unknown side %q", req.Side)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return model.Fill{}, false, errors.Wrapf(err, "binance: create %s order %s", req.Side, req.Market)
	}
	switch resp.Status {
	case binance.OrderStatusTypeFilled:
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		b.log.Info("order resting",
			zap.String("market", req.Market), zap.Int64("order_id", resp.OrderID), zap.String("status", string(resp.Status)))
		return model.Fill{
			OrderID:    strconv.FormatInt(resp.OrderID, 10),
			Market:     req.Market,
			Symbol:     req.Symbol,
			Side:       req.Side,
			CoinAmount: coins.InexactFloat64(),
			Price:      limit.InexactFloat64(),
		}, false, nil
	default:
		b.log.Warn("order not filled",
			zap.String("market", req.Market), zap.Int64("order_id", resp.OrderID), zap.String("status", string(resp.Status)))
		return model.Fill{}, false, nil
	}

	fill, err := fillFromResponse(req, resp)
	if err != nil {
		return model.Fill{}, false, err
	}
	return fill, true, nil
}

// OrderStatus polls a resting order. A closed order with an executed
// quantity is reported as filled, a partial fill included.
func (b *BinanceExecutor) OrderStatus(ctx context.Context, o model.OpenOrder) (model.Fill, bool, bool, error) {
	id, err := strconv.ParseInt(o.ID, 10, 64)
	if err != nil {
		return model.Fill{}, false, false, errors.Wrapf(err, "binance: order id %q", o.ID)
	}
	ord, err := b.client.NewGetOrderService().Symbol(o.Market).OrderID(id).Do(ctx)
	if err != nil {
		return model.Fill{}, false, false, errors.Wrapf(err, "binance: get order %d %s", id, o.Market)
	}
	switch ord.Status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled, binance.OrderStatusTypePendingCancel:
		return model.Fill{}, false, true, nil
	}

	qty, err := decimal.NewFromString(ord.ExecutedQuantity)
	if err != nil {
		return model.Fill{}, false, false, errors.Wrapf(err, "binance: parse executed qty %q", ord.ExecutedQuantity)
	}
	if !qty.IsPositive() {
		b.log.Info("order closed unfilled",
			zap.String("market", o.Market), zap.Int64("order_id", id), zap.String("status", string(ord.Status)))
		return model.Fill{}, false, false, nil
	}
	quoteQty, err := decimal.NewFromString(ord.CummulativeQuoteQuantity)
	if err != nil {
		return model.Fill{}, false, false, errors.Wrapf(err, "binance: parse quote qty %q", ord.CummulativeQuoteQuantity)
	}
	return model.Fill{
		OrderID:    o.ID,
		Market:     o.Market,
		Symbol:     o.Symbol,
		Side:       o.Side,
		CoinAmount: qty.InexactFloat64(),
		Price:      quoteQty.Div(qty).InexactFloat64(),
		Amount:     quoteQty.InexactFloat64(),
		FilledAt:   time.UnixMilli(ord.UpdateTime),
	}, true, false, nil
}

// CancelOrder cancels a resting order. An order already gone from the book
// is not an error; OrderStatus reports how it ended.
func (b *BinanceExecutor) CancelOrder(ctx context.Context, o model.OpenOrder) error {
	id, err := strconv.ParseInt(o.ID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "binance: order id %q", o.ID)
	}
	_, err = b.client.NewCancelOrderService().Symbol(o.Market).OrderID(id).Do(ctx)
	if apiErr, ok := errors.Cause(err).(*common.APIError); ok && apiErr.Code == codeUnknownOrder {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "binance: cancel order %d %s", id, o.Market)
	}
	b.log.Info("order cancelled", zap.String("market", o.Market), zap.Int64("order_id", id))
	return nil
}

// Holding returns the free amount of asset.
func (b *BinanceExecutor) Holding(ctx context.Context, asset string) (float64, error) {
	free, err := b.FreeBalance(ctx, asset)
	if err != nil {
		return 0, err
	}
	return free.InexactFloat64(), nil
}

func fillFromResponse(req model.OrderRequest, resp *binance.CreateOrderResponse) (model.Fill, error) {
	qty, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return model.Fill{}, errors.Wrapf(err, "binance: parse executed qty %q", resp.ExecutedQuantity)
	}
	quoteQty, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return model.Fill{}, errors.Wrapf(err, "binance: parse quote qty %q", resp.CummulativeQuoteQuantity)
	}
	if qty.IsZero() {
		return model.Fill{}, errors.Errorf("binance: order %d filled with zero quantity", resp.OrderID)
	}
	return model.Fill{
		OrderID:    strconv.FormatInt(resp.OrderID, 10),
		Market:     req.Market,
		Symbol:     req.Symbol,
		Side:       req.Side,
		CoinAmount: qty.InexactFloat64(),
		Price:      quoteQty.Div(qty).InexactFloat64(), // average fill price
		Amount:     quoteQty.InexactFloat64(),
		FilledAt:   time.UnixMilli(resp.TransactTime),
	}, nil
}
