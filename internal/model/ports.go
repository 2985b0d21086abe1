package model

import (
	"context"
	"time"
)

// ── Collaborator Port Interfaces ──
// The evaluation cycle talks to the outside world only through these.
// Exchange, storage and notification backends each satisfy one or more.

// BarFeed returns the most recent bars for an instrument, oldest first.
type BarFeed interface {
	Bars(ctx context.Context, market string, granularity int) ([]PriceBar, error)
}

// PriceQuoter returns the current tradable price of an instrument.
type PriceQuoter interface {
	Price(ctx context.Context, market string) (float64, error)
}

// OrderRequest describes an order intent handed to an OrderPlacer.
type OrderRequest struct {
	Market       string
	Symbol       string // "BASE/QUOTE"
	Side         Side
	Price        float64 // reference price (market price or last close)
	Percentage   float64 // share of the free balance to commit
	LimitBudget  float64 // optional quote budget cap for buys
	StopLoss     bool
	LastBuyPrice float64

	// Sell price floor: with SellWithProfitOnly a non stop-loss sell is
	// never priced under LastBuyPrice * (1 + MinProfitPct/100).
	SellWithProfitOnly bool
	MinProfitPct       float64
}

// OrderPlacer executes orders. filled=false with a nil error means the
// order was declined before reaching the exchange (budget too small,
// nothing to sell), or, when the returned Fill carries an OrderID, that it
// rests on the book unfilled.
type OrderPlacer interface {
	Place(ctx context.Context, req OrderRequest) (fill Fill, filled bool, err error)
}

// OrderTracker is implemented by placers whose orders can rest on the book.
type OrderTracker interface {
	// OrderStatus reports a resting order. open is true while it is still
	// on the book. Once it has left the book, filled says whether any
	// quantity executed and fill holds the executed part.
	OrderStatus(ctx context.Context, o OpenOrder) (fill Fill, filled, open bool, err error)

	// CancelOrder takes o off the book. Quantity executed before the cancel
	// is reported by the next OrderStatus call.
	CancelOrder(ctx context.Context, o OpenOrder) error
}

// Holdings is implemented by placers that can report free balances.
type Holdings interface {
	Holding(ctx context.Context, asset string) (float64, error)
}

// TradeJournal persists fills and reads the latest row of a given side.
type TradeJournal interface {
	Record(ctx context.Context, t Trade) error
	Last(ctx context.Context, symbol string, side Side) (Trade, bool, error)
	Close() error
}

// BarStore archives bars and reads them back for replay.
type BarStore interface {
	WriteBars(ctx context.Context, bars []PriceBar) error
	ReadBars(ctx context.Context, market string, granularity int, from time.Time) ([]PriceBar, error)
	Close() error
}
