// Package portfolio tracks realized and unrealized profit over a stream
// of fills.
package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"cryptosignal/internal/model"
)

// PnLTracker keeps a weighted-average cost basis per market.
type PnLTracker struct {
	mu    sync.RWMutex
	fills []model.Fill

	realized  decimal.Decimal // quote currency
	wins      int
	losses    int
	costBasis map[string]costEntry
}

type costEntry struct {
	Qty      decimal.Decimal
	AvgPrice decimal.Decimal
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{
		fills:     make([]model.Fill, 0, 64),
		costBasis: make(map[string]costEntry),
	}
}

// RecordFill applies a fill and returns the profit it realized (zero for
// buys). Sells larger than the held quantity only realize on what is held.
func (p *PnLTracker) RecordFill(f model.Fill) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fills = append(p.fills, f)
	entry := p.costBasis[f.Market]
	qty := decimal.NewFromFloat(f.CoinAmount)
	price := decimal.NewFromFloat(f.Price)

	if f.Side == model.SideBuy {
		total := entry.AvgPrice.Mul(entry.Qty).Add(price.Mul(qty))
		entry.Qty = entry.Qty.Add(qty)
		if entry.Qty.IsPositive() {
			entry.AvgPrice = total.Div(entry.Qty)
		}
		p.costBasis[f.Market] = entry
		return decimal.Zero
	}

	sold := decimal.Min(qty, entry.Qty)
	pnl := price.Sub(entry.AvgPrice).Mul(sold)
	entry.Qty = entry.Qty.Sub(sold)
	if !entry.Qty.IsPositive() {
		entry = costEntry{}
	}
	p.costBasis[f.Market] = entry

	p.realized = p.realized.Add(pnl)
	switch {
	case pnl.IsPositive():
		p.wins++
	case pnl.IsNegative():
		p.losses++
	}
	return pnl
}

// Realized returns the total realized profit.
func (p *PnLTracker) Realized() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realized
}

// Unrealized values open quantities at prices (market -> price).
func (p *PnLTracker) Unrealized(prices map[string]float64) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, _ := p.unrealized(prices)
	return u
}

func (p *PnLTracker) unrealized(prices map[string]float64) (decimal.Decimal, int) {
	total := decimal.Zero
	open := 0
	for market, entry := range p.costBasis {
		if !entry.Qty.IsPositive() {
			continue
		}
		open++
		if price, ok := prices[market]; ok {
			total = total.Add(decimal.NewFromFloat(price).Sub(entry.AvgPrice).Mul(entry.Qty))
		}
	}
	return total, open
}

// Fills returns a snapshot of all fills.
func (p *PnLTracker) Fills() []model.Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// PnLSummary is a point-in-time P&L report.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	OpenPositions int     `json:"open_positions"`
}

// Summary returns the current P&L summary.
func (p *PnLTracker) Summary(prices map[string]float64) PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	unrealized, open := p.unrealized(prices)
	return PnLSummary{
		RealizedPnL:   p.realized.Round(8).InexactFloat64(),
		UnrealizedPnL: unrealized.Round(8).InexactFloat64(),
		TotalPnL:      p.realized.Add(unrealized).Round(8).InexactFloat64(),
		TotalTrades:   len(p.fills),
		Wins:          p.wins,
		Losses:        p.losses,
		OpenPositions: open,
	}
}
