// Package position holds the per-instrument state carried between
// evaluations: the last action, whether a buy is open, the last fill
// prices and running buy/sell aggregates.
//
// State is a plain value. An evaluation works on a copy obtained from a
// Registry lease and commits it back in one step, so a failed evaluation
// never leaves a half-updated State behind.
package position

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cryptosignal/internal/model"
)

// Trend is the market direction implied by the last BUY or SELL.
type Trend string

const (
	TrendNone    Trend = ""
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
)

// State is the carried state of one instrument.
type State struct {
	Market     string  `json:"market"`
	Symbol     string  `json:"symbol"`
	MaxLossPct float64 `json:"maximum_loss_percentage"` // 0 disables stop-loss
	Debug      bool    `json:"debug"`

	LastAction     model.Action `json:"last_action"`
	InPosition     bool         `json:"in_position"`
	Trend          Trend        `json:"trend"`
	LastBuyPrice   float64      `json:"last_buy_price"`
	LastBuySize    float64      `json:"last_buy_size"` // coin amount of the last buy fill
	LastSellPrice  float64      `json:"last_sell_price"`
	LastClosePrice float64      `json:"last_close_price"`
	MarketPrice    float64      `json:"market_price"`

	BuyCount  int     `json:"buy_count"`
	SellCount int     `json:"sell_count"`
	BuySum    float64 `json:"buy_sum"`  // quote amount bought
	SellSum   float64 `json:"sell_sum"` // quote amount sold

	// OpenOrder is the sell resting on the book, if any (empty ID).
	OpenOrder model.OpenOrder `json:"open_order"`

	Iterations  int       `json:"iterations"`
	LastBarDate time.Time `json:"last_bar_date"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New returns the cold-start state of an instrument.
func New(market, symbol string, maxLossPct float64) State {
	return State{Market: market, Symbol: symbol, MaxLossPct: maxLossPct}
}

// Validate checks the numeric invariants.
func (s State) Validate() error {
	switch {
	case s.Market == "":
		return fmt.Errorf("position: empty market")
	case s.LastBuyPrice < 0, s.LastSellPrice < 0, s.LastClosePrice < 0, s.MarketPrice < 0:
		return fmt.Errorf("position %s: negative price", s.Market)
	case s.BuyCount < 0, s.SellCount < 0, s.BuySum < 0, s.SellSum < 0:
		return fmt.Errorf("position %s: negative aggregate", s.Market)
	case s.MaxLossPct < 0 || s.MaxLossPct >= 100:
		return fmt.Errorf("position %s: maximum_loss_percentage %v out of [0,100)", s.Market, s.MaxLossPct)
	}
	switch s.LastAction {
	case model.ActionNone, model.ActionWait, model.ActionBuy, model.ActionSell:
	default:
		return fmt.Errorf("position %s: unknown last_action %q", s.Market, s.LastAction)
	}
	return nil
}

// StopLossPrice returns the price at or below which the position must be
// closed. ok is false when stop-loss is disabled or cannot be computed.
func (s State) StopLossPrice() (price float64, ok bool) {
	if s.MaxLossPct <= 0 || s.MarketPrice <= 0 || s.LastBuyPrice <= 0 {
		return 0, false
	}
	keep := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(s.MaxLossPct)).Div(decimal.NewFromInt(100))
	return decimal.NewFromFloat(s.LastBuyPrice).Mul(keep).InexactFloat64(), true
}

// HasOpenBuy reports whether more buys than sells have filled.
func (s State) HasOpenBuy() bool { return s.BuyCount > s.SellCount }

// HasOpenOrder reports whether an order rests on the book.
func (s State) HasOpenOrder() bool { return s.OpenOrder.ID != "" }

// Observe records the bar being evaluated and the current market price.
func (s *State) Observe(barDate time.Time, close, marketPrice float64) {
	s.LastBarDate = barDate
	s.LastClosePrice = close
	s.MarketPrice = marketPrice
	s.Iterations++
}

// Apply records the action an evaluation produced.
func (s *State) Apply(action model.Action, now time.Time) {
	s.LastAction = action
	switch action {
	case model.ActionBuy:
		s.Trend = TrendBullish
	case model.ActionSell:
		s.Trend = TrendBearish
	}
	s.UpdatedAt = now
}

// RecordFill applies a confirmed buy or sell fill. Any sell fill closes the
// position, a partial one included; coins it leaves behind are sold with
// the next exit.
func (s *State) RecordFill(f model.Fill) error {
	switch f.Side {
	case model.SideBuy:
		s.InPosition = true
		s.LastBuyPrice = f.Price
		s.LastBuySize = f.CoinAmount
		s.BuyCount++
		s.BuySum = addAmount(s.BuySum, f.Amount)
	case model.SideSell:
		s.InPosition = false
		s.LastSellPrice = f.Price
		s.SellCount++
		s.SellSum = addAmount(s.SellSum, f.Amount)
	default:
		return fmt.Errorf("position %s: unknown fill side %q", s.Market, f.Side)
	}
	return nil
}

// Restore seeds a cold-start state from the last journal rows.
func (s *State) Restore(lastBuy, lastSell *model.Trade) {
	if lastBuy != nil {
		s.LastBuyPrice = lastBuy.Price
		s.LastBuySize = lastBuy.CoinAmount
	}
	if lastSell != nil {
		s.LastSellPrice = lastSell.Price
	}
	switch {
	case lastBuy != nil && (lastSell == nil || lastBuy.Date.After(lastSell.Date)):
		s.InPosition = true
		s.LastAction = model.ActionBuy
		s.Trend = TrendBullish
		s.BuyCount, s.SellCount = 1, 0
	case lastSell != nil:
		s.LastAction = model.ActionSell
		s.Trend = TrendBearish
	}
}

// Profit returns the percentage result of the last buy/sell pair.
func (s State) Profit() float64 { return CalculateProfit(s.LastBuyPrice, s.LastSellPrice) }

// CalculateProfit returns (sell-buy)/buy as a percentage rounded to two
// decimals, or 0 when either price is missing.
func CalculateProfit(buy, sell float64) float64 {
	if buy == 0 || sell == 0 {
		return 0
	}
	b, sl := decimal.NewFromFloat(buy), decimal.NewFromFloat(sell)
	return sl.Sub(b).Div(b).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func addAmount(sum, amount float64) float64 {
	return decimal.NewFromFloat(sum).Add(decimal.NewFromFloat(amount)).InexactFloat64()
}
