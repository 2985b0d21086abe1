// Package execution places the orders an evaluation decides on, against a
// simulated account (PaperExecutor) or Binance spot (BinanceExecutor), and
// journals every fill (CSVJournal, SQLiteJournal).
//
// Sizing is shared by both executors: a buy commits a percentage of the
// free quote balance, a sell a percentage of the free base balance.
package execution

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cryptosignal/internal/model"
)

// coinPrecision is the number of decimals kept on coin amounts.
const coinPrecision = 8

var hundred = decimal.NewFromInt(100)

// SplitSymbol splits "BASE/QUOTE" into its assets.
func SplitSymbol(symbol string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", "", fmt.Errorf("execution: symbol %q must be BASE/QUOTE", symbol)
	}
	return base, quote, nil
}

// BuyBudget returns the quote amount to spend. ok is false when the budget is
// under minBudget. A limit between minBudget and the balance caps the budget.
func BuyBudget(quoteBalance decimal.Decimal, pct, limit float64, minBudget decimal.Decimal) (budget decimal.Decimal, ok bool) {
	budget = quoteBalance.Mul(decimal.NewFromFloat(pct)).Div(hundred)
	if budget.LessThan(minBudget) {
		return budget, false
	}
	l := decimal.NewFromFloat(limit)
	if l.GreaterThan(minBudget) && l.LessThan(quoteBalance) {
		budget = l
	}
	return budget, true
}

// SellAmount returns the coin amount to sell. ok is false when there is
// nothing to sell.
func SellAmount(baseBalance decimal.Decimal, pct float64) (amount decimal.Decimal, ok bool) {
	amount = baseBalance.Mul(decimal.NewFromFloat(pct)).Div(hundred).Truncate(coinPrecision)
	return amount, amount.IsPositive()
}

// RoundToStep rounds amount down to a multiple of step. A step that is not
// positive leaves amount unchanged.
func RoundToStep(amount, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return amount
	}
	return amount.Div(step).Floor().Mul(step)
}

// SellPrice applies the profit floor of req to target.
func SellPrice(target decimal.Decimal, req model.OrderRequest) decimal.Decimal {
	if req.StopLoss || !req.SellWithProfitOnly || req.LastBuyPrice <= 0 {
		return target
	}
	floor := MinSellPrice(req.LastBuyPrice, req.MinProfitPct)
	if target.LessThan(floor) {
		return floor
	}
	return target
}

// MinSellPrice is lastBuy raised by minProfitPct percent.
func MinSellPrice(lastBuy, minProfitPct float64) decimal.Decimal {
	b := decimal.NewFromFloat(lastBuy)
	return b.Add(b.Mul(decimal.NewFromFloat(minProfitPct)).Div(hundred))
}

// slip moves price against the taker by bps basis points.
func slip(price decimal.Decimal, side model.Side, bps float64) decimal.Decimal {
	if bps <= 0 {
		return price
	}
	delta := price.Mul(decimal.NewFromFloat(bps)).Div(decimal.NewFromInt(10000))
	if side == model.SideBuy {
		return price.Add(delta) // buy higher
	}
	return price.Sub(delta) // sell lower
}
