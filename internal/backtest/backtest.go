// Package backtest replays one instrument's bar history through the same
// indicator and decision path the live bot uses, filling orders on a paper
// account at the bar close. A sell raised to its profit floor rests until a
// later bar's high reaches it.
package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cryptosignal/config"
	"cryptosignal/internal/execution"
	"cryptosignal/internal/indicator"
	"cryptosignal/internal/model"
	"cryptosignal/internal/portfolio"
	"cryptosignal/internal/position"
	"cryptosignal/internal/signal"
	"cryptosignal/internal/strategy"
)

// Options configures the simulated account.
type Options struct {
	QuoteBalance float64 // starting balance of the quote asset
	SlippageBps  float64
	MinBudget    float64
	Strategy     strategy.Strategy // nil for the default crossover
	Log          *zap.Logger
}

// Step is the outcome of one bar.
type Step struct {
	Date     time.Time    `json:"date"`
	Close    float64      `json:"close"`
	Action   model.Action `json:"action"`
	Reason   string       `json:"reason,omitempty"`
	StopLoss bool         `json:"stop_loss,omitempty"`
	Filled   bool         `json:"filled"`
	Resting  bool         `json:"resting,omitempty"` // sell left on the book
	Settled  bool         `json:"settled,omitempty"` // resting sell filled on this bar
}

// Report is the result of a run.
type Report struct {
	Market           string               `json:"market"`
	Bars             int                  `json:"bars"`
	Steps            []Step               `json:"steps"`
	Fills            []model.Fill         `json:"fills"`
	Summary          portfolio.PnLSummary `json:"summary"`
	FinalState       position.State       `json:"final_state"`
	FailedIndicators []string             `json:"failed_indicators,omitempty"`
	QuoteBalance     float64              `json:"quote_balance"`
	BaseBalance      float64              `json:"base_balance"`
}

// Actions returns the non-WAIT steps.
func (r *Report) Actions() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Action == model.ActionBuy || s.Action == model.ActionSell {
			out = append(out, s)
		}
	}
	return out
}

// Run computes the indicators once over bars and walks every row in order.
// The bar close doubles as the market price.
func Run(ctx context.Context, bars []model.PriceBar, inst config.Instrument, opts Options) (*Report, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	strat := opts.Strategy
	if strat == nil {
		strat = strategy.Default()
	}

	series, err := indicator.NewSeries(bars)
	if err != nil {
		return nil, err
	}
	report := &Report{Market: inst.Market, Bars: series.Len()}
	if err := indicator.NewEngine(inst.Indicators).AddAll(series); err != nil {
		report.FailedIndicators = indicator.FailedIndicators(err)
	}
	if !indicator.Decidable(series) {
		return nil, fmt.Errorf("backtest %s: %d bars are too few for the decision columns", inst.Market, series.Len())
	}

	paper := execution.NewPaperExecutor(opts.Log, opts.SlippageBps, opts.MinBudget)
	paper.Deposit(inst.Quote(), opts.QuoteBalance)
	var barDate time.Time
	paper.SetClock(func() time.Time { return barDate })

	pnl := portfolio.NewPnLTracker()
	st := position.New(inst.Market, inst.Symbol, inst.MaxLossPct)

	for i := 0; i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig := signal.At(series, i)
		barDate = sig.Date

		var settled bool
		if st.HasOpenOrder() {
			paper.Mark(inst.Market, series.Bar(i).High)
			if settled, err = closeResting(ctx, paper, &st, pnl, false); err != nil {
				return nil, err
			}
		}

		st.Observe(sig.Date, sig.Close, sig.Close)
		d := strat.Decide(sig, st)
		step := Step{Date: sig.Date, Close: sig.Close, Action: d.Action, Reason: d.Reason, StopLoss: d.StopLoss, Settled: settled}

		if side, ok, _ := strategy.OrderSide(d, st); ok {
			if st.HasOpenOrder() {
				if _, err := closeResting(ctx, paper, &st, pnl, true); err != nil {
					return nil, err
				}
			}
			fill, filled, err := paper.Place(ctx, model.OrderRequest{
				Market:             inst.Market,
				Symbol:             inst.Symbol,
				Side:               side,
				Price:              sig.Close,
				Percentage:         percentage(inst, side),
				LimitBudget:        inst.LimitBudget,
				StopLoss:           d.StopLoss,
				LastBuyPrice:       st.LastBuyPrice,
				SellWithProfitOnly: inst.SellWithProfitOnly,
				MinProfitPct:       inst.MinProfitPct,
			})
			if err != nil {
				return nil, fmt.Errorf("backtest %s bar %d: %w", inst.Market, i, err)
			}
			if filled {
				if err := st.RecordFill(fill); err != nil {
					return nil, err
				}
				pnl.RecordFill(fill)
				step.Filled = true
			} else if fill.OrderID != "" {
				st.OpenOrder = model.OpenOrder{
					ID: fill.OrderID, Market: fill.Market, Symbol: fill.Symbol, Side: fill.Side,
					Price: fill.Price, Quantity: fill.CoinAmount, PlacedAt: sig.Date,
				}
				step.Resting = true
			}
		}
		st.Apply(d.Action, sig.Date)
		report.Steps = append(report.Steps, step)
	}

	last := series.Bar(series.Len() - 1)
	report.Fills = paper.GetFills()
	report.Summary = pnl.Summary(map[string]float64{inst.Market: last.Close})
	report.FinalState = st
	report.QuoteBalance = paper.Balance(inst.Quote())
	report.BaseBalance = paper.Balance(inst.Base())
	return report, nil
}

// closeResting settles the resting order of st, cancelling it first when
// cancel is set. An order still on the book is left alone.
func closeResting(ctx context.Context, paper *execution.PaperExecutor, st *position.State, pnl *portfolio.PnLTracker, cancel bool) (bool, error) {
	if cancel {
		if err := paper.CancelOrder(ctx, st.OpenOrder); err != nil {
			return false, err
		}
	}
	fill, filled, open, err := paper.OrderStatus(ctx, st.OpenOrder)
	if err != nil || open {
		return false, err
	}
	st.OpenOrder = model.OpenOrder{}
	if !filled {
		return false, nil
	}
	if err := st.RecordFill(fill); err != nil {
		return false, err
	}
	pnl.RecordFill(fill)
	return true, nil
}

func percentage(inst config.Instrument, side model.Side) float64 {
	if side == model.SideBuy {
		return inst.BuyPct
	}
	return inst.SellPct
}
