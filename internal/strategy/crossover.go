package strategy

import (
	"fmt"

	"cryptosignal/internal/indicator"
	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
	"cryptosignal/internal/signal"
)

// Crossover buys on one transition flag and sells on another.
//
// Buy:  buy flag set and the last action was not BUY.
// Sell: sell flag set and the last action was a BUY or WAIT.
//
// A buy crossover seen while an earlier buy is still unsold yields WAIT with
// Suppressed set.
type Crossover struct {
	name     string
	buyFlag  string
	sellFlag string
}

var defaultCrossover = NewCrossover("EMA_Crossover", indicator.DecisionColumns[0], indicator.DecisionColumns[1])

// NewCrossover creates a crossover policy over the given flag columns.
func NewCrossover(name, buyFlag, sellFlag string) *Crossover {
	return &Crossover{name: name, buyFlag: buyFlag, sellFlag: sellFlag}
}

func (c *Crossover) Name() string {
	return c.name
}

func (c *Crossover) Decide(sig signal.Signal, st position.State) Decision {
	if limit, ok := st.StopLossPrice(); ok && st.MarketPrice <= limit {
		return Decision{
			Action:        model.ActionSell,
			Reason:        fmt.Sprintf("stop-loss: market %.8g <= %.8g (%.2f%% under buy %.8g)", st.MarketPrice, limit, st.MaxLossPct, st.LastBuyPrice),
			StopLoss:      true,
			StopLossPrice: limit,
		}
	}

	if sig.Flag(c.buyFlag) && st.LastAction != model.ActionBuy {
		if st.HasOpenBuy() {
			return Decision{
				Action:     model.ActionWait,
				Reason:     fmt.Sprintf("%s ignored: %d buys vs %d sells", c.buyFlag, st.BuyCount, st.SellCount),
				Suppressed: true,
			}
		}
		return Decision{Action: model.ActionBuy, Reason: c.buyFlag}
	}

	if sig.Flag(c.sellFlag) && st.LastAction != model.ActionNone && st.LastAction != model.ActionSell {
		return Decision{Action: model.ActionSell, Reason: c.sellFlag}
	}

	return Decision{Action: model.ActionWait}
}
