// Package strategy turns the latest signal and the carried position state
// into one action per evaluation.
//
// Precedence is fixed: a triggered stop-loss wins over everything, then a
// BUY on the buy crossover, then a SELL on the sell crossover, else WAIT.
// Crossovers are transition flags, so a standing regime produces at most one
// action at its crossing bar.
package strategy

import (
	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
	"cryptosignal/internal/signal"
)

// Decision is the outcome of Decide.
type Decision struct {
	Action        model.Action `json:"action"`
	Reason        string       `json:"reason"`
	StopLoss      bool         `json:"stop_loss"`
	StopLossPrice float64      `json:"stop_loss_price,omitempty"`
	Suppressed    bool         `json:"suppressed"` // a BUY crossover held back by an open buy
}

// Strategy is the interface of decision policies.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Decide returns the action for sig given the carried state. It must not
	// mutate anything.
	Decide(sig signal.Signal, st position.State) Decision
}

// Default returns the EMA crossover policy on the decision columns.
func Default() Strategy { return defaultCrossover }

// Decide runs the default EMA crossover policy.
func Decide(sig signal.Signal, st position.State) Decision {
	return defaultCrossover.Decide(sig, st)
}

// OrderSide returns the order a decision asks for. ok is false when no order
// should be placed; reason then says why a BUY or SELL was withheld.
func OrderSide(d Decision, st position.State) (side model.Side, ok bool, reason string) {
	switch d.Action {
	case model.ActionBuy:
		if st.HasOpenBuy() {
			return "", false, "previous buy not sold yet"
		}
		return model.SideBuy, true, ""
	case model.ActionSell:
		if !st.InPosition {
			return "", false, "not in position, nothing to sell"
		}
		return model.SideSell, true, ""
	}
	return "", false, ""
}
