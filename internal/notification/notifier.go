// Package notification delivers action alerts to external channels
// (Telegram, webhooks, the log).
package notification

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel   `json:"level"`
	Market  string       `json:"market"`
	Action  model.Action `json:"action"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// ActionAlert builds the alert for a completed evaluation. ok is false for
// events nobody needs to hear about (WAIT without suppression).
func ActionAlert(ev model.ActionEvent, st position.State) (alert Alert, ok bool) {
	alert = Alert{Level: AlertInfo, Market: ev.Market, Action: ev.Action}
	switch {
	case ev.Suppressed:
		alert.Level = AlertWarning
		alert.Title = fmt.Sprintf("%s order withheld", st.Symbol)
		alert.Message = fmt.Sprintf("%s signal at %.8g not executed: %s", ev.Action, ev.Close, ev.Reason)
	case ev.Action == model.ActionBuy:
		alert.Title = fmt.Sprintf("%s BUY", st.Symbol)
		alert.Message = fmt.Sprintf("Bought at %.8g (close %.8g)", st.LastBuyPrice, ev.Close)
		if !ev.Filled {
			alert.Message = fmt.Sprintf("BUY signal at %.8g, no fill", ev.Close)
		}
	case ev.Action == model.ActionSell:
		alert.Title = fmt.Sprintf("%s SELL", st.Symbol)
		alert.Message = fmt.Sprintf("SELL signal at %.8g, no fill", ev.Close)
		if ev.Filled {
			alert.Message = fmt.Sprintf("Sold at %.8g, profit %.2f%%", st.LastSellPrice, st.Profit())
		}
		if ev.StopLoss {
			alert.Level = AlertCritical
			alert.Title = fmt.Sprintf("%s STOP-LOSS", st.Symbol)
		}
	default:
		return Alert{}, false
	}
	return alert, true
}

// LogNotifier logs alerts (useful for development and paper trading).
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.Info(alert.Title,
		zap.String("level", string(alert.Level)),
		zap.String("market", alert.Market),
		zap.String("action", string(alert.Action)),
		zap.String("message", alert.Message),
	)
	return nil
}

// Multi sends every alert to all of its notifiers. A failing backend does
// not stop delivery to the others.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs error
	for _, n := range m {
		errs = multierr.Append(errs, n.Send(ctx, alert))
	}
	return errs
}
