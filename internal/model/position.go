package model

import (
	"encoding/json"
	"time"
)

// ActionEvent is published after every completed evaluation.
type ActionEvent struct {
	Market      string    `json:"market"`
	Symbol      string    `json:"symbol"`
	Action      Action    `json:"action"`
	Reason      string    `json:"reason,omitempty"`
	Close       float64   `json:"close"`
	MarketPrice float64   `json:"market_price"`
	BarDate     time.Time `json:"bar_date"`
	Filled      bool      `json:"filled"`
	StopLoss    bool      `json:"stop_loss"`
	Suppressed  bool      `json:"suppressed"`
	TraceID     string    `json:"trace_id,omitempty"`
	TS          time.Time `json:"ts"`
}

// JSON returns the JSON-encoded event (ignoring errors).
func (e *ActionEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
