package model

import (
	"encoding/json"
	"time"
)

// PriceBar is one OHLCV row of an instrument's candle series.
type PriceBar struct {
	Date        time.Time `json:"date"`        // bucket start time (UTC)
	Market      string    `json:"market"`      // instrument id, e.g. "BTCUSDT"
	Granularity int       `json:"granularity"` // seconds per bar
	Low         float64   `json:"low"`
	High        float64   `json:"high"`
	Open        float64   `json:"open"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
}

// BarColumns is the exact column order of a price series.
var BarColumns = []string{"date", "market", "granularity", "low", "high", "open", "close", "volume"}

// Granularities lists the supported bar sizes in seconds.
var Granularities = []int{60, 300, 900, 3600, 21600, 86400}

// SupportedGranularity reports whether g is one of Granularities.
func SupportedGranularity(g int) bool {
	for _, s := range Granularities {
		if s == g {
			return true
		}
	}
	return false
}

// JSON returns the JSON-encoded bar (ignoring errors).
func (b *PriceBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
