package model

import "time"

// Action is the outcome of one evaluation cycle.
type Action string

const (
	ActionNone Action = ""
	ActionWait Action = "WAIT"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Side is the lower-case trade type written to the transaction log.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is a confirmed order execution.
type Fill struct {
	OrderID    string    `json:"order_id"`
	Market     string    `json:"market"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	CoinAmount float64   `json:"coin_amount"` // base asset quantity
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"` // quote value, coin_amount * price
	FilledAt   time.Time `json:"filled_at"`
}

// OpenOrder is an order resting on the book, awaiting a fill.
type OpenOrder struct {
	ID       string    `json:"id"`
	Market   string    `json:"market"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	PlacedAt time.Time `json:"placed_at"`
}

// Trade is one row of the persisted transaction log.
type Trade struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"instrument_symbol"`
	Type       Side      `json:"type"`
	CoinAmount float64   `json:"coin_amount"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
}

// TradeFromFill converts a fill into its transaction log row.
func TradeFromFill(f Fill) Trade {
	return Trade{
		Date:       f.FilledAt,
		Symbol:     f.Symbol,
		Type:       f.Side,
		CoinAmount: f.CoinAmount,
		Price:      f.Price,
		Amount:     f.Amount,
	}
}
