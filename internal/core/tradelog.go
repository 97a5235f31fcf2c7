package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeLogEntry struct {
	TS       time.Time       `json:"ts"`
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Event    string          `json:"event"` // open|close
	Side     string          `json:"side"`
	Qty      decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	PnL      decimal.Decimal `json:"pnl"`
	OrderID  string          `json:"order_id"`
	Comment  string          `json:"comment"`
}

type TradeLogger interface {
	Append(TradeLogEntry) error
	LastN(n int) ([]TradeLogEntry, error)
}
