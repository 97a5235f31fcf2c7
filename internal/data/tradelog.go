package data

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

var tradeHeader = []string{"ts", "symbol", "interval", "event", "side", "qty", "price", "pnl", "order_id", "comment"}

type TradeLog struct {
	path string
	mu   sync.Mutex
}

func NewTradeLog(path string) (*TradeLog, error) {
	if path == "" {
		return nil, errors.New("empty trades path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, err
	}
	// ensure file exists with header
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(abs)
		if err != nil {
			return nil, err
		}
		w := csv.NewWriter(f)
		_ = w.Write(tradeHeader)
		w.Flush()
		_ = f.Close()
	}
	return &TradeLog{path: abs}, nil
}

func (t *TradeLog) Append(r core.TradeLogEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	rec := []string{
		r.TS.UTC().Format(time.RFC3339), r.Symbol, r.Interval, r.Event, r.Side,
		r.Qty.String(), r.Price.String(), r.PnL.String(), r.OrderID, r.Comment,
	}
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (t *TradeLog) LastN(n int) ([]core.TradeLogEntry, error) {
	if n <= 0 {
		n = 10
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	// skip header
	var out []core.TradeLogEntry
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) < len(tradeHeader) {
			continue
		}
		out = append(out, parseRow(rows[i]))
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func parseRow(rec []string) core.TradeLogEntry {
	ts, _ := time.Parse(time.RFC3339, rec[0])
	qty, _ := decimal.NewFromString(rec[5])
	price, _ := decimal.NewFromString(rec[6])
	pnl, _ := decimal.NewFromString(rec[7])
	return core.TradeLogEntry{
		TS: ts, Symbol: rec[1], Interval: rec[2], Event: rec[3], Side: rec[4],
		Qty: qty, Price: price, PnL: pnl, OrderID: rec[8], Comment: rec[9],
	}
}
