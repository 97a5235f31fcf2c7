package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

type TradeCSV struct {
	Opened, Closed        time.Time
	Symbol, Side          string
	Qty, Entry, Exit, PnL decimal.Decimal
}

type EquityCSV struct {
	TS     time.Time
	Equity decimal.Decimal
}

func WriteTradesCSV(path string, rows []TradeCSV) error {
	recs := make([][]string, 0, len(rows)+1)
	recs = append(recs, []string{"opened", "closed", "symbol", "side", "qty", "entry", "exit", "pnl"})
	for _, r := range rows {
		recs = append(recs, []string{
			r.Opened.UTC().Format(time.RFC3339), r.Closed.UTC().Format(time.RFC3339), r.Symbol, r.Side,
			r.Qty.String(), r.Entry.String(), r.Exit.String(), r.PnL.StringFixed(8),
		})
	}
	return writeCSV(path, recs)
}

func WriteEquityCSV(path string, rows []EquityCSV) error {
	recs := make([][]string, 0, len(rows)+1)
	recs = append(recs, []string{"ts", "equity"})
	for _, r := range rows {
		recs = append(recs, []string{r.TS.UTC().Format(time.RFC3339), r.Equity.StringFixed(8)})
	}
	return writeCSV(path, recs)
}

func writeCSV(path string, recs [][]string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
