package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"reentrybot/internal/backtest"
	"reentrybot/internal/core"
	"reentrybot/internal/data"
	"reentrybot/internal/export"
	"reentrybot/internal/risk"
)

type backtestFlags struct {
	symbol    string
	limit     int
	synthetic bool
	seed      int64
	out       string
}

func backtestCmd() *cobra.Command {
	var f backtestFlags
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay recent candles through the engine with a paper broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "symbol to test (default: first configured)")
	cmd.Flags().IntVar(&f.limit, "limit", 999, "closed candles to replay (Bybit serves at most 999)")
	cmd.Flags().BoolVar(&f.synthetic, "synthetic", false, "use a random-walk series instead of Bybit history")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "random-walk seed")
	cmd.Flags().StringVar(&f.out, "out", "backtest_out", "output directory for CSV, report and zip")
	return cmd
}

func runBacktest(cmd *cobra.Command, f backtestFlags) error {
	ctx := cmd.Context()
	symbols, err := signalSources(config)
	if err != nil {
		return err
	}
	sc := symbols[0]
	if f.symbol != "" {
		want := strings.ToUpper(f.symbol)
		found := false
		for _, s := range symbols {
			if s.Symbol == want {
				sc, found = s, true
				break
			}
		}
		if !found {
			return fmt.Errorf("symbol %s is not configured", want)
		}
	}

	var candles []core.Candle
	if f.synthetic {
		start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(f.limit) * time.Hour)
		candles = data.NewRandomWalk(start, 100, 0.01, f.seed).Generate(sc.Symbol, config.Interval, f.limit)
	} else {
		candles, err = bybitClient(config).ClosedCandles(ctx, sc.Symbol, config.Interval, f.limit)
		if err != nil {
			return err
		}
	}
	log.Info().Str("symbol", sc.Symbol).Str("source", sc.Source.Name()).Int("candles", len(candles)).Msg("backtest")

	res, err := backtest.Run(ctx, backtest.Params{
		Symbol:        sc.Symbol,
		Interval:      config.Interval,
		Candles:       candles,
		Source:        sc.Source,
		Sizing:        sizing(config),
		InitialEquity: config.PaperEquity,
		History:       config.HistoryLimit,
		Risk:          risk.Default(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n%s\n", sc.Symbol, config.Interval, sc.Source.Name(), res.Summary)
	return writeBacktest(f.out, sc.Symbol+" "+sc.Source.Name(), res)
}

func writeBacktest(dir, title string, res backtest.Result) error {
	trades := make([]export.TradeCSV, 0, len(res.Trades))
	marks := make([]export.Marker, 0, len(res.Trades))
	for _, t := range res.Trades {
		trades = append(trades, export.TradeCSV{
			Opened: t.Opened, Closed: t.Closed, Symbol: t.Symbol, Side: t.Side.String(),
			Qty: t.Qty, Entry: t.Entry, Exit: t.Exit, PnL: t.PnL,
		})
	}
	equity := make([]export.EquityCSV, 0, len(res.EquityCurve))
	line := make([]export.Line, 0, len(res.EquityCurve))
	for _, p := range res.EquityCurve {
		equity = append(equity, export.EquityCSV{TS: p.TS, Equity: p.Equity})
		line = append(line, export.Line{X: float64(p.TS.Unix()), Y: p.Equity.InexactFloat64()})
	}
	for _, t := range res.Trades {
		kind := "win"
		if !t.PnL.IsPositive() {
			kind = "loss"
		}
		eq := res.Summary.FinalEquity
		for _, p := range res.EquityCurve {
			if !p.TS.After(t.Closed) {
				eq = p.Equity
			}
		}
		marks = append(marks, export.Marker{X: float64(t.Closed.Unix()), Y: eq.InexactFloat64(), Kind: kind})
	}

	files := map[string]string{
		"trades.csv":  filepath.Join(dir, "trades.csv"),
		"equity.csv":  filepath.Join(dir, "equity.csv"),
		"report.html": filepath.Join(dir, "report.html"),
	}
	if err := export.WriteTradesCSV(files["trades.csv"], trades); err != nil {
		return err
	}
	if err := export.WriteEquityCSV(files["equity.csv"], equity); err != nil {
		return err
	}
	chart := export.SimpleSVGChart(900, 300, line, marks, "Equity")
	report := backtest.HTMLReport(title, res.Summary, chart, "backtest.zip")
	if err := os.WriteFile(files["report.html"], report, 0o644); err != nil {
		return err
	}
	if err := export.ZipFiles(filepath.Join(dir, "backtest.zip"), files); err != nil {
		return err
	}
	log.Info().Str("dir", dir).Msg("backtest written")
	return nil
}
