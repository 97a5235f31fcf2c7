package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"reentrybot/internal/broker"
	"reentrybot/internal/bybit"
	"reentrybot/internal/cfg"
	"reentrybot/internal/core"
	"reentrybot/internal/data"
	"reentrybot/internal/risk"
	"reentrybot/internal/state"
	"reentrybot/internal/strategies"
	"reentrybot/internal/tg"
	"reentrybot/internal/web"
)

func runCmd() *cobra.Command {
	var synthetic bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll closed candles and trade every configured symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBot(ctx, config, synthetic)
		},
	}
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "paper mode: use a random-walk market instead of Bybit candles")
	return cmd
}

func sizing(c cfg.Config) core.Sizing {
	return core.Sizing{Notional: c.TradeNotional, StopPct: c.StopFraction()}
}

func signalSources(c cfg.Config) ([]core.SymbolConfig, error) {
	kind, err := strategies.ParseKind(c.MAKind)
	if err != nil {
		return nil, err
	}
	out := make([]core.SymbolConfig, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		out = append(out, core.SymbolConfig{Symbol: s.Symbol, Source: strategies.NewCrossover(kind, s.Fast, s.Slow)})
	}
	return out, nil
}

func bybitClient(c cfg.Config) *bybit.Client {
	return bybit.NewClient(bybit.Config{
		BaseURL:    c.BybitBaseURL,
		APIKey:     c.BybitAPIKey,
		APISecret:  c.BybitAPISecret,
		RecvWindow: c.BybitRecvWindow,
	})
}

func openStore(ctx context.Context, c cfg.Config) (core.StateStore, func()) {
	switch c.StateBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		return state.NewRedisStore(ctx, rdb), func() { _ = rdb.Close() }
	case "memory":
		return state.NewMemory(), func() {}
	default:
		return state.NewFileStore(c.StatePath), func() {}
	}
}

func openTradeLog(ctx context.Context, c cfg.Config) (core.TradeLogger, func(), error) {
	if c.DatabaseURL != "" {
		pg, err := data.NewPgTradeLog(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	tl, err := data.NewTradeLog(c.TradesPath)
	if err != nil {
		return nil, nil, err
	}
	return tl, func() {}, nil
}

func runBot(ctx context.Context, c cfg.Config, synthetic bool) error {
	sz := sizing(c)
	limits := risk.Default()
	if err := limits.CheckSizing(sz, c.Leverage); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	symbols, err := signalSources(c)
	if err != nil {
		return err
	}

	var (
		market   core.MarketData
		exec     core.Executor
		balances core.BalanceProvider
		paper    *broker.Paper
	)
	client := bybitClient(c)
	switch c.Mode {
	case "live":
		for _, s := range symbols {
			if err := client.SetLeverage(ctx, s.Symbol, c.Leverage); err != nil {
				return fmt.Errorf("set leverage %s: %w", s.Symbol, err)
			}
		}
		market, exec, balances = client, client, client
	default:
		paper = broker.NewPaper(c.PaperEquity)
		exec, balances = paper, paper
		market = client
		if synthetic {
			market = data.NewRandomWalk(time.Now().Add(-24*time.Hour).Truncate(time.Minute), 100, 0.004, time.Now().UnixNano())
		}
	}

	store, closeStore := openStore(ctx, c)
	defer closeStore()
	trades, closeTrades, err := openTradeLog(ctx, c)
	if err != nil {
		return fmt.Errorf("trade log: %w", err)
	}
	defer closeTrades()

	// bot and server read the engine, the engine notifies through them
	view := &engineView{}
	bot, err := tg.NewBot(c.TgToken, c.TgChatID, view, balances, trades)
	if err != nil {
		return err
	}
	srv := web.NewServer(c.TgToken, c.WebAddr, c.DevMode, view, trades)

	eng := core.NewEngine(core.EngineOpts{
		Mode:       c.Mode,
		Interval:   c.Interval,
		History:    c.HistoryLimit,
		Sizing:     sz,
		Symbols:    symbols,
		Market:     market,
		Exec:       exec,
		Risk:       limits,
		Notifier:   bot,
		Store:      store,
		Trades:     trades,
		Events:     srv,
		AlertAfter: c.FailureAlertAfter,
	})
	view.Engine = eng
	if err := eng.Restore(ctx); err != nil {
		return err
	}
	if paper != nil {
		adoptRestored(paper, eng)
	}

	go func() {
		if err := srv.Serve(); err != nil {
			log.Error().Err(err).Msg("web server stopped")
		}
	}()
	go func() {
		if err := bot.Run(ctx); err != nil {
			log.Error().Err(err).Msg("telegram bot stopped")
		}
	}()

	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Symbol+" "+s.Source.Name())
	}
	log.Info().Str("mode", c.Mode).Str("interval", c.Interval).Str("symbols", strings.Join(names, ", ")).
		Dur("poll", c.PollInterval).Msg("reentrybot starting")
	if err := bot.Notify(ctx, fmt.Sprintf("reentrybot started (%s, %s): %s", c.Mode, c.Interval, strings.Join(names, ", "))); err != nil {
		log.Warn().Err(err).Msg("startup notify")
	}

	eng.Run(ctx, c.PollInterval)

	log.Info().Msg("shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// adoptRestored hands restored open positions to the paper broker; without
// the lot a later stop could not be closed.
func adoptRestored(paper *broker.Paper, eng *core.Engine) {
	for _, st := range eng.Snapshot() {
		if st.Phase != core.Open {
			continue
		}
		if err := paper.Adopt(st); err != nil {
			log.Warn().Err(err).Str("symbol", st.Symbol).Msg("paper adopt")
			continue
		}
		log.Info().Str("symbol", st.Symbol).Str("side", st.Side.String()).Str("qty", st.Quantity.String()).
			Msg("paper position restored")
	}
}

// engineView is set once before any reader starts.
type engineView struct{ *core.Engine }
