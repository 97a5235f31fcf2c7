package tg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"reentrybot/internal/core"
)

// View is the read-only engine surface the bot reports from.
type View interface {
	Mode() string
	Interval() string
	Snapshot() []core.SymbolState
	Failures(symbol string) int
}

// History returns the most recent trade log rows.
type History interface {
	LastN(n int) ([]core.TradeLogEntry, error)
}

type sender interface {
	Send(c gobot.Chattable) (gobot.Message, error)
}

type Bot struct {
	api      *gobot.BotAPI
	out      sender
	chatID   int64
	view     View
	balances core.BalanceProvider
	history  History
}

// NewBot connects to Telegram. An empty token yields a disabled bot whose
// Notify only logs.
func NewBot(token string, chatID int64, view View, balances core.BalanceProvider, history History) (*Bot, error) {
	b := &Bot{chatID: chatID, view: view, balances: balances, history: history}
	if token == "" {
		log.Warn().Msg("TG token empty: bot disabled")
		return b, nil
	}
	api, err := gobot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	api.Debug = false
	b.api, b.out = api, api
	log.Info().Str("@", api.Self.UserName).Msg("Telegram connected")
	return b, nil
}

// Notify sends text to the configured chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	if b.out == nil || b.chatID == 0 {
		log.Info().Str("notify", text).Msg("telegram disabled")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.out.Send(gobot.NewMessage(b.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Run answers commands until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return nil
	}
	u := gobot.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return errors.New("telegram updates channel closed")
			}
			if up.Message == nil {
				continue
			}
			chatID := up.Message.Chat.ID
			if b.chatID != 0 && chatID != b.chatID {
				log.Warn().Int64("chat", chatID).Msg("ignoring message from unknown chat")
				continue
			}
			b.reply(chatID, b.answer(ctx, up.Message.Text))
		}
	}
}

func (b *Bot) answer(ctx context.Context, text string) string {
	cmd := strings.TrimSpace(text)
	if f := strings.Fields(cmd); len(f) > 0 {
		cmd = f[0]
	}
	// "/status@botname" in group chats
	cmd, _, _ = strings.Cut(strings.ToLower(cmd), "@")
	switch cmd {
	case "/start", "/help":
		return "Commands: /status, /positions, /trades, /balance"
	case "/status":
		return b.status()
	case "/positions":
		return b.positions()
	case "/trades":
		return b.trades()
	case "/assets", "/balance":
		return b.balance(ctx)
	default:
		return "Unknown command. Try /help"
	}
}

func (b *Bot) status() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mode: %s | TF: %s\n", b.view.Mode(), b.view.Interval())
	for _, st := range b.view.Snapshot() {
		fmt.Fprintf(&sb, "%s: %s", st.Symbol, st.Phase)
		if st.Side != core.SideNone {
			fmt.Fprintf(&sb, " %s", st.Side)
		}
		if n := b.view.Failures(st.Symbol); n > 0 {
			fmt.Fprintf(&sb, " (%d failed ticks)", n)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) positions() string {
	var lines []string
	for _, st := range b.view.Snapshot() {
		if st.Phase != core.Open {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s @ %s | SL %s", st.Symbol, strings.ToUpper(st.Side.String()),
			st.Quantity.StringFixed(6), st.EntryPrice.StringFixed(4), st.StopPrice.StringFixed(4)))
	}
	if len(lines) == 0 {
		return "No open positions"
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) trades() string {
	if b.history == nil {
		return "Trade log unavailable"
	}
	rows, err := b.history.LastN(10)
	if err != nil {
		log.Error().Err(err).Msg("read trade log")
		return "Trade log unavailable"
	}
	if len(rows) == 0 {
		return "No trades yet"
	}
	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s %s %s %s %s @ %s", r.TS.UTC().Format("01-02 15:04"), r.Symbol, r.Event,
			strings.ToUpper(r.Side), r.Qty.StringFixed(6), r.Price.StringFixed(4))
		if r.Event == core.IntentClose.String() {
			fmt.Fprintf(&sb, " PnL %s", r.PnL.StringFixed(4))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) balance(ctx context.Context) string {
	if b.balances == nil {
		return "Balance unavailable"
	}
	bal, err := b.balances.Balance(ctx)
	if err != nil {
		log.Error().Err(err).Msg("read balance")
		return "Balance unavailable"
	}
	return fmt.Sprintf("%s equity %s | available %s", bal.Asset, bal.Equity.StringFixed(2), bal.Available.StringFixed(2))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.out.Send(gobot.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Msg("send tg msg")
	}
}
