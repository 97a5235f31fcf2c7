package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
	id         BIGSERIAL PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	symbol     TEXT NOT NULL,
	interval   TEXT NOT NULL,
	event      TEXT NOT NULL,
	side       TEXT NOT NULL,
	qty        NUMERIC NOT NULL,
	price      NUMERIC NOT NULL,
	pnl        NUMERIC NOT NULL DEFAULT 0,
	order_id   TEXT NOT NULL DEFAULT '',
	comment    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades (ts DESC);
`

// PgTradeLog keeps the trade journal in Postgres.
type PgTradeLog struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPgTradeLog(ctx context.Context, dsn string) (*PgTradeLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTradesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate trades: %w", err)
	}
	return &PgTradeLog{pool: pool, timeout: 5 * time.Second}, nil
}

func (l *PgTradeLog) Close() { l.pool.Close() }

// Decimals are stored through their string form so NUMERIC keeps every digit.
func (l *PgTradeLog) Append(r core.TradeLogEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO trades (ts, symbol, interval, event, side, qty, price, pnl, order_id, comment)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10)`,
		r.TS, r.Symbol, r.Interval, r.Event, r.Side,
		r.Qty.String(), r.Price.String(), r.PnL.String(), r.OrderID, r.Comment)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (l *PgTradeLog) LastN(n int) ([]core.TradeLogEntry, error) {
	if n <= 0 {
		n = 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	rows, err := l.pool.Query(ctx,
		`SELECT ts, symbol, interval, event, side, qty::text, price::text, pnl::text, order_id, comment
		 FROM (SELECT * FROM trades ORDER BY ts DESC, id DESC LIMIT $1) t ORDER BY ts, id`, n)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanTrade)
	if err != nil {
		return nil, fmt.Errorf("scan trades: %w", err)
	}
	return out, nil
}

func scanTrade(row pgx.CollectableRow) (core.TradeLogEntry, error) {
	var (
		e               core.TradeLogEntry
		qty, price, pnl string
	)
	if err := row.Scan(&e.TS, &e.Symbol, &e.Interval, &e.Event, &e.Side, &qty, &price, &pnl, &e.OrderID, &e.Comment); err != nil {
		return e, err
	}
	var err error
	if e.Qty, err = decimal.NewFromString(qty); err != nil {
		return e, err
	}
	if e.Price, err = decimal.NewFromString(price); err != nil {
		return e, err
	}
	if e.PnL, err = decimal.NewFromString(pnl); err != nil {
		return e, err
	}
	return e, nil
}
