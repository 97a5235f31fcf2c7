package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"reentrybot/internal/core"
)

// retCode returned by set-leverage when the value is already in place.
const codeLeverageNotModified = 110043

type orderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	ReduceOnly  bool   `json:"reduceOnly"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderStatusResult struct {
	List []struct {
		OrderID     string `json:"orderId"`
		OrderStatus string `json:"orderStatus"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
	} `json:"list"`
}

func (c *Client) OpenPosition(ctx context.Context, in core.OrderIntent) (core.Fill, error) {
	side := "Buy"
	if in.Side == core.Short {
		side = "Sell"
	}
	return c.market(ctx, in, side, false)
}

func (c *Client) ClosePosition(ctx context.Context, in core.OrderIntent) (core.Fill, error) {
	side := "Sell"
	if in.Side == core.Short {
		side = "Buy"
	}
	return c.market(ctx, in, side, true)
}

func (c *Client) market(ctx context.Context, in core.OrderIntent, side string, reduceOnly bool) (core.Fill, error) {
	ins, err := c.Instrument(ctx, in.Symbol)
	if err != nil {
		return core.Fill{}, err
	}
	qty := RoundQty(in.Quantity, ins.QtyStep)
	if !qty.IsPositive() || qty.LessThan(ins.MinQty) {
		return core.Fill{}, fmt.Errorf("qty %s below minimum %s for %s", qty, ins.MinQty, in.Symbol)
	}

	req := orderRequest{
		Category:    c.cfg.Category,
		Symbol:      in.Symbol,
		Side:        side,
		OrderType:   "Market",
		Qty:         qty.String(),
		ReduceOnly:  reduceOnly,
		OrderLinkID: uuid.NewString(),
	}
	var res orderResult
	if err := c.post(ctx, "/v5/order/create", req, &res); err != nil {
		return core.Fill{}, fmt.Errorf("order %s %s %s: %w", side, qty, in.Symbol, err)
	}
	log.Info().Str("symbol", in.Symbol).Str("side", side).Str("qty", qty.String()).Bool("reduce_only", reduceOnly).
		Str("order_id", res.OrderID).Msg("bybit market order placed")

	price, filled, err := c.executed(ctx, in.Symbol, res.OrderID)
	if err != nil {
		// the order is placed either way; report the candle close instead
		log.Warn().Err(err).Str("symbol", in.Symbol).Str("order_id", res.OrderID).Str("price", in.Price.String()).
			Msg("bybit fill price unknown, using reference price")
		price, filled = in.Price, qty
	}
	return core.Fill{
		OrderID:  res.OrderID,
		Symbol:   in.Symbol,
		Side:     in.Side,
		Quantity: filled,
		Price:    price,
		Time:     c.now(),
	}, nil
}

// executed looks up the average execution price and filled quantity of an order.
func (c *Client) executed(ctx context.Context, symbol, orderID string) (decimal.Decimal, decimal.Decimal, error) {
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	q.Set("orderId", orderID)
	var res orderStatusResult
	if err := c.get(ctx, "/v5/order/realtime", q, true, &res); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("order status: %w", err)
	}
	for _, o := range res.List {
		if o.OrderID != orderID {
			continue
		}
		price, err := decimal.NewFromString(o.AvgPrice)
		if err != nil || !price.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("order %s (%s) has no average price yet", orderID, o.OrderStatus)
		}
		qty, err := decimal.NewFromString(o.CumExecQty)
		if err != nil || !qty.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("order %s (%s) has no executed quantity", orderID, o.OrderStatus)
		}
		return price, qty, nil
	}
	return decimal.Zero, decimal.Zero, fmt.Errorf("order %s not found", orderID)
}

// SetLeverage applies the same leverage to both sides of a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     c.cfg.Category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	err := c.post(ctx, "/v5/position/set-leverage", body, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeLeverageNotModified {
		return nil
	}
	return err
}

type walletResult struct {
	List []struct {
		AccountType           string `json:"accountType"`
		TotalEquity           string `json:"totalEquity"`
		TotalAvailableBalance string `json:"totalAvailableBalance"`
	} `json:"list"`
}

func (c *Client) Balance(ctx context.Context) (core.Balance, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")
	var res walletResult
	if err := c.get(ctx, "/v5/account/wallet-balance", q, true, &res); err != nil {
		return core.Balance{}, fmt.Errorf("wallet-balance: %w", err)
	}
	if len(res.List) == 0 {
		return core.Balance{}, errors.New("wallet-balance: empty account list")
	}
	acc := res.List[0]
	eq, _ := decimal.NewFromString(acc.TotalEquity)
	av, _ := decimal.NewFromString(acc.TotalAvailableBalance)
	return core.Balance{Asset: "USD", Equity: eq, Available: av}, nil
}
