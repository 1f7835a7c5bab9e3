// Package kite implements broker.Client and broker.Ticker against
// Zerodha's Kite Connect API — the reference broker integration the
// engine ships with.
package kite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
	"github.com/devanshjainms/exitengine/pkg/ratelimit"
	"github.com/devanshjainms/exitengine/pkg/retry"
)

const (
	baseURL = "https://api.kite.trade"
	wsURL   = "wss://ws.kite.trade"

	// Kite's documented per-account ceiling for order placement is 10
	// req/sec; quote and non-order endpoints are considerably higher, but
	// sharing one limiter per account keeps this conservative and simple.
	requestsPerSecond = 10
	burstCapacity     = 15
)

// fastJSON is the hot-path decoder for REST response bodies — every Kite
// endpoint response passes through it instead of encoding/json.
var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	broker.Register("kite", func(account *models.BrokerAccount, apiKey, accessToken string) (broker.Client, error) {
		return NewClient(apiKey, accessToken, nil), nil
	})
}

// Client talks to Kite Connect's REST API.
type Client struct {
	apiKey      string
	accessToken string
	http        *broker.HTTPClient
	limiter     *ratelimit.RateLimiter
	log         *applog.Logger
}

// NewClient builds a Client authenticated with apiKey/accessToken. log
// may be nil, in which case the global logger is used.
func NewClient(apiKey, accessToken string, log *applog.Logger) *Client {
	if log == nil {
		log = applog.L()
	}
	return &Client{
		apiKey:      apiKey,
		accessToken: accessToken,
		http:        broker.NewHTTPClient(broker.DefaultHTTPClientConfig()),
		limiter:     ratelimit.NewRateLimiter(requestsPerSecond, burstCapacity),
		log:         log.WithComponent("kite_client"),
	}
}

func (c *Client) Name() string { return "kite" }

func (c *Client) authHeader() string {
	return fmt.Sprintf("token %s:%s", c.apiKey, c.accessToken)
}

// do issues a REST call under the generic network retry policy (4
// attempts, 1/2/4s waits). Order placement uses doWithConfig directly with the
// exit-order-specific policy instead, since a double-accepted order is a
// much worse outcome than a double-accepted quote request.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	return c.doWithConfig(ctx, method, path, form, retry.NetworkConfig())
}

func (c *Client) doWithConfig(ctx context.Context, method, path string, form url.Values, cfg retry.Config) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, broker.NewError(broker.KindCancelled, "kite", "rate limiter wait cancelled", err)
	}

	var encodedForm string
	if form != nil {
		encodedForm = form.Encode()
	}

	if cfg.RetryIf == nil {
		cfg.RetryIf = retry.IsRetryable
	}

	var respBody []byte
	err := retry.Do(ctx, func() error {
		var body *bytes.Reader
		if form != nil {
			body = bytes.NewReader([]byte(encodedForm))
		} else {
			body = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
		if err != nil {
			return retry.Permanent(broker.NewError(broker.KindInput, "kite", "failed to build request", err))
		}
		req.Header.Set("Authorization", c.authHeader())
		req.Header.Set("X-Kite-Version", "3")
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return broker.NewError(broker.KindNetwork, "kite", "request failed", err)
		}
		defer resp.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return broker.NewError(broker.KindNetwork, "kite", "failed to read response", err)
		}
		respBody = buf.Bytes()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Permanent(broker.NewError(broker.KindAuth, "kite", "unauthorized", nil))
		case resp.StatusCode == http.StatusBadRequest:
			return retry.Permanent(broker.NewError(broker.KindOrderRejected, "kite", string(respBody), nil))
		case resp.StatusCode >= 500:
			return broker.NewError(broker.KindNetwork, "kite", fmt.Sprintf("server error %d", resp.StatusCode), nil)
		case resp.StatusCode >= 400:
			return retry.Permanent(broker.NewError(broker.KindInput, "kite", string(respBody), nil))
		}
		return nil
	}, cfg)

	if err != nil {
		return nil, err
	}
	return respBody, nil
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) PlaceOrder(ctx context.Context, params broker.PlaceOrderParams) (string, error) {
	form := url.Values{}
	form.Set("exchange", params.Exchange)
	form.Set("tradingsymbol", params.TradingSymbol)
	form.Set("transaction_type", params.TransactionType)
	form.Set("quantity", strconv.Itoa(params.Quantity))
	form.Set("product", params.Product)
	form.Set("order_type", params.OrderType)
	if params.Price > 0 {
		form.Set("price", strconv.FormatFloat(params.Price, 'f', 2, 64))
	}
	if params.TriggerPrice > 0 {
		form.Set("trigger_price", strconv.FormatFloat(params.TriggerPrice, 'f', 2, 64))
	}
	if params.Tag != "" {
		form.Set("tag", params.Tag)
	}

	variety := params.Variety
	if variety == "" {
		variety = broker.VarietyRegular
	}

	body, err := c.doWithConfig(ctx, http.MethodPost, "/orders/"+variety, form, retry.ExitOrderConfig())
	if err != nil {
		return "", err
	}

	var env apiEnvelope
	if err := fastJSON.Unmarshal(body, &env); err != nil {
		return "", broker.NewError(broker.KindData, "kite", "malformed place-order response", err)
	}
	var payload struct {
		OrderID string `json:"order_id"`
	}
	if err := fastJSON.Unmarshal(env.Data, &payload); err != nil {
		return "", broker.NewError(broker.KindData, "kite", "malformed place-order payload", err)
	}
	return payload.OrderID, nil
}

func (c *Client) Positions(ctx context.Context) (broker.PositionsResult, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return broker.PositionsResult{}, err
	}

	var env apiEnvelope
	if err := fastJSON.Unmarshal(body, &env); err != nil {
		return broker.PositionsResult{}, broker.NewError(broker.KindData, "kite", "malformed positions response", err)
	}
	var payload struct {
		Net []kitePosition `json:"net"`
		Day []kitePosition `json:"day"`
	}
	if err := fastJSON.Unmarshal(env.Data, &payload); err != nil {
		return broker.PositionsResult{}, broker.NewError(broker.KindData, "kite", "malformed positions payload", err)
	}

	return broker.PositionsResult{
		Net: toPositions(payload.Net),
		Day: toPositions(payload.Day),
	}, nil
}

type kitePosition struct {
	InstrumentToken uint32  `json:"instrument_token"`
	TradingSymbol   string  `json:"tradingsymbol"`
	Exchange        string  `json:"exchange"`
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	AveragePrice    float64 `json:"average_price"`
	LastPrice       float64 `json:"last_price"`
	PNL             float64 `json:"pnl"`
	BuyQuantity     int     `json:"buy_quantity"`
	SellQuantity    int     `json:"sell_quantity"`
	BuyPrice        float64 `json:"buy_price"`
	SellPrice       float64 `json:"sell_price"`
	Multiplier      float64 `json:"multiplier"`
}

func toPositions(rows []kitePosition) []broker.Position {
	out := make([]broker.Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, broker.Position{
			InstrumentToken: r.InstrumentToken,
			TradingSymbol:   r.TradingSymbol,
			Exchange:        r.Exchange,
			Product:         r.Product,
			Quantity:        r.Quantity,
			AveragePrice:    r.AveragePrice,
			LastPrice:       r.LastPrice,
			PNL:             r.PNL,
			BuyQuantity:     r.BuyQuantity,
			SellQuantity:    r.SellQuantity,
			BuyPrice:        r.BuyPrice,
			SellPrice:       r.SellPrice,
			Multiplier:      r.Multiplier,
		})
	}
	return out
}

func (c *Client) Orders(ctx context.Context) ([]broker.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := fastJSON.Unmarshal(body, &env); err != nil {
		return nil, broker.NewError(broker.KindData, "kite", "malformed orders response", err)
	}
	var rows []struct {
		OrderID         string    `json:"order_id"`
		ExchangeOrderID string    `json:"exchange_order_id"`
		TradingSymbol   string    `json:"tradingsymbol"`
		Exchange        string    `json:"exchange"`
		TransactionType string    `json:"transaction_type"`
		OrderType       string    `json:"order_type"`
		Product         string    `json:"product"`
		Variety         string    `json:"variety"`
		Status          string    `json:"status"`
		Quantity        int       `json:"quantity"`
		FilledQuantity  int       `json:"filled_quantity"`
		Price           float64   `json:"price"`
		TriggerPrice    float64   `json:"trigger_price"`
		Tag             string    `json:"tag"`
		OrderTimestamp  time.Time `json:"order_timestamp"`
	}
	if err := fastJSON.Unmarshal(env.Data, &rows); err != nil {
		return nil, broker.NewError(broker.KindData, "kite", "malformed orders payload", err)
	}

	out := make([]broker.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, broker.Order{
			OrderID:         r.OrderID,
			ExchangeOrderID: r.ExchangeOrderID,
			TradingSymbol:   r.TradingSymbol,
			Exchange:        r.Exchange,
			TransactionType: r.TransactionType,
			OrderType:       r.OrderType,
			Product:         r.Product,
			Variety:         r.Variety,
			Status:          r.Status,
			Quantity:        r.Quantity,
			FilledQuantity:  r.FilledQuantity,
			Price:           r.Price,
			TriggerPrice:    r.TriggerPrice,
			Tag:             r.Tag,
			OrderTimestamp:  r.OrderTimestamp,
		})
	}
	return out, nil
}

func (c *Client) LTP(ctx context.Context, keys []string) (map[string]broker.Quote, error) {
	form := url.Values{}
	for _, k := range keys {
		form.Add("i", k)
	}
	body, err := c.do(ctx, http.MethodGet, "/quote/ltp?"+form.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := fastJSON.Unmarshal(body, &env); err != nil {
		return nil, broker.NewError(broker.KindData, "kite", "malformed ltp response", err)
	}
	var raw map[string]struct {
		InstrumentToken uint32  `json:"instrument_token"`
		LastPrice       float64 `json:"last_price"`
	}
	if err := fastJSON.Unmarshal(env.Data, &raw); err != nil {
		return nil, broker.NewError(broker.KindData, "kite", "malformed ltp payload", err)
	}

	out := make(map[string]broker.Quote, len(raw))
	for k, v := range raw {
		out[k] = broker.Quote{InstrumentToken: v.InstrumentToken, LastPrice: v.LastPrice}
	}
	return out, nil
}

func (c *Client) Close() error {
	c.http.Close()
	return nil
}

// NewTickerForAccount builds a Ticker for the same credentials this
// Client was constructed with, sharing the default reconnect config.
func (c *Client) NewTickerForAccount(log *applog.Logger) broker.Ticker {
	return NewTicker(wsURL, c.apiKey, c.accessToken, DefaultReconnectConfig(), log)
}
