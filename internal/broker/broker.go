// Package broker defines the Client/Ticker contract the engine uses to
// talk to a brokerage, independent of which brokerage it is, plus a
// name-keyed, per-user factory that constructs and caches authenticated
// clients. Concrete implementations (e.g. Kite Connect) live in
// sub-packages and register themselves with the factory by name.
package broker

import (
	"context"
	"strings"
	"time"

	"github.com/devanshjainms/exitengine/pkg/applog"
)

// Client is the order/position/quote surface every broker implementation
// provides. All calls are context-bound so the caller can enforce the
// REST timeout (default 7s, see configuration).
type Client interface {
	// Name returns the broker identifier this client was constructed for,
	// e.g. "kite".
	Name() string

	// PlaceOrder submits an order and returns the broker's order id.
	PlaceOrder(ctx context.Context, params PlaceOrderParams) (string, error)

	// Positions returns net and day positions for the account.
	Positions(ctx context.Context) (PositionsResult, error)

	// Orders returns the account's order book for the trading day.
	Orders(ctx context.Context) ([]Order, error)

	// LTP returns the last traded price for each of keys, keyed by the
	// same "exchange:tradingsymbol" string passed in.
	LTP(ctx context.Context, keys []string) (map[string]Quote, error)

	// Close releases any held connections (HTTP keep-alives, auth state).
	Close() error
}

// TickerProvider is an optional capability a Client implementation may
// offer: a streaming back-end sharing the client's own credentials. A
// broker that only exposes REST (no websocket feed) simply doesn't
// implement this, and the engine falls back to LTP polling — the
// duck-typed "does this client also stream" check the engine performs is
// a plain Go type assertion against this interface.
type TickerProvider interface {
	NewTickerForAccount(log *applog.Logger) Ticker
}

// TickMode selects the level of detail a Ticker subscription receives.
type TickMode string

const (
	ModeLTP   TickMode = "ltp"
	ModeQuote TickMode = "quote"
	ModeFull  TickMode = "full"
)

// Ticker is the streaming price feed contract. Implementations own a
// persistent websocket connection and its reconnect/backoff lifecycle.
type Ticker interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool

	Subscribe(tokens []uint32) error
	Unsubscribe(tokens []uint32) error
	SetMode(mode TickMode, tokens []uint32) error

	OnTicks(func(ticks []Tick))
	OnConnect(func())
	OnClose(func(code int, reason string))
	OnError(func(err error))
	OnReconnect(func(attempt int))
}

// PlaceOrderParams carries the fields needed to place an exit order. It
// matches the broker wire shape closely enough that implementations can
// marshal it with minimal translation.
type PlaceOrderParams struct {
	Variety          string
	Exchange         string
	TradingSymbol    string
	TransactionType  string // BUY or SELL
	Quantity         int
	Product          string
	OrderType        string // MARKET or LIMIT
	Price            float64
	TriggerPrice     float64
	Tag              string
}

// Position is one row of a broker's net or day position report.
type Position struct {
	InstrumentToken uint32
	TradingSymbol   string
	Exchange        string
	Product         string
	Quantity        int
	AveragePrice    float64
	LastPrice       float64
	PNL             float64
	BuyQuantity     int
	SellQuantity    int
	BuyPrice        float64
	SellPrice       float64
	Multiplier      float64
}

// PositionsResult separates net (carried across the session) from day
// (intraday only) positions, mirroring the broker's own split.
type PositionsResult struct {
	Net []Position
	Day []Position
}

// Order is one row of a broker's order book.
type Order struct {
	OrderID         string
	ExchangeOrderID string
	TradingSymbol   string
	Exchange        string
	TransactionType string
	OrderType       string
	Product         string
	Variety         string
	Status          string
	Quantity        int
	FilledQuantity  int
	Price           float64
	TriggerPrice    float64
	Tag             string
	OrderTimestamp  time.Time
}

// Quote is a last-traded-price snapshot, returned from LTP polling.
type Quote struct {
	InstrumentToken uint32
	LastPrice       float64
}

// Tick is one parsed price update delivered by a Ticker subscription.
type Tick struct {
	InstrumentToken uint32
	LastPrice       float64
	Tradable        bool
	Timestamp       time.Time
}

// Transaction type and product constants used when building
// PlaceOrderParams; kept here so executor code never hardcodes broker
// wire strings.
const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"

	VarietyRegular = "regular"
)

// IsSystemTag reports whether an order tag marks it as engine-generated
// (TP_, SL_, or SQ_ prefixed, see the exit-order tag contract), independent
// of which broker reported it. The Position Monitor uses this to tell
// system-placed exit orders apart from manually placed ones for
// observability only — it never drives trigger logic.
func IsSystemTag(tag string) bool {
	return strings.HasPrefix(tag, "TP_") || strings.HasPrefix(tag, "SL_") || strings.HasPrefix(tag, "SQ_")
}
