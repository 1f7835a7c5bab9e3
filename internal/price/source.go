package price

import (
	"context"
	"sync"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// Config tunes the polling fallback's cadence. The streaming back-end's
// reconnect behavior is tuned separately, via the Ticker implementation's
// own ReconnectConfig.
type Config struct {
	PricePollInterval time.Duration
}

// DefaultConfig matches the polling fallback contract: 1s between LTP
// sweeps.
func DefaultConfig() Config {
	return Config{PricePollInterval: 1 * time.Second}
}

type trackedToken struct {
	key string // "exchange:tradingsymbol", used for the LTP polling fallback
}

// Source owns a Cache and keeps it current via a streaming Ticker when one
// is available and connected, falling back to REST LTP polling otherwise.
// A nil Ticker runs polling only.
type Source struct {
	client broker.Client
	ticker broker.Ticker
	cache  *Cache
	cfg    Config
	log    *applog.Logger

	mu      sync.Mutex
	tracked map[uint32]trackedToken

	updateMu sync.RWMutex
	onUpdate func(token uint32, price float64)
}

// NewSource builds a Source over cache, driven by client's LTP endpoint and
// optionally ticker's streaming feed. ticker may be nil.
func NewSource(client broker.Client, ticker broker.Ticker, cache *Cache, cfg Config, log *applog.Logger) *Source {
	if log == nil {
		log = applog.L()
	}
	return &Source{
		client:  client,
		ticker:  ticker,
		cache:   cache,
		cfg:     cfg,
		log:     log.WithComponent("price_source"),
		tracked: make(map[uint32]trackedToken),
	}
}

// OnPriceUpdate registers the callback invoked whenever the cache is
// updated, streaming or polled. Typically wired to Trigger Evaluation.
func (s *Source) OnPriceUpdate(fn func(token uint32, price float64)) {
	s.updateMu.Lock()
	s.onUpdate = fn
	s.updateMu.Unlock()
}

func (s *Source) notify(token uint32, price float64) {
	s.updateMu.RLock()
	fn := s.onUpdate
	s.updateMu.RUnlock()
	if fn != nil {
		fn(token, price)
	}
}

// Track registers token (identified by "exchange:tradingsymbol" key) as one
// the Price Source should keep updated: subscribed on the streaming
// back-end if connected, and included in the next poll sweep regardless.
func (s *Source) Track(token uint32, key string) {
	s.mu.Lock()
	s.tracked[token] = trackedToken{key: key}
	s.mu.Unlock()

	if s.ticker != nil && s.ticker.IsConnected() {
		if err := s.ticker.Subscribe([]uint32{token}); err != nil {
			s.log.Warn("ticker subscribe failed", applog.Err(err))
			return
		}
		if err := s.ticker.SetMode(broker.ModeLTP, []uint32{token}); err != nil {
			s.log.Warn("ticker set mode failed", applog.Err(err))
		}
	}
}

// Untrack stops tracking token, unsubscribing from the streaming back-end
// if connected, and drops its cached price.
func (s *Source) Untrack(token uint32) {
	s.mu.Lock()
	delete(s.tracked, token)
	s.mu.Unlock()

	if s.ticker != nil && s.ticker.IsConnected() {
		if err := s.ticker.Unsubscribe([]uint32{token}); err != nil {
			s.log.Warn("ticker unsubscribe failed", applog.Err(err))
		}
	}
	s.cache.Delete(token)
}

// Start connects the streaming back-end (if any) and launches the polling
// fallback loop. It returns once the streaming connection attempt (if any)
// has been made; both back-ends then run until ctx is done.
func (s *Source) Start(ctx context.Context) {
	if s.ticker != nil {
		s.ticker.OnTicks(s.handleTicks)
		s.ticker.OnConnect(func() {
			s.log.Info("price ticker connected")
		})
		s.ticker.OnClose(func(code int, reason string) {
			s.log.Warn("price ticker closed, polling fallback active", applog.String("reason", reason))
		})
		s.ticker.OnError(func(err error) {
			s.log.Warn("price ticker error", applog.Err(err))
		})
		s.ticker.OnReconnect(func(attempt int) {
			s.log.Info("price ticker reconnecting", applog.Int("attempt", attempt))
		})

		if err := s.ticker.Connect(ctx); err != nil {
			s.log.Warn("price ticker initial connect failed, starting on polling fallback", applog.Err(err))
		}
	}

	go s.pollLoop(ctx)
}

func (s *Source) handleTicks(ticks []broker.Tick) {
	for _, tick := range ticks {
		if !tick.Tradable {
			continue
		}
		s.cache.Set(tick.InstrumentToken, tick.LastPrice)
		s.notify(tick.InstrumentToken, tick.LastPrice)
	}
}

// pollLoop runs for the Source's lifetime. On each tick it polls LTP for
// every tracked token unless the streaming back-end is currently connected,
// in which case streaming ticks are the source of truth and polling would
// only waste the broker's rate limit budget.
func (s *Source) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PricePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ticker != nil && s.ticker.IsConnected() {
				continue
			}
			s.pollOnce(ctx)
		}
	}
}

func (s *Source) pollOnce(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.tracked))
	keyToToken := make(map[string]uint32, len(s.tracked))
	for token, tt := range s.tracked {
		keys = append(keys, tt.key)
		keyToToken[tt.key] = token
	}
	s.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	quotes, err := s.client.LTP(ctx, keys)
	if err != nil {
		s.log.Warn("ltp poll failed", applog.Err(err))
		return
	}

	for key, quote := range quotes {
		token, ok := keyToToken[key]
		if !ok {
			token = quote.InstrumentToken
		}
		s.cache.Set(token, quote.LastPrice)
		s.notify(token, quote.LastPrice)
	}
}

// IsStreaming reports whether the streaming back-end is currently the
// active source (connected). False means the polling fallback is carrying
// the load, whether or not a Ticker was ever configured.
func (s *Source) IsStreaming() bool {
	return s.ticker != nil && s.ticker.IsConnected()
}
