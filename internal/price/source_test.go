package price

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
)

type fakeLTPClient struct {
	broker.Client
	mu     sync.Mutex
	quotes map[string]broker.Quote
	calls  int
}

func (f *fakeLTPClient) LTP(ctx context.Context, keys []string) (map[string]broker.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]broker.Quote, len(keys))
	for _, k := range keys {
		if q, ok := f.quotes[k]; ok {
			out[k] = q
		}
	}
	return out, nil
}

type fakeTicker struct {
	mu        sync.Mutex
	connected bool
	subbed    map[uint32]struct{}
	onTicks   func([]broker.Tick)
}

func (f *fakeTicker) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}
func (f *fakeTicker) Close() error { f.mu.Lock(); f.connected = false; f.mu.Unlock(); return nil }
func (f *fakeTicker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakeTicker) Subscribe(tokens []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tokens {
		f.subbed[t] = struct{}{}
	}
	return nil
}
func (f *fakeTicker) Unsubscribe(tokens []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tokens {
		delete(f.subbed, t)
	}
	return nil
}
func (f *fakeTicker) SetMode(mode broker.TickMode, tokens []uint32) error { return nil }
func (f *fakeTicker) OnTicks(fn func([]broker.Tick))                     { f.onTicks = fn }
func (f *fakeTicker) OnConnect(fn func())                                {}
func (f *fakeTicker) OnClose(fn func(int, string))                       {}
func (f *fakeTicker) OnError(fn func(error))                             {}
func (f *fakeTicker) OnReconnect(fn func(int))                           {}

func TestSource_PollingFallback_UpdatesCacheAndNotifies(t *testing.T) {
	client := &fakeLTPClient{quotes: map[string]broker.Quote{
		"NSE:INFY": {InstrumentToken: 101, LastPrice: 1500.25},
	}}
	cache := NewCache()
	src := NewSource(client, nil, cache, Config{PricePollInterval: 10 * time.Millisecond}, nil)

	var got float64
	var mu sync.Mutex
	src.OnPriceUpdate(func(token uint32, price float64) {
		mu.Lock()
		got = price
		mu.Unlock()
	})

	src.Track(101, "NSE:INFY")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.Start(ctx)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if p, ok := cache.Get(101); ok && p == 1500.25 {
			mu.Lock()
			g := got
			mu.Unlock()
			if g == 1500.25 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected cache to be updated by polling fallback")
}

func TestSource_StreamingTicks_UpdateCache(t *testing.T) {
	client := &fakeLTPClient{quotes: map[string]broker.Quote{}}
	ticker := &fakeTicker{subbed: make(map[uint32]struct{})}
	cache := NewCache()
	src := NewSource(client, ticker, cache, Config{PricePollInterval: time.Hour}, nil)

	src.Track(202, "NFO:NIFTY24AUGFUT")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.Start(ctx)

	if !ticker.IsConnected() {
		t.Fatal("expected ticker to be connected after Start")
	}

	ticker.onTicks([]broker.Tick{{InstrumentToken: 202, LastPrice: 99.5, Tradable: true}})

	p, ok := cache.Get(202)
	if !ok || p != 99.5 {
		t.Fatalf("expected cache[202] = 99.5, got %v ok=%v", p, ok)
	}
}

func TestSource_StreamingTicks_NonTradableIgnored(t *testing.T) {
	client := &fakeLTPClient{quotes: map[string]broker.Quote{}}
	ticker := &fakeTicker{subbed: make(map[uint32]struct{})}
	cache := NewCache()
	src := NewSource(client, ticker, cache, Config{PricePollInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.Start(ctx)

	ticker.onTicks([]broker.Tick{{InstrumentToken: 303, LastPrice: 1.0, Tradable: false}})

	if _, ok := cache.Get(303); ok {
		t.Fatal("expected non-tradable tick to be dropped")
	}
}

func TestCache_GetOrFallback(t *testing.T) {
	cache := NewCache()
	if got := cache.GetOrFallback(1, 42.0); got != 42.0 {
		t.Errorf("expected fallback 42.0, got %v", got)
	}
	cache.Set(1, 10.0)
	if got := cache.GetOrFallback(1, 42.0); got != 10.0 {
		t.Errorf("expected cached 10.0, got %v", got)
	}
}

func TestSource_Untrack_RemovesFromCache(t *testing.T) {
	cache := NewCache()
	cache.Set(5, 100.0)
	client := &fakeLTPClient{}
	src := NewSource(client, nil, cache, DefaultConfig(), nil)
	src.Track(5, "NSE:X")
	src.Untrack(5)
	if _, ok := cache.Get(5); ok {
		t.Fatal("expected Untrack to remove cached price")
	}
}
