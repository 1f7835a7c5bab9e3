package kite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// ReconnectConfig tunes the ticker's reconnect loop: exponential backoff
// doubling from InitialDelay up to MaxDelay, bounded by MaxAttempts.
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// DefaultReconnectConfig matches the streaming reconnect contract: 1s
// doubling to a 60s ceiling, 50 attempts (hard cap 300), 30s ping / 10s
// pong timeout.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  50,
		PingInterval: 30 * time.Second,
		PongTimeout:  10 * time.Second,
	}
}

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateReconnecting
	stateClosed
)

type subscription struct {
	tokens []uint32
	mode   broker.TickMode
}

// Ticker implements broker.Ticker against Kite Connect's streaming
// websocket, reconnecting with exponential backoff and replaying
// subscriptions after every reconnect.
type Ticker struct {
	apiKey      string
	accessToken string
	wsURL       string
	cfg         ReconnectConfig
	log         *applog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	state      int32 // atomic connState
	retryCount int32 // atomic

	closeCh chan struct{}
	closed  sync.Once

	subsMu sync.Mutex
	subs   map[broker.TickMode]map[uint32]struct{}

	cbMu        sync.RWMutex
	onTicks     func([]broker.Tick)
	onConnect   func()
	onClose     func(int, string)
	onError     func(error)
	onReconnect func(int)
}

// NewTicker builds a Ticker authenticated for apiKey/accessToken against
// wsURL (the Kite streaming endpoint).
func NewTicker(wsURL, apiKey, accessToken string, cfg ReconnectConfig, log *applog.Logger) *Ticker {
	if log == nil {
		log = applog.L()
	}
	return &Ticker{
		apiKey:      apiKey,
		accessToken: accessToken,
		wsURL:       wsURL,
		cfg:         cfg,
		log:         log.WithComponent("kite_ticker"),
		closeCh:     make(chan struct{}),
		subs:        make(map[broker.TickMode]map[uint32]struct{}),
	}
}

func (t *Ticker) OnTicks(fn func([]broker.Tick))         { t.cbMu.Lock(); t.onTicks = fn; t.cbMu.Unlock() }
func (t *Ticker) OnConnect(fn func())                    { t.cbMu.Lock(); t.onConnect = fn; t.cbMu.Unlock() }
func (t *Ticker) OnClose(fn func(int, string))           { t.cbMu.Lock(); t.onClose = fn; t.cbMu.Unlock() }
func (t *Ticker) OnError(fn func(error))                 { t.cbMu.Lock(); t.onError = fn; t.cbMu.Unlock() }
func (t *Ticker) OnReconnect(fn func(int))               { t.cbMu.Lock(); t.onReconnect = fn; t.cbMu.Unlock() }

func (t *Ticker) IsConnected() bool {
	return connState(atomic.LoadInt32(&t.state)) == stateConnected
}

// Connect dials the streaming endpoint and starts the read/ping loops in
// the background. It returns once the first connection attempt succeeds
// or ctx is done.
func (t *Ticker) Connect(ctx context.Context) error {
	if err := t.dial(ctx); err != nil {
		return err
	}
	go t.readLoop()
	go t.pingLoop()
	return nil
}

func (t *Ticker) dial(ctx context.Context) error {
	atomic.StoreInt32(&t.state, int32(stateConnecting))

	url := fmt.Sprintf("%s?api_key=%s&access_token=%s", t.wsURL, t.apiKey, t.accessToken)
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		atomic.StoreInt32(&t.state, int32(stateDisconnected))
		return broker.NewError(broker.KindNetwork, "kite", "ticker connect failed", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	// A pong that does not arrive within PongTimeout of the next ping lets
	// the read deadline lapse, so readLoop sees an error and reconnects.
	if readTimeout := t.cfg.PingInterval + t.cfg.PongTimeout; readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	atomic.StoreInt32(&t.state, int32(stateConnected))
	atomic.StoreInt32(&t.retryCount, 0)

	t.resubscribeAll()

	t.cbMu.RLock()
	onConnect := t.onConnect
	t.cbMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}
	return nil
}

func (t *Ticker) readLoop() {
	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		t.connMu.Lock()
		conn := t.conn
		t.connMu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleDisconnect(err)
			if !t.reconnectLoop() {
				return
			}
			continue
		}

		ticks, err := decodeTicks(data)
		if err != nil {
			t.cbMu.RLock()
			onError := t.onError
			t.cbMu.RUnlock()
			if onError != nil {
				onError(broker.NewError(broker.KindData, "kite", "tick decode failed", err))
			}
			continue
		}
		if len(ticks) == 0 {
			continue
		}

		t.cbMu.RLock()
		onTicks := t.onTicks
		t.cbMu.RUnlock()
		if onTicks != nil {
			onTicks(ticks)
		}
	}
}

func (t *Ticker) pingLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closeCh:
			return
		case <-ticker.C:
			t.connMu.Lock()
			conn := t.conn
			t.connMu.Unlock()
			if conn == nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.handleDisconnect(err)
			}
		}
	}
}

func (t *Ticker) handleDisconnect(err error) {
	atomic.StoreInt32(&t.state, int32(stateReconnecting))
	t.cbMu.RLock()
	onClose := t.onClose
	onError := t.onError
	t.cbMu.RUnlock()
	if onError != nil && err != nil {
		onError(broker.NewError(broker.KindNetwork, "kite", "ticker disconnected", err))
	}
	if onClose != nil {
		onClose(0, fmt.Sprintf("%v", err))
	}
}

// reconnectLoop retries with doubling backoff until MaxAttempts (never
// more than 300; 300 when MaxAttempts <= 0) is exhausted or the Ticker is
// closed. Returns false when it gives up.
func (t *Ticker) reconnectLoop() bool {
	const hardCap = 300
	maxAttempts := t.cfg.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > hardCap {
		maxAttempts = hardCap
	}
	delay := t.cfg.InitialDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-t.closeCh:
			return false
		case <-time.After(delay):
		}

		atomic.StoreInt32(&t.retryCount, int32(attempt))
		t.cbMu.RLock()
		onReconnect := t.onReconnect
		t.cbMu.RUnlock()
		if onReconnect != nil {
			onReconnect(attempt)
		}

		if err := t.dial(context.Background()); err == nil {
			return true
		}

		delay *= 2
		if delay > t.cfg.MaxDelay {
			delay = t.cfg.MaxDelay
		}
	}
	t.log.Error("ticker reconnect attempts exhausted", applog.Int("attempts", maxAttempts))
	return false
}

func (t *Ticker) resubscribeAll() {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for mode, tokens := range t.subs {
		if len(tokens) == 0 {
			continue
		}
		list := make([]uint32, 0, len(tokens))
		for tok := range tokens {
			list = append(list, tok)
		}
		_ = t.send(subscribeMessage(list))
		_ = t.send(modeMessage(mode, list))
	}
}

func (t *Ticker) Subscribe(tokens []uint32) error {
	t.subsMu.Lock()
	if t.subs[broker.ModeLTP] == nil {
		t.subs[broker.ModeLTP] = make(map[uint32]struct{})
	}
	for _, tok := range tokens {
		t.subs[broker.ModeLTP][tok] = struct{}{}
	}
	t.subsMu.Unlock()
	return t.send(subscribeMessage(tokens))
}

func (t *Ticker) Unsubscribe(tokens []uint32) error {
	t.subsMu.Lock()
	for _, set := range t.subs {
		for _, tok := range tokens {
			delete(set, tok)
		}
	}
	t.subsMu.Unlock()
	return t.send(unsubscribeMessage(tokens))
}

func (t *Ticker) SetMode(mode broker.TickMode, tokens []uint32) error {
	t.subsMu.Lock()
	for _, set := range t.subs {
		for _, tok := range tokens {
			delete(set, tok)
		}
	}
	if t.subs[mode] == nil {
		t.subs[mode] = make(map[uint32]struct{})
	}
	for _, tok := range tokens {
		t.subs[mode][tok] = struct{}{}
	}
	t.subsMu.Unlock()
	return t.send(modeMessage(mode, tokens))
}

func (t *Ticker) send(msg []byte) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("kite: ticker not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *Ticker) Close() error {
	t.closed.Do(func() {
		close(t.closeCh)
	})
	atomic.StoreInt32(&t.state, int32(stateClosed))
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

type wireMessage struct {
	Action string        `json:"a"`
	Value  interface{}   `json:"v"`
}

func subscribeMessage(tokens []uint32) []byte {
	b, _ := json.Marshal(wireMessage{Action: "subscribe", Value: tokens})
	return b
}

func unsubscribeMessage(tokens []uint32) []byte {
	b, _ := json.Marshal(wireMessage{Action: "unsubscribe", Value: tokens})
	return b
}

func modeMessage(mode broker.TickMode, tokens []uint32) []byte {
	b, _ := json.Marshal(wireMessage{Action: "mode", Value: []interface{}{string(mode), tokens}})
	return b
}
