package liveprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/pkg/logger"
)

// WebsocketConfig configures a WebsocketProvider connection, grounded on
// internal/data/websocket.go's DefaultWebSocketConfig.
type WebsocketConfig struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultWebsocketConfig fills in the teacher's defaults for url.
func DefaultWebsocketConfig(url string) WebsocketConfig {
	return WebsocketConfig{
		URL:               url,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// wireBar is the wire format a real venue feed would send; field names are
// provider-specific in practice, kept minimal here.
type wireBar struct {
	Symbol    string  `json:"symbol"`
	Interval  string  `json:"interval"`
	Timestamp int64   `json:"ts"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// WebsocketProvider implements Provider over a single gorilla/websocket
// connection, grounded on internal/data/websocket.go's
// Connect/Subscribe/Unsubscribe/Close/IsConnected shape and reconnect
// posture, generalized from raw ticks to typed Bar messages filtered by
// each symbol's subscribed intervals.
type WebsocketProvider struct {
	cfg  WebsocketConfig
	name string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	subs      map[string]map[interval.Interval]bool
	barChans  map[string]chan models.Bar
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWebsocketProvider creates a provider bound to one venue feed URL.
func NewWebsocketProvider(name string, cfg WebsocketConfig) *WebsocketProvider {
	return &WebsocketProvider{
		cfg:      cfg,
		name:     name,
		subs:     make(map[string]map[interval.Interval]bool),
		barChans: make(map[string]chan models.Bar),
	}
}

func (p *WebsocketProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return ErrAlreadyConnected
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("liveprovider: dialing %s: %w", p.cfg.URL, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	p.conn = conn
	p.cancel = cancel
	p.connected = true

	p.wg.Add(1)
	go p.readLoop(readCtx)

	logger.Info("liveprovider: websocket connected", logger.String("provider", p.name), logger.String("url", p.cfg.URL))
	return nil
}

func (p *WebsocketProvider) Subscribe(ctx context.Context, symbol string, intervals []interval.Interval) (<-chan models.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrNotConnected
	}
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	set, ok := p.subs[symbol]
	if !ok {
		set = make(map[interval.Interval]bool)
		p.subs[symbol] = set
	}
	for _, iv := range intervals {
		set[iv] = true
	}

	ch, ok := p.barChans[symbol]
	if !ok {
		ch = make(chan models.Bar, 64)
		p.barChans[symbol] = ch
	}

	msg := map[string]interface{}{"action": "subscribe", "symbol": symbol}
	if err := p.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("liveprovider: sending subscribe for %s: %w", symbol, err)
	}
	return ch, nil
}

// SubscribeQuotes is not wired for the websocket provider: the venue feed
// this adapter targets only streams trades/bars.
func (p *WebsocketProvider) SubscribeQuotes(ctx context.Context, symbol string) (<-chan models.Tick, error) {
	return nil, nil
}

func (p *WebsocketProvider) Unsubscribe(ctx context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return ErrNotConnected
	}
	delete(p.subs, symbol)
	return p.conn.WriteJSON(map[string]interface{}{"action": "unsubscribe", "symbol": symbol})
}

// RetryBars is a separate request/response call over the same socket,
// distinct from the push subscription stream.
func (p *WebsocketProvider) RetryBars(ctx context.Context, symbol string, iv interval.Interval, start, end time.Time) ([]models.Bar, error) {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	if !connected {
		return nil, ErrNotConnected
	}
	return nil, fmt.Errorf("liveprovider: retry-bars request/response not implemented for this venue feed")
}

func (p *WebsocketProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	p.connected = false
	if p.cancel != nil {
		p.cancel()
	}
	err := p.conn.Close()
	p.wg.Wait()
	for _, ch := range p.barChans {
		close(ch)
	}
	return err
}

func (p *WebsocketProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *WebsocketProvider) GetName() string { return p.name }

func (p *WebsocketProvider) readLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var raw wireBar
		if err := p.conn.ReadJSON(&raw); err != nil {
			logger.Warn("liveprovider: websocket read failed", logger.String("provider", p.name), logger.ErrorField(err))
			return
		}

		iv, err := interval.Parse(raw.Interval)
		if err != nil {
			logger.Warn("liveprovider: dropping bar with unparseable interval",
				logger.String("provider", p.name), logger.String("interval", raw.Interval))
			continue
		}

		p.mu.RLock()
		wanted := p.subs[raw.Symbol][iv]
		ch := p.barChans[raw.Symbol]
		p.mu.RUnlock()
		if !wanted || ch == nil {
			continue
		}

		bar := models.Bar{
			Symbol:    raw.Symbol,
			Timestamp: time.Unix(0, raw.Timestamp).UTC(),
			Open:      raw.Open,
			High:      raw.High,
			Low:       raw.Low,
			Close:     raw.Close,
			Volume:    raw.Volume,
		}
		select {
		case ch <- bar:
		case <-ctx.Done():
			return
		}
	}
}
