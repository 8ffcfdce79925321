package liveprovider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
)

// MockProvider generates synthetic bars for subscribed symbols, grounded on
// the teacher's internal/data/mock_provider.go random-walk tick generator,
// adapted to emit Bar values per subscribed interval instead of raw ticks.
type MockProvider struct {
	mu         sync.RWMutex
	connected  bool
	subs       map[string][]interval.Interval
	barChans   map[string]chan models.Bar
	basePrices map[string]float64
	cancel     map[string]context.CancelFunc
	wg         sync.WaitGroup
}

// NewMockProvider creates an unconnected MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		subs:       make(map[string][]interval.Interval),
		barChans:   make(map[string]chan models.Bar),
		basePrices: make(map[string]float64),
		cancel:     make(map[string]context.CancelFunc),
	}
}

func (m *MockProvider) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

func (m *MockProvider) Subscribe(ctx context.Context, symbol string, intervals []interval.Interval) (<-chan models.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, ErrNotConnected
	}
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	m.subs[symbol] = intervals
	if _, ok := m.basePrices[symbol]; !ok {
		m.basePrices[symbol] = 100.0 + rand.Float64()*200.0
	}

	ch, ok := m.barChans[symbol]
	if !ok {
		ch = make(chan models.Bar, 64)
		m.barChans[symbol] = ch
	}

	subCtx, cancel := context.WithCancel(ctx)
	m.cancel[symbol] = cancel
	m.wg.Add(1)
	go m.generate(subCtx, symbol, intervals, ch)

	return ch, nil
}

// SubscribeQuotes is unsupported: the mock provider exercises bar delivery
// only, matching the backtest quote-synthesis path (see Design Notes).
func (m *MockProvider) SubscribeQuotes(ctx context.Context, symbol string) (<-chan models.Tick, error) {
	return nil, nil
}

func (m *MockProvider) Unsubscribe(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if cancel, ok := m.cancel[symbol]; ok {
		cancel()
		delete(m.cancel, symbol)
	}
	delete(m.subs, symbol)
	return nil
}

// RetryBars synthesizes the requested window on demand rather than
// actually tracking gaps; sufficient for exercising the retry call shape
// in tests without a real provider.
func (m *MockProvider) RetryBars(ctx context.Context, symbol string, iv interval.Interval, start, end time.Time) ([]models.Bar, error) {
	m.mu.RLock()
	base := m.basePrices[symbol]
	m.mu.RUnlock()
	if base == 0 {
		base = 100.0
	}

	seconds, err := iv.Seconds(nil)
	if err != nil || seconds <= 0 {
		seconds = 60
	}
	step := time.Duration(seconds) * time.Second

	var bars []models.Bar
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		price := base + (rand.Float64()-0.5)*2
		bars = append(bars, models.Bar{
			Symbol: symbol, Timestamp: ts,
			Open: price, High: price + 0.5, Low: price - 0.5, Close: price,
			Volume: int64(rand.Intn(1000) + 100),
		})
	}
	return bars, nil
}

func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}
	for _, cancel := range m.cancel {
		cancel()
	}
	m.connected = false
	m.wg.Wait()
	for _, ch := range m.barChans {
		close(ch)
	}
	return nil
}

func (m *MockProvider) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MockProvider) GetName() string { return "mock" }

func (m *MockProvider) generate(ctx context.Context, symbol string, intervals []interval.Interval, ch chan models.Bar) {
	defer m.wg.Done()
	if len(intervals) == 0 {
		return
	}
	base := intervals[0]
	seconds, err := base.Seconds(nil)
	if err != nil || seconds <= 0 {
		seconds = 1
	}
	ticker := time.NewTicker(time.Duration(seconds) * time.Millisecond) // scaled down for fast tests
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			price := m.basePrices[symbol] + (rand.Float64()-0.5)*2
			if price < 1 {
				price = 1
			}
			m.basePrices[symbol] = price
			m.mu.Unlock()

			bar := models.Bar{
				Symbol: symbol, Timestamp: now.UTC(),
				Open: price, High: price + 0.5, Low: price - 0.5, Close: price,
				Volume: int64(rand.Intn(1000) + 100),
			}
			select {
			case ch <- bar:
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}
