package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/provisioning"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/barforge/sessionengine/pkg/logger"
	"go.uber.org/zap"
)

// barQueue is one symbol's priming queue for backtest streaming: the day's
// bars for its base interval, read once from the historical source in
// phase 3, consumed in order as simulated time advances.
type barQueue struct {
	bars   []models.Bar
	cursor int
}

func (q *barQueue) dueBefore(cutoff time.Time) []models.Bar {
	var due []models.Bar
	for q.cursor < len(q.bars) && !q.bars[q.cursor].Timestamp.After(cutoff) {
		due = append(due, q.bars[q.cursor])
		q.cursor++
	}
	return due
}

func (q *barQueue) nextTimestamp() (time.Time, bool) {
	if q.cursor >= len(q.bars) {
		return time.Time{}, false
	}
	return q.bars[q.cursor].Timestamp, true
}

// phase3 primes the backtest queues from the columnar store, or subscribes
// to the live provider, for every successfully provisioned symbol.
func (c *Coordinator) phase3(ctx context.Context, symbols []string, sess timeservice.Session) (map[string]*barQueue, error) {
	if c.cfg.Mode == ModeLive {
		for _, symbol := range symbols {
			data := c.deps.Store.GetSymbolData(symbol, true)
			if data == nil {
				continue
			}
			if err := c.subscribeLive(ctx, symbol, data.BaseInterval); err != nil {
				return nil, fmt.Errorf("coordinator: subscribing %s: %w", symbol, err)
			}
		}
		return nil, nil
	}

	queues := make(map[string]*barQueue, len(symbols))
	for _, symbol := range symbols {
		data := c.deps.Store.GetSymbolData(symbol, true)
		if data == nil {
			continue
		}
		bars, err := c.deps.Historical.ReadBars(ctx, symbol, data.BaseInterval, sess.Open, sess.Close)
		if err != nil {
			logger.Get().Warn("coordinator: priming bars failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		queues[symbol] = &barQueue{bars: bars}
	}
	return queues, nil
}

func earliestPending(queues map[string]*barQueue) (time.Time, bool) {
	var best time.Time
	found := false
	for _, q := range queues {
		ts, ok := q.nextTimestamp()
		if !ok {
			continue
		}
		if !found || ts.Before(best) {
			best, found = ts, true
		}
	}
	return best, found
}

func (c *Coordinator) deliverDue(ctx context.Context, queues map[string]*barQueue, cutoff time.Time) {
	for symbol, q := range queues {
		for _, bar := range q.dueBefore(cutoff) {
			c.deliverBar(ctx, symbol, bar)
		}
	}
}

// drainPending processes every mid-session insertion request currently
// queued, in the gap between streaming ticks, per SPEC_FULL.md §4.9.
func (c *Coordinator) drainPending(ctx context.Context, sess timeservice.Session, simTime time.Time, queues map[string]*barQueue) {
	for {
		select {
		case req := <-c.pending:
			req.resp <- c.handleBacktestInsertion(ctx, req.symbol, sess, simTime, queues)
		default:
			return
		}
	}
}

// handleBacktestInsertion is the backtest mid-session insertion flow:
// deactivate, provision, prime the symbol's full-day queue from the
// historical source, catch it up through every bar preceding simTime,
// register the (now partially consumed) queue so later ticks keep
// streaming its remaining bars, then reactivate. The clock never advances
// while this runs.
func (c *Coordinator) handleBacktestInsertion(ctx context.Context, symbol string, sess timeservice.Session, simTime time.Time, queues map[string]*barQueue) error {
	c.deps.Store.DeactivateSession()
	defer c.deps.Store.ActivateSession()

	req, err := c.deps.Pipeline.AddSymbol(ctx, symbol, provisioning.SourceStrategy, c.cfg.requirementInput(), c.cfg.Session.HistoricalDays)
	if err != nil {
		return err
	}
	if !req.CanProceed {
		return fmt.Errorf("coordinator: %s failed provisioning: %v", symbol, req.ValidationErrors)
	}

	data := c.deps.Store.GetSymbolData(symbol, true)
	if data == nil {
		return models.ErrSymbolNotFound
	}
	if c.deps.Historical == nil {
		return nil
	}

	bars, err := c.deps.Historical.ReadBars(ctx, symbol, data.BaseInterval, sess.Open, sess.Close)
	if err != nil {
		return fmt.Errorf("coordinator: catch-up read for %s: %w", symbol, err)
	}
	q := &barQueue{bars: bars}
	for _, bar := range q.dueBefore(simTime) {
		c.deliverBar(ctx, symbol, bar)
	}
	queues[symbol] = q
	return nil
}

// streamClockDriven simulates a clock ticking in one-market-second
// increments, sleeping 1/speed_multiplier real seconds per tick, and never
// lets simulated time exceed market close.
func (c *Coordinator) streamClockDriven(ctx context.Context, sess timeservice.Session, queues map[string]*barQueue) error {
	sim := sess.Open
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		c.deps.Calendar.SetSimulatedTime(sim)
		c.deliverDue(ctx, queues, sim)
		c.drainPending(ctx, sess, sim, queues)

		if !sim.Before(sess.Close) {
			return nil
		}

		next := sim.Add(time.Second)
		if next.After(sess.Close) {
			next = sess.Close
		}
		sim = next

		sleepFor := time.Duration(float64(time.Second) / c.cfg.SpeedMultiplier)
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		}
	}
}

// streamDataDriven jumps simulated time directly to the next queued bar's
// timestamp, with no sleep.
func (c *Coordinator) streamDataDriven(ctx context.Context, sess timeservice.Session, queues map[string]*barQueue) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		next, ok := earliestPending(queues)
		if !ok || next.After(sess.Close) {
			c.deps.Calendar.SetSimulatedTime(sess.Close)
			c.drainPending(ctx, sess, sess.Close, queues)
			return nil
		}

		c.deps.Calendar.SetSimulatedTime(next)
		c.deliverDue(ctx, queues, next)
		c.drainPending(ctx, sess, next, queues)
	}
}

// streamLive is driven by provider arrival rather than a simulated clock:
// every bar forwarded from a subscription goroutine is delivered as it
// arrives, and the day ends when wall-clock time passes market close.
func (c *Coordinator) streamLive(ctx context.Context, sess timeservice.Session) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case sb := <-c.liveBarCh:
			c.deliverBar(ctx, sb.symbol, sb.bar)
		case <-ticker.C:
			if !c.deps.Calendar.CurrentTime().Before(sess.Close) {
				return nil
			}
		}
	}
}

// addSymbolLive is the live mid-session insertion flow: the call blocks the
// caller while provisioning runs, then the symbol simply joins the live
// subscription set and flows through the normal arrival path. No catch-up
// is needed — there is nothing queued to catch up on.
func (c *Coordinator) addSymbolLive(ctx context.Context, symbol string) error {
	req, err := c.deps.Pipeline.AddSymbol(ctx, symbol, provisioning.SourceStrategy, c.cfg.requirementInput(), c.cfg.Session.HistoricalDays)
	if err != nil {
		return err
	}
	if !req.CanProceed {
		return fmt.Errorf("coordinator: %s failed provisioning: %v", symbol, req.ValidationErrors)
	}
	data := c.deps.Store.GetSymbolData(symbol, true)
	if data == nil {
		return models.ErrSymbolNotFound
	}
	return c.subscribeLive(ctx, symbol, data.BaseInterval)
}

func (c *Coordinator) subscribeLive(ctx context.Context, symbol string, base interval.Interval) error {
	if !c.deps.Live.IsConnected() {
		if err := c.deps.Live.Connect(ctx); err != nil {
			return err
		}
	}
	ch, err := c.deps.Live.Subscribe(ctx, symbol, []interval.Interval{base})
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.liveCancel[symbol] = cancel
	c.mu.Unlock()

	go c.forwardLiveBars(subCtx, symbol, ch)

	if qch, err := c.deps.Live.SubscribeQuotes(ctx, symbol); err == nil && qch != nil {
		go c.forwardLiveQuotes(subCtx, symbol, qch)
	}
	return nil
}

func (c *Coordinator) forwardLiveBars(ctx context.Context, symbol string, ch <-chan models.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-ch:
			if !ok {
				return
			}
			select {
			case c.liveBarCh <- symbolBar{symbol: symbol, bar: bar}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Coordinator) forwardLiveQuotes(ctx context.Context, symbol string, ch <-chan models.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			_ = c.deps.Store.SetQuote(symbol, storeQuoteFromTick(t))
		}
	}
}

func (c *Coordinator) unsubscribeAllLive(ctx context.Context) {
	c.mu.Lock()
	cancels := c.liveCancel
	c.liveCancel = make(map[string]context.CancelFunc)
	c.mu.Unlock()

	for symbol, cancel := range cancels {
		cancel()
		_ = c.deps.Live.Unsubscribe(ctx, symbol)
	}
}
