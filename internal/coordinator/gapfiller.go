package coordinator

import (
	"context"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/pkg/logger"
	"go.uber.org/zap"
)

func storeQuoteFromTick(t models.Tick) store.QuoteState {
	return store.QuoteState{Bid: t.Bid, Ask: t.Ask, LastUpdate: t.Timestamp}
}

// maybeStartGapFiller launches a background retry loop for symbol's iv
// interval when quality shows gaps after a bar arrival and gap filling is
// configured. Only live streams use it — backtest gaps mean the historical
// source is genuinely missing data, which a retry against the same source
// cannot repair. Only one retry loop runs per symbol at a time.
func (c *Coordinator) maybeStartGapFiller(ctx context.Context, symbol string, iv interval.Interval) {
	cfg := c.cfg.Session.GapFiller
	if !cfg.Enabled || c.cfg.Mode != ModeLive {
		return
	}
	data := c.deps.Store.GetSymbolData(symbol, true)
	if data == nil {
		return
	}
	bd, ok := data.Bars[iv]
	if !ok || len(bd.Gaps) == 0 {
		return
	}

	c.mu.Lock()
	if c.gapFillersActive[symbol] {
		c.mu.Unlock()
		return
	}
	c.gapFillersActive[symbol] = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.gapFillersActive, symbol)
			c.mu.Unlock()
		}()
		c.runGapFiller(ctx, symbol, iv, cfg)
	}()
}

func (c *Coordinator) runGapFiller(ctx context.Context, symbol string, iv interval.Interval, cfg GapFillerConfig) {
	log := logger.Get().With(zap.String("symbol", symbol), zap.String("interval", iv.String()))

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		data := c.deps.Store.GetSymbolData(symbol, true)
		if data == nil {
			return
		}
		bd, ok := data.Bars[iv]
		if !ok || len(bd.Gaps) == 0 {
			return
		}

		filled := false
		for _, gap := range bd.Gaps {
			bars, err := c.deps.Live.RetryBars(ctx, symbol, iv, gap.Start, gap.End)
			if err != nil {
				log.Warn("gap filler: retry failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			for _, bar := range bars {
				if err := c.deps.Store.InsertBaseBarSorted(symbol, bar); err != nil {
					log.Warn("gap filler: insert failed", zap.Error(err))
					continue
				}
				filled = true
			}
		}
		c.recomputeQuality(symbol, iv)
		if filled {
			if _, err := c.deps.Generator.OnBaseBarAppended(symbol); err != nil {
				log.Warn("gap filler: derived bar regeneration failed", zap.Error(err))
			}
		}

		if attempt < cfg.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.RetryInterval):
			}
		}
	}
}
