// Package models holds the data types shared by every component of the
// session lifecycle engine: bars, per-symbol session state, and the
// top-level session container.
package models

import "time"

// Bar is a single OHLCV bar for one symbol at one interval. The collaborator
// adapters (columnar stores and live providers) hand out timestamps in UTC
// and do not convert them to the exchange timezone; code that groups by
// trading date converts through the calendar's MarketTimezone.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Validate reports whether a Bar is internally consistent.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return ErrInvalidSymbol
	}
	if b.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if b.High < b.Low {
		return ErrInvalidBar
	}
	if b.Volume < 0 {
		return ErrInvalidVolume
	}
	return nil
}

// Fold merges bar b into the running OHLCV aggregate represented by acc,
// treating acc as "first bar seen" when acc.Timestamp is zero. Used by the
// bar aggregator to build a derived bar one source bar at a time.
func Fold(acc Bar, b Bar) Bar {
	if acc.Timestamp.IsZero() {
		return Bar{
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	acc.Close = b.Close
	if b.High > acc.High {
		acc.High = b.High
	}
	if b.Low < acc.Low {
		acc.Low = b.Low
	}
	acc.Volume += b.Volume
	return acc
}

// Tick is a single trade or quote print, the finest-grained unit the engine
// can receive from a live provider or a backtest tick file.
type Tick struct {
	Symbol    string
	Price     float64
	Size      int64
	Timestamp time.Time
	Type      string // "trade" or "quote"
	Bid       float64
	Ask       float64
}

// Validate validates a Tick.
func (t Tick) Validate() error {
	if t.Symbol == "" {
		return ErrInvalidSymbol
	}
	if t.Price <= 0 {
		return ErrInvalidPrice
	}
	if t.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// Quote is a synthesized or received bid/ask snapshot for a symbol.
type Quote struct {
	Symbol     string
	Bid        float64
	Ask        float64
	BidSize    int64
	AskSize    int64
	LastUpdate time.Time
}
