// Package notify carries bar-arrival and indicator-update events between
// coordinator-owned components (the derived-bar generator, the indicator
// manager, the quality engine, and any analysis-engine adapter) without
// those components holding direct references to one another.
package notify

import (
	"context"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
)

// BarAppendedEvent announces that a bar has been appended to a symbol's
// stream or derived series.
type BarAppendedEvent struct {
	Symbol   string
	Interval interval.Interval
	Derived  bool
	Bar      models.Bar
}

// IndicatorsUpdatedEvent announces that one or more indicator values on a
// symbol/interval changed as a result of a bar arrival.
type IndicatorsUpdatedEvent struct {
	Symbol    string
	Interval  interval.Interval
	Keys      []string
	Timestamp time.Time
}

// Bus is the cross-component notification contract. Every subscribe call
// returns a fresh channel for that (group, consumer) pair; the bus owns
// the channel's lifetime and closes it when ctx is done.
type Bus interface {
	PublishBarAppended(ctx context.Context, evt BarAppendedEvent) error
	SubscribeBarAppended(ctx context.Context, group, consumer string) (<-chan BarAppendedEvent, error)

	PublishIndicatorsUpdated(ctx context.Context, evt IndicatorsUpdatedEvent) error
	SubscribeIndicatorsUpdated(ctx context.Context, group, consumer string) (<-chan IndicatorsUpdatedEvent, error)
}
