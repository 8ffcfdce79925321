// Package liveprovider implements the live data provider collaborator
// (SPEC_FULL.md §6): subscribe/unsubscribe by symbol and interval, bar (and
// optional quote) delivery on a channel, and a dedicated retry call for
// specific missing bars.
package liveprovider

import (
	"context"
	"errors"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
)

var (
	ErrNotConnected      = errors.New("liveprovider: not connected")
	ErrAlreadyConnected  = errors.New("liveprovider: already connected")
	ErrInvalidSymbol     = errors.New("liveprovider: invalid symbol")
	ErrNotSubscribed     = errors.New("liveprovider: symbol not subscribed")
)

// Provider is the live data provider collaborator contract.
type Provider interface {
	Connect(ctx context.Context) error

	// Subscribe starts delivering bars for symbol at each of intervals.
	Subscribe(ctx context.Context, symbol string, intervals []interval.Interval) (<-chan models.Bar, error)

	// SubscribeQuotes starts delivering synthesized quote ticks for symbol;
	// not every provider supports this (a nil channel with no error means
	// quotes were not requested to be supported).
	SubscribeQuotes(ctx context.Context, symbol string) (<-chan models.Tick, error)

	Unsubscribe(ctx context.Context, symbol string) error

	// RetryBars asks the provider for specific bars the engine believes it
	// missed, independent of the live subscription stream.
	RetryBars(ctx context.Context, symbol string, iv interval.Interval, start, end time.Time) ([]models.Bar, error)

	Close() error
	IsConnected() bool
	GetName() string
}
