// Package columnar implements the columnar-store collaborator
// (SPEC_FULL.md §6): the read/write boundary between the session engine
// and wherever historical bars actually live. The core engine only ever
// calls ReadBars/WriteBars/ReadQuotes through the ColumnarStore interface;
// TimescaleStore and FileStore are its two concrete adapters.
package columnar

import (
	"context"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
)

// ColumnarStore is the historical-data collaborator contract from
// SPEC_FULL.md §6. ReadBars satisfies provisioning.HistoricalSource.
type ColumnarStore interface {
	ReadBars(ctx context.Context, symbol string, iv interval.Interval, start, end time.Time) ([]models.Bar, error)
	WriteBars(ctx context.Context, bars []models.Bar, iv interval.Interval, symbol string) (count int, files []string, err error)
	ReadQuotes(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error)
}
