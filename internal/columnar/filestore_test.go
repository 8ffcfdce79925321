package columnar

import (
	"context"
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_WriteThenReadBars_RoundTrips(t *testing.T) {
	fs := NewFileStore(t.TempDir(), timeservice.NewCalendar(time.UTC, nil, nil))
	iv := interval.MustParse("1m")
	day := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

	bars := []models.Bar{
		{Symbol: "AAPL", Timestamp: day, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Symbol: "AAPL", Timestamp: day.Add(time.Minute), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 1500},
	}

	count, files, err := fs.WriteBars(context.Background(), bars, iv, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, files, 1)

	got, err := fs.ReadBars(context.Background(), "AAPL", iv, day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Open)
	assert.Equal(t, 101.0, got[1].Close)
	assert.Equal(t, int64(1500), got[1].Volume)
}

func TestFileStore_ReadBars_MissingLeafReturnsEmpty(t *testing.T) {
	fs := NewFileStore(t.TempDir(), timeservice.NewCalendar(time.UTC, nil, nil))
	got, err := fs.ReadBars(context.Background(), "MSFT", interval.MustParse("1m"),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStore_DailyBarsUseOneLeafPerYear(t *testing.T) {
	fs := NewFileStore(t.TempDir(), timeservice.NewCalendar(time.UTC, nil, nil))
	iv := interval.MustParse("1d")

	bars := []models.Bar{
		{Symbol: "AAPL", Timestamp: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Symbol: "AAPL", Timestamp: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), Open: 110, High: 112, Low: 109, Close: 111, Volume: 2000},
	}
	count, files, err := fs.WriteBars(context.Background(), bars, iv, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, files, 1, "both daily bars in the same year share one leaf file")

	got, err := fs.ReadBars(context.Background(), "AAPL", iv,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileStore_ReadQuotes_ReturnsNil(t *testing.T) {
	fs := NewFileStore(t.TempDir(), timeservice.NewCalendar(time.UTC, nil, nil))
	got, err := fs.ReadQuotes(context.Background(), "AAPL", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}
