package derived

import (
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStoreWithDerived(t *testing.T, symbol string) *store.Store {
	t.Helper()
	st := store.New(0)
	data := store.NewSymbolSessionData(symbol, interval.MustParse("1m"), 0)
	require.NoError(t, st.RegisterSymbolData(data))
	require.NoError(t, st.AppendDerivedBars(symbol, interval.MustParse("5m"), interval.MustParse("1m"), nil))
	st.ActivateSession()
	return st
}

func minuteBar(symbol string, t0 time.Time, i int, price float64) models.Bar {
	return models.Bar{
		Symbol:    symbol,
		Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Open:      price,
		High:      price + 0.5,
		Low:       price - 0.5,
		Close:     price,
		Volume:    100,
	}
}

func TestGenerator_FixedChunkOnlyEmitsCompleteChunks(t *testing.T) {
	st := setupStoreWithDerived(t, "AAPL")
	gen := NewGenerator(st, timeservice.NewCalendar(time.UTC, nil, nil))

	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

	var produced []Update
	for i := 0; i < 12; i++ {
		bar := minuteBar("AAPL", base, i, 100+float64(i))
		require.NoError(t, st.AppendBaseBar("AAPL", bar))
		updates, err := gen.OnBaseBarAppended("AAPL")
		require.NoError(t, err)
		produced = append(produced, updates...)
	}

	// 12 one-minute bars -> exactly 2 complete 5m chunks, the trailing 2
	// bars (10,11) never emitted as a partial chunk.
	require.Len(t, produced, 2)

	data := st.GetSymbolData("AAPL", true)
	fiveMin := data.Bars[interval.MustParse("5m")]
	require.Len(t, fiveMin.Bars, 2)
	assert.Equal(t, 100.0, fiveMin.Bars[0].Open)
	assert.Equal(t, 104.0, fiveMin.Bars[0].Close)
	assert.Equal(t, int64(500), fiveMin.Bars[0].Volume)
	assert.True(t, fiveMin.Updated)
}

func TestGenerator_BarHookFiresForNewBarsOnly(t *testing.T) {
	st := setupStoreWithDerived(t, "AAPL")
	gen := NewGenerator(st, timeservice.NewCalendar(time.UTC, nil, nil))

	var hooked []models.Bar
	gen.SetBarHook(func(symbol string, iv interval.Interval, bar models.Bar) error {
		hooked = append(hooked, bar)
		return nil
	})

	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.AppendBaseBar("AAPL", minuteBar("AAPL", base, i, 100)))
		_, err := gen.OnBaseBarAppended("AAPL")
		require.NoError(t, err)
	}

	assert.Len(t, hooked, 1)
}

func TestGenerator_UnknownSymbolErrors(t *testing.T) {
	st := store.New(0)
	gen := NewGenerator(st, timeservice.NewCalendar(time.UTC, nil, nil))
	_, err := gen.OnBaseBarAppended("MSFT")
	assert.Error(t, err)
}
