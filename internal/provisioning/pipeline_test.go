package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/requirement"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistorical struct {
	bars []models.Bar
	err  error
}

func (f *fakeHistorical) ReadBars(ctx context.Context, symbol string, iv interval.Interval, start, end time.Time) ([]models.Bar, error) {
	return f.bars, f.err
}

func testSetup(t *testing.T, hist HistoricalSource) (*Pipeline, *store.Store) {
	t.Helper()
	st := store.New(0)
	cal := timeservice.NewCalendar(time.UTC, nil, nil)
	mgr := indicator.NewManager(st, cal, 500)
	return NewPipeline(st, hist, mgr, cal, 0), st
}

func historyBars(n int, start time.Time) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		ts := start.Add(time.Duration(i) * time.Minute)
		bars[i] = models.Bar{Symbol: "AAPL", Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 500}
	}
	return bars
}

func TestPipeline_AddSymbol_FullConfigLoad(t *testing.T) {
	hist := &fakeHistorical{bars: historyBars(50, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC))}
	p, st := testSetup(t, hist)

	in := requirement.Input{
		SessionIntervals: []string{"1m", "5m"},
		Indicators: []indicator.Config{
			{Name: "sma", Period: 10, Interval: interval.MustParse("5m"), Type: store.IndicatorTrend},
		},
	}

	req, err := p.AddSymbol(context.Background(), "AAPL", SourceConfig, in, 5)
	require.NoError(t, err)
	assert.True(t, req.CanProceed)
	assert.True(t, st.HasSymbol("AAPL"))

	data := st.GetSymbolData("AAPL", true)
	require.NotNil(t, data.Bars[interval.MustParse("5m")])
	assert.True(t, data.Provisioning.MeetsSessionConfigRequirements)
}

func TestPipeline_AddIndicatorUnified_CreatesSymbolAndWarmsUp(t *testing.T) {
	hist := &fakeHistorical{bars: historyBars(50, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC))}
	p, st := testSetup(t, hist)

	cfg := indicator.Config{Name: "sma", Period: 20, Interval: interval.MustParse("1m"), Type: store.IndicatorTrend}
	req, err := p.AddIndicatorUnified(context.Background(), "AAPL", cfg, SourceStrategy)
	require.NoError(t, err)
	assert.True(t, req.CanProceed)
	assert.True(t, st.HasSymbol("AAPL"))
	assert.True(t, st.IsIndicatorReady("AAPL", cfg.Key(), true))
}

func TestPipeline_AddBarUnified_NoHistoricalSourceFailsValidation(t *testing.T) {
	p, _ := testSetup(t, nil)
	req, err := p.AddBarUnified(context.Background(), "AAPL", interval.MustParse("1m"), 5, SourceStrategy)
	require.NoError(t, err)
	assert.False(t, req.CanProceed)
	assert.NotEmpty(t, req.ValidationErrors)
}

func TestPipeline_LoadHistorical_FailsGracefullyWithoutSource(t *testing.T) {
	p, st := testSetup(t, nil)
	require.NoError(t, st.RegisterSymbolData(store.NewSymbolSessionData("AAPL", interval.MustParse("1m"), 0)))

	in := requirement.Input{SessionIntervals: []string{"1m"}}
	req, err := p.AddSymbol(context.Background(), "AAPL", SourceConfig, in, 5)
	require.NoError(t, err)
	assert.False(t, req.CanProceed)
	assert.Contains(t, req.ValidationErrors[0], "historical data source")
}

func TestPipeline_UpgradeSymbol_RequiresExistingSymbol(t *testing.T) {
	p, _ := testSetup(t, nil)
	_, err := p.UpgradeSymbol(context.Background(), "AAPL", requirement.Input{SessionIntervals: []string{"1m"}}, 5)
	assert.Error(t, err)
}

func TestPipeline_UpgradeSymbol_FlipsMeetsRequirements(t *testing.T) {
	hist := &fakeHistorical{bars: historyBars(50, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC))}
	p, st := testSetup(t, hist)
	require.NoError(t, st.RegisterSymbolData(store.NewSymbolSessionData("AAPL", interval.MustParse("1m"), 0)))

	req, err := p.UpgradeSymbol(context.Background(), "AAPL", requirement.Input{SessionIntervals: []string{"1m"}}, 5)
	require.NoError(t, err)
	assert.True(t, req.CanProceed)

	data := st.GetSymbolData("AAPL", true)
	assert.True(t, data.Provisioning.MeetsSessionConfigRequirements)
	assert.True(t, data.Provisioning.UpgradedFromAdhoc)
}

func TestPipeline_ReregisteringIndicatorIsIdempotent(t *testing.T) {
	hist := &fakeHistorical{bars: historyBars(50, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC))}
	p, st := testSetup(t, hist)

	cfg := indicator.Config{Name: "sma", Period: 10, Interval: interval.MustParse("1m"), Type: store.IndicatorTrend}
	_, err := p.AddIndicatorUnified(context.Background(), "AAPL", cfg, SourceStrategy)
	require.NoError(t, err)
	_, err = p.AddIndicatorUnified(context.Background(), "AAPL", cfg, SourceStrategy)
	require.NoError(t, err)

	all := st.GetAllIndicators("AAPL", "", true)
	assert.Len(t, all, 1)
}
