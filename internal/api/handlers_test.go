package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(0)
	require.NoError(t, s.RegisterSymbolData(store.NewSymbolSessionData("AAPL", interval.MustParse("1m"), 0)))
	s.ActivateSession()

	now := time.Now()
	require.NoError(t, s.AppendBaseBar("AAPL", models.Bar{
		Symbol: "AAPL", Timestamp: now, Open: 100, High: 105, Low: 99, Close: 102, Volume: 1000,
	}))

	require.NoError(t, s.SetIndicator("AAPL", "sma_2_1m", store.IndicatorData{
		Name: "sma", Type: store.IndicatorTrend, Interval: interval.MustParse("1m"),
		Current: store.IndicatorValue{Scalar: 101.5}, Valid: true, LastUpdated: now,
	}))
	return s
}

func TestSessionHandler_ListSymbols(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols", nil)
	w := httptest.NewRecorder()
	handler.ListSymbols(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	symbols, ok := response["symbols"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"AAPL"}, symbols)
}

func TestSessionHandler_ListSymbols_WithSearch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterSymbolData(store.NewSymbolSessionData("MSFT", interval.MustParse("1m"), 0)))
	handler := NewSessionHandler(s)

	req := httptest.NewRequest("GET", "/api/v1/symbols?search=AA", nil)
	w := httptest.NewRecorder()
	handler.ListSymbols(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	symbols := response["symbols"].([]interface{})
	assert.Equal(t, []interface{}{"AAPL"}, symbols)
}

func TestSessionHandler_GetSymbol(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/AAPL", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "AAPL"})
	w := httptest.NewRecorder()
	handler.GetSymbol(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "AAPL", response["symbol"])
	assert.Equal(t, "1m", response["base_interval"])
}

func TestSessionHandler_GetSymbol_NotFound(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/TSLA", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "TSLA"})
	w := httptest.NewRecorder()
	handler.GetSymbol(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_GetBars(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/AAPL/bars/1m", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "AAPL", "interval": "1m"})
	w := httptest.NewRecorder()
	handler.GetBars(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["count"])
	assert.Equal(t, false, response["derived"])
}

func TestSessionHandler_GetBars_InvalidInterval(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/AAPL/bars/1h", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "AAPL", "interval": "1h"})
	w := httptest.NewRecorder()
	handler.GetBars(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_GetIndicators(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/AAPL/indicators", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "AAPL"})
	w := httptest.NewRecorder()
	handler.GetIndicators(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["count"])
}

func TestSessionHandler_GetIndicatorValue(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/AAPL/indicators/sma_2_1m", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "AAPL", "key": "sma_2_1m"})
	w := httptest.NewRecorder()
	handler.GetIndicatorValue(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["ready"])
	assert.Equal(t, 101.5, response["value"])
}

func TestSessionHandler_GetIndicatorValue_NotReady(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/api/v1/symbols/AAPL/indicators/rsi_14_1m", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "AAPL", "key": "rsi_14_1m"})
	w := httptest.NewRecorder()
	handler.GetIndicatorValue(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, false, response["ready"])
	assert.Nil(t, response["value"])
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(newTestStore(t))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["session_active"])
}
