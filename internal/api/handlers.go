package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/store"
)

// SessionHandler exposes the session data store's read accessors over
// HTTP. Every handler is read-only: it goes through the same
// store.Store accessors strategy code uses in-process, and never
// mutates the store.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new session handler over store.
func NewSessionHandler(st *store.Store) *SessionHandler {
	return &SessionHandler{store: st}
}

// ListSymbols handles GET /api/v1/symbols
func (h *SessionHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := h.store.GetActiveSymbols()

	search := r.URL.Query().Get("search")
	if search != "" {
		searchLower := strings.ToLower(search)
		filtered := make([]string, 0, len(symbols))
		for _, symbol := range symbols {
			if strings.Contains(strings.ToLower(symbol), searchLower) {
				filtered = append(filtered, symbol)
			}
		}
		symbols = filtered
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// GetSymbol handles GET /api/v1/symbols/:symbol
func (h *SessionHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	data := h.store.GetSymbolData(symbol, false)
	if data == nil {
		respondWithError(w, http.StatusNotFound, "symbol not found or session inactive")
		return
	}

	intervals := make([]string, 0, len(data.Bars))
	for iv := range data.Bars {
		intervals = append(intervals, iv.String())
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":        data.Symbol,
		"base_interval": data.BaseInterval.String(),
		"intervals":     intervals,
		"metrics": map[string]interface{}{
			"volume":           data.Metrics.Volume,
			"high":             data.Metrics.High,
			"low":              data.Metrics.Low,
			"last_update_time": data.Metrics.LastUpdateTime,
		},
		"provisioning": map[string]interface{}{
			"meets_session_config_requirements": data.Provisioning.MeetsSessionConfigRequirements,
			"auto_provisioned":                  data.Provisioning.AutoProvisioned,
			"upgraded_from_adhoc":                data.Provisioning.UpgradedFromAdhoc,
			"added_by":                           data.Provisioning.AddedBy,
			"degraded":                           data.Provisioning.Degraded,
			"degraded_reason":                    data.Provisioning.DegradedReason,
		},
	})
}

// GetBars handles GET /api/v1/symbols/:symbol/bars/:interval
func (h *SessionHandler) GetBars(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	iv, err := interval.Parse(vars["interval"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid interval: "+err.Error())
		return
	}

	data := h.store.GetSymbolData(symbol, false)
	if data == nil {
		respondWithError(w, http.StatusNotFound, "symbol not found or session inactive")
		return
	}

	bid, ok := data.Bars[iv]
	if !ok {
		respondWithError(w, http.StatusNotFound, "interval not present for symbol")
		return
	}

	var baseToken string
	if bid.Base != nil {
		baseToken = bid.Base.String()
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"interval": iv.String(),
		"derived":  bid.Derived,
		"base":     baseToken,
		"quality":  bid.Quality,
		"gaps":     bid.Gaps,
		"bars":     bid.Bars,
		"count":    len(bid.Bars),
	})
}

// GetIndicators handles GET /api/v1/symbols/:symbol/indicators
func (h *SessionHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if h.store.GetSymbolData(symbol, false) == nil {
		respondWithError(w, http.StatusNotFound, "symbol not found or session inactive")
		return
	}

	typeFilter := store.IndicatorType(r.URL.Query().Get("type"))
	indicators := h.store.GetAllIndicators(symbol, typeFilter, false)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     symbol,
		"indicators": indicators,
		"count":      len(indicators),
	})
}

// GetIndicatorValue handles GET /api/v1/symbols/:symbol/indicators/:key
func (h *SessionHandler) GetIndicatorValue(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	key := vars["key"]
	field := r.URL.Query().Get("field")

	ready := h.store.IsIndicatorReady(symbol, key, false)
	value, ok := h.store.GetIndicatorValue(symbol, key, field, false)
	if !ok {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"symbol": symbol,
			"key":    key,
			"ready":  false,
			"value":  nil,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"key":    key,
		"ready":  ready,
		"value":  value,
	})
}

// HealthHandler answers liveness/readiness probes.
type HealthHandler struct {
	store *store.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"session_active": h.store.SessionActive(),
	})
}
