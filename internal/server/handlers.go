package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tipgate/tipgate/internal/classify"
	"github.com/tipgate/tipgate/internal/engine"
	"github.com/tipgate/tipgate/internal/prediction"
	"github.com/tipgate/tipgate/internal/query"
)

// viewerTierHeader carries the tier claim minted by the authentication
// collaborator. The claim is trusted verbatim; this layer performs no
// authentication of its own.
const viewerTierHeader = "X-Viewer-Tier"

// Handlers adapts the query service and cache engine to HTTP. All access
// decisions stay inside the gate via the query service; handlers only
// translate error kinds to status codes.
type Handlers struct {
	queries *query.Service
	engine  *engine.Engine
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandlers wires the HTTP facade.
func NewHandlers(queries *query.Service, eng *engine.Engine, metricsHandler http.Handler, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		queries: queries,
		engine:  eng,
		metrics: metricsHandler,
		logger:  logger.With(slog.String("component", "http")),
	}
}

type errorBody struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

// ServeList answers GET /predictions.
func (h *Handlers) ServeList(w http.ResponseWriter, r *http.Request) {
	req := query.ListRequest{Tier: viewerTier(r)}

	params := r.URL.Query()
	if raw := strings.TrimSpace(params.Get("category")); raw != "" {
		category := prediction.Category(strings.ToLower(raw))
		if !category.Known() {
			h.WriteError(w, http.StatusBadRequest, "unrecognized category "+strconv.Quote(raw))
			return
		}
		req.Category = category
	}
	if raw := strings.TrimSpace(params.Get("sport")); raw != "" {
		sport := prediction.Sport(strings.ToLower(raw))
		if !sport.Known() {
			h.WriteError(w, http.StatusBadRequest, "unrecognized sport "+strconv.Quote(raw))
			return
		}
		req.Sport = sport
	}
	var ok bool
	if req.Page, ok = intParam(params.Get("page")); !ok {
		h.WriteError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	if req.PageSize, ok = intParam(params.Get("pageSize")); !ok {
		h.WriteError(w, http.StatusBadRequest, "pageSize must be a positive integer")
		return
	}

	result, err := h.queries.List(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ServeDetail answers GET /predictions/{matchID}. Denied and NotFound map
// to distinct statuses so clients can render an upgrade prompt for gated
// records.
func (h *Handlers) ServeDetail(w http.ResponseWriter, r *http.Request, matchID int64) {
	view, err := h.queries.Detail(r.Context(), matchID, viewerTier(r))
	switch {
	case errors.Is(err, prediction.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, "no prediction for this match")
		return
	case errors.Is(err, prediction.ErrDenied):
		h.WriteError(w, http.StatusForbidden, "vip access required for this prediction")
		return
	case err != nil:
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ServeUpsert answers PUT /predictions with an ingestion payload.
func (h *Handlers) ServeUpsert(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var raw classify.RawPrediction
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		h.WriteError(w, http.StatusBadRequest, "malformed prediction payload: "+err.Error())
		return
	}

	stored, err := h.engine.Upsert(r.Context(), raw)
	if err != nil {
		var invalid *classify.ValidationError
		if errors.As(err, &invalid) {
			h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{
				Error:      "prediction failed validation",
				Violations: invalid.Violations,
			})
			return
		}
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stored)
}

// ServeEvict answers DELETE /predictions/{matchID}.
func (h *Handlers) ServeEvict(w http.ResponseWriter, r *http.Request, matchID int64) {
	err := h.engine.Evict(r.Context(), matchID)
	switch {
	case errors.Is(err, prediction.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, "no prediction for this match")
		return
	case err != nil:
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeHealth answers GET /healthz.
func (h *Handlers) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics exposes the Prometheus handler.
func (h *Handlers) Metrics() http.Handler {
	if h.metrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return h.metrics
}

// WriteError emits the JSON error shape used across the facade.
func (h *Handlers) WriteError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorBody{Error: message})
}

func (h *Handlers) writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, prediction.ErrStoreUnavailable) {
		h.logger.Warn("store unavailable", slog.Any("error", err))
		h.WriteError(w, http.StatusServiceUnavailable, "prediction store unavailable, retry later")
		return
	}
	h.logger.Error("request failed", slog.Any("error", err))
	h.WriteError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encode failed", slog.Any("error", err))
	}
}

// viewerTier reads the tier claim, defaulting absent or unrecognized
// claims to anonymous so a typo can never widen access.
func viewerTier(r *http.Request) prediction.Tier {
	tier := prediction.Tier(strings.ToLower(strings.TrimSpace(r.Header.Get(viewerTierHeader))))
	if !tier.Known() {
		return prediction.TierAnonymous
	}
	return tier
}

func intParam(raw string) (int, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, false
	}
	return value, true
}
