package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PredictionAPI defines the minimal surface the lifecycle router needs
// from the HTTP handlers to serve requests.
type PredictionAPI interface {
	ServeList(http.ResponseWriter, *http.Request)
	ServeDetail(http.ResponseWriter, *http.Request, int64)
	ServeUpsert(http.ResponseWriter, *http.Request)
	ServeEvict(http.ResponseWriter, *http.Request, int64)
	ServeHealth(http.ResponseWriter, *http.Request)
	Metrics() http.Handler
	WriteError(http.ResponseWriter, int, string)
}

// NewHandler wires URL dispatch to the prediction API. The router also
// guarantees every response carries a correlation ID: inbound values on
// the configured header are echoed, absent ones are minted.
func NewHandler(api PredictionAPI, correlationHeader string) http.Handler {
	if api == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "api unavailable", http.StatusServiceUnavailable)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if correlationHeader != "" {
			correlationID := strings.TrimSpace(r.Header.Get(correlationHeader))
			if correlationID == "" {
				correlationID = uuid.NewString()
				r.Header.Set(correlationHeader, correlationID)
			}
			w.Header().Set(correlationHeader, correlationID)
		}

		segments := splitPath(r.URL.Path)
		switch {
		case len(segments) == 1 && segments[0] == "healthz":
			if !requireMethod(api, w, r, http.MethodGet) {
				return
			}
			api.ServeHealth(w, r)
		case len(segments) == 1 && segments[0] == "metrics":
			if !requireMethod(api, w, r, http.MethodGet) {
				return
			}
			api.Metrics().ServeHTTP(w, r)
		case len(segments) == 1 && segments[0] == "predictions":
			switch r.Method {
			case http.MethodGet:
				api.ServeList(w, r)
			case http.MethodPut:
				api.ServeUpsert(w, r)
			default:
				api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
		case len(segments) == 2 && segments[0] == "predictions":
			matchID, err := strconv.ParseInt(segments[1], 10, 64)
			if err != nil || matchID <= 0 {
				api.WriteError(w, http.StatusBadRequest, "match id must be a positive integer")
				return
			}
			switch r.Method {
			case http.MethodGet:
				api.ServeDetail(w, r, matchID)
			case http.MethodDelete:
				api.ServeEvict(w, r, matchID)
			default:
				api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
		default:
			http.NotFound(w, r)
		}
	})
}

func requireMethod(api PredictionAPI, w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
