package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"

	"github.com/tipgate/tipgate/internal/engine"
	"github.com/tipgate/tipgate/internal/metrics"
	"github.com/tipgate/tipgate/internal/query"
	"github.com/tipgate/tipgate/internal/store"
)

const correlationHeader = "X-Request-Id"

// newFacade assembles the full request path over a memory store.
func newFacade(t *testing.T) *httptest.Server {
	t.Helper()

	recorder := metrics.NewRecorder(nil)
	eng, err := engine.New(engine.Options{Store: store.NewMemory(), Metrics: recorder})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	queries, err := query.New(query.Options{Engine: eng, Metrics: recorder})
	if err != nil {
		t.Fatalf("query service: %v", err)
	}

	handlers := NewHandlers(queries, eng, recorder.Handler(), nil)
	srv := httptest.NewServer(NewHandler(handlers, correlationHeader))
	t.Cleanup(srv.Close)
	return srv
}

func payload(matchID int64, category string, confidence int) map[string]any {
	return map[string]any{
		"matchId":    matchID,
		"sport":      "football",
		"category":   category,
		"tip":        "Home win",
		"confidence": confidence,
		"homeTeam":   map[string]any{"id": 1, "name": "Arsenal"},
		"awayTeam":   map[string]any{"id": 2, "name": "Everton"},
		"league":     map[string]any{"id": 10, "name": "Premier League"},
		"fixture":    map[string]any{"date": "2026-09-05T00:00:00Z", "time": "16:30"},
	}
}

func TestPredictionLifecycle(t *testing.T) {
	srv := newFacade(t)
	e := httpexpect.Default(t, srv.URL)

	e.PUT("/predictions").WithJSON(payload(4117, "banker", 85)).
		Expect().Status(http.StatusOK).
		JSON().Object().HasValue("matchId", 4117)

	e.PUT("/predictions").WithJSON(payload(5001, "vip", 92)).
		Expect().Status(http.StatusOK)

	// Anonymous listings exclude vip records but count only what the
	// viewer can see.
	list := e.GET("/predictions").
		Expect().Status(http.StatusOK).
		JSON().Object()
	list.HasValue("totalCount", 1)
	list.Value("items").Array().Length().IsEqual(1)
	list.Value("items").Array().Value(0).Object().HasValue("category", "banker")

	vipList := e.GET("/predictions").WithHeader("X-Viewer-Tier", "vip").
		Expect().Status(http.StatusOK).
		JSON().Object()
	vipList.HasValue("totalCount", 2)

	// Denied and missing stay distinct.
	e.GET("/predictions/5001").
		Expect().Status(http.StatusForbidden).
		JSON().Object().HasValue("error", "vip access required for this prediction")

	e.GET("/predictions/5001").WithHeader("X-Viewer-Tier", "vip").
		Expect().Status(http.StatusOK).
		JSON().Object().HasValue("kickoffTime", "16:30")

	e.GET("/predictions/99999").WithHeader("X-Viewer-Tier", "vip").
		Expect().Status(http.StatusNotFound)

	// Eviction removes the record; a second delete is a miss.
	e.DELETE("/predictions/4117").
		Expect().Status(http.StatusNoContent)
	e.DELETE("/predictions/4117").
		Expect().Status(http.StatusNotFound)
}

func TestUpsertValidationResponses(t *testing.T) {
	srv := newFacade(t)
	e := httpexpect.Default(t, srv.URL)

	invalid := payload(0, "banker", 140)
	body := e.PUT("/predictions").WithJSON(invalid).
		Expect().Status(http.StatusUnprocessableEntity).
		JSON().Object()
	body.HasValue("error", "prediction failed validation")
	body.Value("violations").Array().NotEmpty()

	e.PUT("/predictions").WithText("{not json").WithHeader("Content-Type", "application/json").
		Expect().Status(http.StatusBadRequest)

	unknown := payload(1, "banker", 80)
	unknown["surprise_me"] = true
	e.PUT("/predictions").WithJSON(unknown).
		Expect().Status(http.StatusBadRequest)
}

func TestListParamValidation(t *testing.T) {
	srv := newFacade(t)
	e := httpexpect.Default(t, srv.URL)

	e.GET("/predictions").WithQuery("category", "longshot").
		Expect().Status(http.StatusBadRequest)
	e.GET("/predictions").WithQuery("sport", "cricket").
		Expect().Status(http.StatusBadRequest)
	e.GET("/predictions").WithQuery("page", "0").
		Expect().Status(http.StatusBadRequest)
	e.GET("/predictions").WithQuery("pageSize", "abc").
		Expect().Status(http.StatusBadRequest)

	// An unknown tier claim degrades to anonymous instead of failing.
	e.GET("/predictions").WithHeader("X-Viewer-Tier", "superuser").
		Expect().Status(http.StatusOK)
}

func TestRouterDispatch(t *testing.T) {
	srv := newFacade(t)
	e := httpexpect.Default(t, srv.URL)

	e.GET("/healthz").
		Expect().Status(http.StatusOK).
		JSON().Object().HasValue("status", "ok")

	e.POST("/healthz").
		Expect().Status(http.StatusMethodNotAllowed)
	e.POST("/predictions").
		Expect().Status(http.StatusMethodNotAllowed)
	e.POST("/predictions/1").
		Expect().Status(http.StatusMethodNotAllowed)

	e.GET("/predictions/not-a-number").
		Expect().Status(http.StatusBadRequest)
	e.GET("/predictions/-4").
		Expect().Status(http.StatusBadRequest)

	e.GET("/nowhere").
		Expect().Status(http.StatusNotFound)

	e.GET("/metrics").
		Expect().Status(http.StatusOK)
}

func TestCorrelationIDHandling(t *testing.T) {
	srv := newFacade(t)
	e := httpexpect.Default(t, srv.URL)

	// Inbound IDs are echoed verbatim.
	e.GET("/healthz").WithHeader(correlationHeader, "req-123").
		Expect().Status(http.StatusOK).
		Header(correlationHeader).IsEqual("req-123")

	// Absent IDs get minted.
	e.GET("/healthz").
		Expect().Status(http.StatusOK).
		Header(correlationHeader).NotEmpty()
}
