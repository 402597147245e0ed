// Package engine owns the current-predictions cache: at-most-one-record-
// per-match upsert semantics, ordered retrieval by category and
// confidence, administrative eviction, and staleness reporting.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tipgate/tipgate/internal/classify"
	"github.com/tipgate/tipgate/internal/metrics"
	"github.com/tipgate/tipgate/internal/prediction"
	"github.com/tipgate/tipgate/internal/store"
)

// DefaultStoreTimeout bounds entity store calls when no timeout is
// configured so a degraded backend can never hang request handlers.
const DefaultStoreTimeout = 2 * time.Second

// Options wires the engine's collaborators.
type Options struct {
	Store        store.Store
	StoreTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

// Engine is the single source of truth for live predictions. It never
// retries and never swallows: validation failures and store failures
// surface as distinct error kinds, and a failed upsert leaves prior
// state untouched.
type Engine struct {
	store        store.Store
	storeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Recorder
}

// New constructs the cache engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store required")
	}
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:        opts.Store,
		storeTimeout: timeout,
		logger:       logger.With(slog.String("component", "engine")),
		metrics:      opts.Metrics,
	}, nil
}

// Upsert validates the raw payload and writes the normalized record
// through the store, replacing any prior record for the same match.
// Re-submitting an identical payload reproduces the same stored state
// apart from LastUpdated. A *classify.ValidationError means the input
// must be fixed before retrying; prediction.ErrStoreUnavailable means
// the write may be retried as-is.
func (e *Engine) Upsert(ctx context.Context, raw classify.RawPrediction) (prediction.Prediction, error) {
	record, err := classify.Classify(raw)
	if err != nil {
		e.metrics.ObserveUpsert(sportLabel(raw.Sport), categoryLabel(raw), "invalid")
		return prediction.Prediction{}, err
	}

	opCtx, cancel := e.bound(ctx)
	defer cancel()

	start := time.Now()
	stored, err := e.store.Put(opCtx, record)
	if err != nil {
		e.metrics.ObserveStoreOp(metrics.StoreOperationPut, metrics.StoreOutcomeError, time.Since(start))
		e.metrics.ObserveUpsert(string(record.Sport), string(record.Category), "store_error")
		return prediction.Prediction{}, storeFailure("put", err)
	}
	e.metrics.ObserveStoreOp(metrics.StoreOperationPut, metrics.StoreOutcomeOK, time.Since(start))
	e.metrics.ObserveUpsert(string(record.Sport), string(record.Category), "stored")

	e.logger.Debug("prediction upserted",
		slog.Int64("match_id", stored.MatchID),
		slog.String("category", string(stored.Category)),
		slog.Int("confidence", stored.Confidence))
	return stored, nil
}

// ListByCategory returns every live record in the category, optionally
// narrowed by sport (empty sport means all). Ordering is contractual:
// confidence descending, fixture date ascending on ties, match ID
// ascending as the final deterministic tie-break.
func (e *Engine) ListByCategory(ctx context.Context, category prediction.Category, sport prediction.Sport) ([]prediction.Prediction, error) {
	return e.list(ctx, func(p prediction.Prediction) bool {
		if p.Category != category {
			return false
		}
		return sport == "" || p.Sport == sport
	})
}

// ListAll returns every live record, optionally narrowed by sport, under
// the same ordering contract as ListByCategory.
func (e *Engine) ListAll(ctx context.Context, sport prediction.Sport) ([]prediction.Prediction, error) {
	return e.list(ctx, func(p prediction.Prediction) bool {
		return sport == "" || p.Sport == sport
	})
}

// GetByID returns the live record for the match, or
// prediction.ErrNotFound.
func (e *Engine) GetByID(ctx context.Context, matchID int64) (prediction.Prediction, error) {
	opCtx, cancel := e.bound(ctx)
	defer cancel()

	start := time.Now()
	record, err := e.store.Get(opCtx, matchID)
	switch {
	case errors.Is(err, prediction.ErrNotFound):
		e.metrics.ObserveStoreOp(metrics.StoreOperationGet, metrics.StoreOutcomeMiss, time.Since(start))
		return prediction.Prediction{}, err
	case err != nil:
		e.metrics.ObserveStoreOp(metrics.StoreOperationGet, metrics.StoreOutcomeError, time.Since(start))
		return prediction.Prediction{}, storeFailure("get", err)
	}
	e.metrics.ObserveStoreOp(metrics.StoreOperationGet, metrics.StoreOutcomeOK, time.Since(start))
	return record, nil
}

// Evict removes the record for the match. The engine never decides when
// to evict; a retention sweep or an operator does, through this call.
func (e *Engine) Evict(ctx context.Context, matchID int64) error {
	opCtx, cancel := e.bound(ctx)
	defer cancel()

	start := time.Now()
	err := e.store.Delete(opCtx, matchID)
	switch {
	case errors.Is(err, prediction.ErrNotFound):
		e.metrics.ObserveStoreOp(metrics.StoreOperationDelete, metrics.StoreOutcomeMiss, time.Since(start))
		return err
	case err != nil:
		e.metrics.ObserveStoreOp(metrics.StoreOperationDelete, metrics.StoreOutcomeError, time.Since(start))
		return storeFailure("delete", err)
	}
	e.metrics.ObserveStoreOp(metrics.StoreOperationDelete, metrics.StoreOutcomeOK, time.Since(start))
	e.logger.Info("prediction evicted", slog.Int64("match_id", matchID))
	return nil
}

// IsStale reports whether the record's last write exceeds maxAge.
// Informational only: stale records remain served until evicted, because
// a stale prediction is still better than none for a match about to
// start.
func (e *Engine) IsStale(record prediction.Prediction, maxAge time.Duration) bool {
	return record.Stale(time.Now().UTC(), maxAge)
}

func (e *Engine) list(ctx context.Context, keep func(prediction.Prediction) bool) ([]prediction.Prediction, error) {
	opCtx, cancel := e.bound(ctx)
	defer cancel()

	start := time.Now()
	records, err := e.store.Scan(opCtx, keep)
	if err != nil {
		e.metrics.ObserveStoreOp(metrics.StoreOperationScan, metrics.StoreOutcomeError, time.Since(start))
		return nil, storeFailure("scan", err)
	}
	e.metrics.ObserveStoreOp(metrics.StoreOperationScan, metrics.StoreOutcomeOK, time.Since(start))

	slices.SortFunc(records, compareRecords)
	return records, nil
}

// compareRecords implements the retrieval ordering contract. Callers see
// the highest-confidence predictions first; among equals the soonest
// kickoff wins so pagination surfaces actionable matches.
func compareRecords(a, b prediction.Prediction) int {
	if a.Confidence != b.Confidence {
		return b.Confidence - a.Confidence
	}
	if c := a.Fixture.Date.Compare(b.Fixture.Date); c != 0 {
		return c
	}
	switch {
	case a.MatchID < b.MatchID:
		return -1
	case a.MatchID > b.MatchID:
		return 1
	}
	return 0
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}

// sportLabel and categoryLabel collapse unvalidated payload values to the
// known enums before they reach metric labels. Rejected payloads arrive
// from the public ingest surface, so labeling them verbatim would let
// arbitrary input mint unbounded counter series.
func sportLabel(raw string) string {
	sport := prediction.Sport(strings.ToLower(strings.TrimSpace(raw)))
	if !sport.Known() {
		return "unknown"
	}
	return string(sport)
}

func categoryLabel(raw classify.RawPrediction) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw.Category))
	category := prediction.Category(trimmed)
	if category.Known() {
		return string(category)
	}
	if trimmed == "" && raw.VIP {
		return string(prediction.CategoryVIP)
	}
	return "unknown"
}

func storeFailure(op string, err error) error {
	if errors.Is(err, prediction.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("engine: %s: %w: %w", op, prediction.ErrStoreUnavailable, err)
}
