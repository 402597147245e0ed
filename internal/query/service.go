// Package query composes the cache engine and the access gate into the
// caller-facing read surface: paginated, tier-filtered listings and
// single-record detail lookups.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tipgate/tipgate/internal/engine"
	"github.com/tipgate/tipgate/internal/gate"
	"github.com/tipgate/tipgate/internal/metrics"
	"github.com/tipgate/tipgate/internal/prediction"
)

const (
	// DefaultPageSize applies when a request omits the page size.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps responses when no maximum is configured.
	DefaultMaxPageSize = 100
)

// Options wires the query service's collaborators and limits.
type Options struct {
	Engine          *engine.Engine
	DefaultPageSize int
	MaxPageSize     int
	Logger          *slog.Logger
	Metrics         *metrics.Recorder
}

// Service answers read queries. Pagination happens after gate filtering
// so page boundaries are stable within a viewer tier.
type Service struct {
	engine          *engine.Engine
	defaultPageSize int
	maxPageSize     int
	logger          *slog.Logger
	metrics         *metrics.Recorder
}

// New constructs the query service.
func New(opts Options) (*Service, error) {
	if opts.Engine == nil {
		return nil, errors.New("query: engine required")
	}
	defaultSize := opts.DefaultPageSize
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	maxSize := opts.MaxPageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPageSize
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		engine:          opts.Engine,
		defaultPageSize: defaultSize,
		maxPageSize:     maxSize,
		logger:          logger.With(slog.String("component", "query")),
		metrics:         opts.Metrics,
	}, nil
}

// ListRequest describes a listing query. Empty Category or Sport means
// no filter on that axis. Page is 1-indexed; PageSize falls back to the
// configured default and is clamped to the configured maximum.
type ListRequest struct {
	Category prediction.Category
	Sport    prediction.Sport
	Tier     prediction.Tier
	Page     int
	PageSize int
}

// ListResult carries one page of shaped records plus the tier-visible
// total, so clients can build stable pagination.
type ListResult struct {
	Items      []View `json:"items"`
	TotalCount int    `json:"totalCount"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

// List fetches, gates, paginates, and shapes. Records the viewer may not
// see are silently omitted — denial is never an error in list semantics.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	start := time.Now()

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	var records []prediction.Prediction
	var err error
	if req.Category != "" {
		records, err = s.engine.ListByCategory(ctx, req.Category, req.Sport)
	} else {
		records, err = s.engine.ListAll(ctx, req.Sport)
	}
	if err != nil {
		s.metrics.ObserveQuery("list", string(req.Tier), "error", time.Since(start))
		return ListResult{}, err
	}

	visible := gate.Filter(records, req.Tier)
	total := len(visible)

	offset := (page - 1) * pageSize
	items := []View{}
	if offset < total {
		end := offset + pageSize
		if end > total {
			end = total
		}
		items = make([]View, 0, end-offset)
		for _, record := range visible[offset:end] {
			items = append(items, shape(record))
		}
	}

	s.metrics.ObserveQuery("list", string(req.Tier), "ok", time.Since(start))
	return ListResult{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Detail returns the shaped record for the match, prediction.ErrNotFound
// when no record exists, or prediction.ErrDenied when the record exists
// but the tier may not see it. The two outcomes stay distinct so callers
// can render an upgrade prompt instead of a missing-match message.
func (s *Service) Detail(ctx context.Context, matchID int64, tier prediction.Tier) (View, error) {
	start := time.Now()

	record, err := s.engine.GetByID(ctx, matchID)
	if err != nil {
		result := "error"
		if errors.Is(err, prediction.ErrNotFound) {
			result = "not_found"
		}
		s.metrics.ObserveQuery("detail", string(tier), result, time.Since(start))
		return View{}, err
	}

	authorized, err := gate.Authorize(record, tier)
	if err != nil {
		s.metrics.ObserveGateDenial(string(tier), string(record.Category))
		s.metrics.ObserveQuery("detail", string(tier), "denied", time.Since(start))
		s.logger.Debug("detail lookup denied",
			slog.Int64("match_id", matchID),
			slog.String("tier", string(tier)))
		return View{}, err
	}

	s.metrics.ObserveQuery("detail", string(tier), "ok", time.Since(start))
	return shape(authorized), nil
}
