// Package query runs paginated queries against the log store, normalizes the
// results and computes aggregates over them.
package query

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/cache"
	"github.com/tareqmamari/loglens/internal/config"
	apperrors "github.com/tareqmamari/loglens/internal/errors"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/record"
	"github.com/tareqmamari/loglens/internal/store"
	"github.com/tareqmamari/loglens/internal/tracing"
)

// TimeRange is a closed query window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// FieldFilters are exact-match filters applied after normalization. Zero
// values disable a filter.
type FieldFilters struct {
	Level      record.Level `json:"level,omitempty"`
	StatusCode *int         `json:"statusCode,omitempty"`
}

// IsZero reports whether no filter is set.
func (f FieldFilters) IsZero() bool {
	return f.Level == "" && f.StatusCode == nil
}

func (f FieldFilters) match(r record.Record) bool {
	if f.Level != "" && r.Level != f.Level {
		return false
	}
	if f.StatusCode != nil && !r.HasStatus(*f.StatusCode) {
		return false
	}
	return true
}

// Params selects the records returned by Query.
type Params struct {
	// Collection falls back to the configured default when empty.
	Collection string
	// TimeRange defaults to the configured window ending now.
	TimeRange *TimeRange
	// FilterExpression is passed to the store unchanged.
	FilterExpression string
	FieldFilters     FieldFilters
}

// Service queries the log store. It is safe for concurrent use.
type Service struct {
	store       store.Store
	normalizer  *record.Normalizer
	cfg         *config.Config
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *metrics.Metrics
	collections *cache.Cache[[]string]
}

// NewService creates a Service. m may be nil; a nil clock means wall-clock time.
func NewService(st store.Store, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		store:       st,
		normalizer:  record.NewNormalizer(clk),
		cfg:         cfg,
		clock:       clk,
		logger:      logger,
		metrics:     m,
		collections: cache.New[[]string](16, cfg.CollectionCacheTTL, clk),
	}
}

// ResolveCollection returns name, or the configured default collection
// when name is empty.
func (s *Service) ResolveCollection(name string) string {
	if name == "" {
		return s.cfg.DefaultCollection
	}
	return name
}

// Window returns the range [now-d, now].
func (s *Service) Window(d time.Duration) TimeRange {
	now := s.clock.Now()
	return TimeRange{Start: now.Add(-d), End: now}
}

// Query fetches every page of the selected collection, normalizes each event
// and applies the field filters. Any store error fails the whole call with a
// QUERY_FAILURE; partial results are never returned.
func (s *Service) Query(ctx context.Context, p Params) ([]record.Record, error) {
	collection := s.ResolveCollection(p.Collection)
	if collection == "" {
		return nil, apperrors.NewConfiguration("no collection specified: pass collectionName or set DEFAULT_COLLECTION")
	}

	window := s.Window(s.cfg.DefaultWindow())
	if p.TimeRange != nil {
		window = *p.TimeRange
	}

	ctx, span := tracing.StoreSpan(ctx, "query", collection)
	defer span.End()

	var records []record.Record
	pages, err := s.paginate(ctx, store.PageRequest{
		Collection:       collection,
		StartTime:        window.Start,
		EndTime:          window.End,
		FilterExpression: p.FilterExpression,
		MaxPageSize:      s.cfg.MaxResultsPerQuery,
	}, func(events []record.RawEvent) {
		for _, e := range events {
			if e.Message == "" && e.TimestampMillis == nil {
				continue
			}
			r := s.normalizer.Normalize(e, collection)
			if p.FieldFilters.match(r) {
				records = append(records, r)
			}
		}
	})
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.Warn("Query failed",
			zap.String("collection", collection),
			zap.Int("pages", pages),
			zap.Error(err),
		)
		return nil, apperrors.NewQueryFailure(collection, err)
	}

	tracing.SetResultCount(span, len(records))
	s.logger.Debug("Query completed",
		zap.String("collection", collection),
		zap.Int("pages", pages),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// CountEvents returns the number of raw events in collection over the last
// window, paginating through the whole result set.
func (s *Service) CountEvents(ctx context.Context, collection string, window time.Duration) (int, error) {
	collection = s.ResolveCollection(collection)
	if collection == "" {
		return 0, apperrors.NewConfiguration("no collection specified: pass a collection or set DEFAULT_COLLECTION")
	}

	ctx, span := tracing.StoreSpan(ctx, "count", collection)
	defer span.End()

	tr := s.Window(window)
	total := 0
	_, err := s.paginate(ctx, store.PageRequest{
		Collection:  collection,
		StartTime:   tr.Start,
		EndTime:     tr.End,
		MaxPageSize: s.cfg.MaxResultsPerQuery,
	}, func(events []record.RawEvent) {
		total += len(events)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return 0, apperrors.NewQueryFailure(collection, err)
	}
	tracing.SetResultCount(span, total)
	return total, nil
}

// paginate requests pages until the store returns no continuation token,
// passing each page's events to fn. It returns the number of pages fetched.
func (s *Service) paginate(ctx context.Context, req store.PageRequest, fn func([]record.RawEvent)) (int, error) {
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		page, err := s.store.FetchPage(ctx, req)
		if err != nil {
			return pages, err
		}
		pages++
		if s.metrics != nil {
			s.metrics.RecordStorePage(len(page.Events))
		}
		fn(page.Events)

		if page.ContinuationToken == "" {
			return pages, nil
		}
		req.ContinuationToken = page.ContinuationToken
	}
}
