package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/config"
	apperrors "github.com/tareqmamari/loglens/internal/errors"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/record"
	"github.com/tareqmamari/loglens/internal/store"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, st store.Store, mutate ...func(*config.Config)) (*Service, *clock.Mock) {
	t.Helper()
	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}
	mock := clock.NewMock()
	mock.Set(testNow)
	return NewService(st, cfg, zap.NewNop(), metrics.New(prometheus.NewRegistry(), zap.NewNop()), mock), mock
}

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

// pagedStore serves a fixed list of pages and records every request.
type pagedStore struct {
	pages    []*store.Page
	requests []store.PageRequest
	err      error
}

func (p *pagedStore) ListCollections(context.Context, int) ([]string, error) { return nil, nil }

func (p *pagedStore) FetchPage(_ context.Context, req store.PageRequest) (*store.Page, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	i := len(p.requests) - 1
	if i >= len(p.pages) {
		return &store.Page{}, nil
	}
	return p.pages[i], nil
}

func rawEvents(prefix string, n int) []record.RawEvent {
	out := make([]record.RawEvent, n)
	for i := range out {
		out[i] = record.RawEvent{
			ID:              fmt.Sprintf("%s-%d", prefix, i),
			TimestampMillis: millis(testNow.Add(-time.Minute)),
			Message:         fmt.Sprintf("line %d", i),
		}
	}
	return out
}

func TestQueryPaginatesUntilTokenExhausted(t *testing.T) {
	st := &pagedStore{pages: []*store.Page{
		{Events: rawEvents("a", 10), ContinuationToken: "t1"},
		{Events: rawEvents("b", 10), ContinuationToken: "t2"},
		{Events: rawEvents("c", 5)},
	}}
	svc, _ := newTestService(t, st)

	records, err := svc.Query(context.Background(), Params{Collection: "app-logs"})
	require.NoError(t, err)

	assert.Len(t, records, 25)
	require.Len(t, st.requests, 3)
	assert.Equal(t, "", st.requests[0].ContinuationToken)
	assert.Equal(t, "t1", st.requests[1].ContinuationToken)
	assert.Equal(t, "t2", st.requests[2].ContinuationToken)

	seen := make(map[string]bool)
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate record %s", r.ID)
		seen[r.ID] = true
		assert.Equal(t, "app-logs", r.CollectionName)
	}
}

func TestQueryDefaults(t *testing.T) {
	st := &pagedStore{}
	svc, _ := newTestService(t, st, func(c *config.Config) {
		c.DefaultCollection = "default-logs"
		c.MaxResultsPerQuery = 250
		c.DefaultTimeRangeHours = 6
	})

	_, err := svc.Query(context.Background(), Params{FilterExpression: "ERROR"})
	require.NoError(t, err)
	require.Len(t, st.requests, 1)

	req := st.requests[0]
	assert.Equal(t, "default-logs", req.Collection)
	assert.Equal(t, 250, req.MaxPageSize)
	assert.Equal(t, "ERROR", req.FilterExpression)
	assert.Equal(t, testNow, req.EndTime)
	assert.Equal(t, testNow.Add(-6*time.Hour), req.StartTime)
}

func TestQueryExplicitTimeRange(t *testing.T) {
	st := &pagedStore{}
	svc, _ := newTestService(t, st)
	tr := TimeRange{Start: testNow.Add(-time.Hour), End: testNow.Add(-30 * time.Minute)}

	_, err := svc.Query(context.Background(), Params{Collection: "c", TimeRange: &tr})
	require.NoError(t, err)
	assert.Equal(t, tr.Start, st.requests[0].StartTime)
	assert.Equal(t, tr.End, st.requests[0].EndTime)
}

func TestQueryWithoutCollection(t *testing.T) {
	st := &pagedStore{}
	svc, _ := newTestService(t, st)

	_, err := svc.Query(context.Background(), Params{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
	assert.Empty(t, st.requests)
}

func TestQueryFailureIsWrapped(t *testing.T) {
	cause := errors.New("AccessDeniedException: not authorized")
	st := &pagedStore{
		pages: []*store.Page{{Events: rawEvents("a", 3), ContinuationToken: "t1"}},
	}
	svc, _ := newTestService(t, st)

	// Fail on the second page: no partial data may leak out.
	failing := &failAfter{inner: st, after: 1, err: cause}
	svc.store = failing

	records, err := svc.Query(context.Background(), Params{Collection: "payments"})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeQueryFailure))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

type failAfter struct {
	inner store.Store
	after int
	calls int
	err   error
}

func (f *failAfter) ListCollections(ctx context.Context, limit int) ([]string, error) {
	return f.inner.ListCollections(ctx, limit)
}

func (f *failAfter) FetchPage(ctx context.Context, req store.PageRequest) (*store.Page, error) {
	f.calls++
	if f.calls > f.after {
		return nil, f.err
	}
	return f.inner.FetchPage(ctx, req)
}

func TestQueryFieldFilters(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Add("api",
		record.RawEvent{ID: "1", TimestampMillis: millis(testNow), Message: `{"level":"error","statusCode":500}`},
		record.RawEvent{ID: "2", TimestampMillis: millis(testNow), Message: `{"level":"error","statusCode":404}`},
		record.RawEvent{ID: "3", TimestampMillis: millis(testNow), Message: `{"level":"info","statusCode":500}`},
		record.RawEvent{ID: "4", TimestampMillis: millis(testNow), Message: "GET /x 500 error"},
	)
	svc, _ := newTestService(t, mem)

	status := 500
	tests := []struct {
		name    string
		filters FieldFilters
		want    []string
	}{
		{"no filters", FieldFilters{}, []string{"1", "2", "3", "4"}},
		{"level", FieldFilters{Level: record.LevelError}, []string{"1", "2", "4"}},
		{"status", FieldFilters{StatusCode: &status}, []string{"1", "3", "4"}},
		{"both", FieldFilters{Level: record.LevelError, StatusCode: &status}, []string{"1", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := svc.Query(context.Background(), Params{Collection: "api", FieldFilters: tt.filters})
			require.NoError(t, err)
			ids := make([]string, 0, len(records))
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestQuerySkipsEmptyEvents(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Add("c",
		record.RawEvent{ID: "blank"},
		record.RawEvent{ID: "untimed", Message: "hello"},
		record.RawEvent{ID: "silent", TimestampMillis: millis(testNow)},
	)
	svc, _ := newTestService(t, mem)

	records, err := svc.Query(context.Background(), Params{Collection: "c"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "untimed", records[0].ID)
	assert.Equal(t, "silent", records[1].ID)
}

func TestQueryHonoursCancellation(t *testing.T) {
	st := &pagedStore{pages: []*store.Page{{Events: rawEvents("a", 1), ContinuationToken: "t1"}}}
	svc, _ := newTestService(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Query(ctx, Params{Collection: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.requests)
}

func TestCountEvents(t *testing.T) {
	mem := store.NewMemoryStore()
	events := rawEvents("e", 25)
	events = append(events, record.RawEvent{ID: "old", TimestampMillis: millis(testNow.Add(-48 * time.Hour)), Message: "old"})
	mem.Add("c", events...)

	svc, _ := newTestService(t, mem, func(c *config.Config) { c.MaxResultsPerQuery = 10 })

	n, err := svc.CountEvents(context.Background(), "c", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, 3, mem.PageRequests())

	_, err = svc.CountEvents(context.Background(), "missing", time.Hour)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeQueryFailure))

	_, err = svc.CountEvents(context.Background(), "", time.Hour)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
}
