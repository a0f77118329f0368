package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tareqmamari/loglens/internal/record"
)

// DefaultPageSize is used when a PageRequest carries no MaxPageSize.
const DefaultPageSize = 1000

// MemoryStore is an in-process Store. Continuation tokens are offsets into
// the filtered event list.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	collections map[string][]record.RawEvent
	failures    map[string]error

	pageRequests atomic.Int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]record.RawEvent),
		failures:    make(map[string]error),
	}
}

// Add appends events to collection, creating it if needed.
func (m *MemoryStore) Add(collection string, events ...record.RawEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.order = append(m.order, collection)
	}
	m.collections[collection] = append(m.collections[collection], events...)
}

// FailWith makes every FetchPage on collection return err.
func (m *MemoryStore) FailWith(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[collection] = err
}

// PageRequests returns the number of FetchPage calls served.
func (m *MemoryStore) PageRequests() int {
	return int(m.pageRequests.Load())
}

// ListCollections implements Store. Collections are returned in insertion order.
func (m *MemoryStore) ListCollections(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]string(nil), m.order[:n]...), nil
}

// FetchPage implements Store.
func (m *MemoryStore) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.pageRequests.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[req.Collection]; err != nil {
		return nil, err
	}
	events, ok := m.collections[req.Collection]
	if !ok {
		return nil, fmt.Errorf("ResourceNotFound: collection %q does not exist", req.Collection)
	}

	matched := make([]record.RawEvent, 0, len(events))
	for _, e := range events {
		if inWindow(e, req) && (req.FilterExpression == "" || strings.Contains(e.Message, req.FilterExpression)) {
			matched = append(matched, e)
		}
	}

	offset := 0
	if req.ContinuationToken != "" {
		o, err := strconv.Atoi(req.ContinuationToken)
		if err != nil || o < 0 || o > len(matched) {
			return nil, fmt.Errorf("InvalidParameter: bad continuation token %q", req.ContinuationToken)
		}
		offset = o
	}

	size := req.MaxPageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	end := min(offset+size, len(matched))

	page := &Page{Events: append([]record.RawEvent(nil), matched[offset:end]...)}
	if end < len(matched) {
		page.ContinuationToken = strconv.Itoa(end)
	}
	return page, nil
}

// inWindow reports whether e falls in the request's time range. Events without
// a timestamp always match.
func inWindow(e record.RawEvent, req PageRequest) bool {
	if e.TimestampMillis == nil {
		return true
	}
	ts := *e.TimestampMillis
	if !req.StartTime.IsZero() && ts < req.StartTime.UnixMilli() {
		return false
	}
	if !req.EndTime.IsZero() && ts > req.EndTime.UnixMilli() {
		return false
	}
	return true
}
