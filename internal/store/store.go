// Package store defines the paginated log store the query pipeline reads
// from, with an HTTP implementation and an in-memory one.
package store

import (
	"context"
	"time"

	"github.com/tareqmamari/loglens/internal/record"
)

// Store is a paginated source of raw log events grouped into collections.
// Implementations must be safe for concurrent use.
type Store interface {
	// ListCollections returns up to limit collection names. limit <= 0 means
	// the store's default.
	ListCollections(ctx context.Context, limit int) ([]string, error)
	// FetchPage returns one page of events. An empty ContinuationToken on
	// the returned page signals the end of the result set.
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// PageRequest selects one page of events from a collection.
type PageRequest struct {
	Collection        string
	StartTime         time.Time
	EndTime           time.Time
	FilterExpression  string
	ContinuationToken string
	MaxPageSize       int
}

// Page is one page of raw events.
type Page struct {
	Events            []record.RawEvent
	ContinuationToken string
}

// unavailable is a Store that fails every call with the same error. It stands
// in for a store whose settings are incomplete so that the server can start
// and report the problem on first use.
type unavailable struct{ err error }

// Unavailable returns a Store whose every call returns err.
func Unavailable(err error) Store { return unavailable{err: err} }

func (u unavailable) ListCollections(context.Context, int) ([]string, error) { return nil, u.err }

func (u unavailable) FetchPage(context.Context, PageRequest) (*Page, error) { return nil, u.err }
