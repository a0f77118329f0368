package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/client"
	apperrors "github.com/tareqmamari/loglens/internal/errors"
	"github.com/tareqmamari/loglens/internal/record"
)

// HTTPStore reads collections and events from the log store REST API.
type HTTPStore struct {
	client *client.Client
	logger *zap.Logger
}

// NewHTTPStore returns a Store backed by c.
func NewHTTPStore(c *client.Client, logger *zap.Logger) *HTTPStore {
	return &HTTPStore{client: c, logger: logger}
}

type listCollectionsResponse struct {
	Collections []struct {
		Name string `json:"name"`
	} `json:"collections"`
}

type filterEventsRequest struct {
	StartTime     int64  `json:"startTime"`
	EndTime       int64  `json:"endTime"`
	FilterPattern string `json:"filterPattern,omitempty"`
	NextToken     string `json:"nextToken,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type filterEventsResponse struct {
	Events    []record.RawEvent `json:"events"`
	NextToken string            `json:"nextToken"`
}

// ListCollections implements Store.
func (s *HTTPStore) ListCollections(ctx context.Context, limit int) ([]string, error) {
	req := &client.Request{
		Method: http.MethodGet,
		Path:   "/v1/collections",
	}
	if limit > 0 {
		req.Query = map[string]string{"limit": strconv.Itoa(limit)}
	}

	var out listCollectionsResponse
	if _, err := s.client.DoJSON(ctx, req, &out); err != nil {
		return nil, translate(err)
	}

	names := make([]string, 0, len(out.Collections))
	for _, c := range out.Collections {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

// FetchPage implements Store.
func (s *HTTPStore) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	if req.Collection == "" {
		return nil, apperrors.NewMissingParameter("collectionName")
	}

	body := filterEventsRequest{
		StartTime:     req.StartTime.UnixMilli(),
		EndTime:       req.EndTime.UnixMilli(),
		FilterPattern: req.FilterExpression,
		NextToken:     req.ContinuationToken,
		Limit:         req.MaxPageSize,
	}

	var out filterEventsResponse
	_, err := s.client.DoJSON(ctx, &client.Request{
		Method: http.MethodPost,
		Path:   "/v1/collections/" + url.PathEscape(req.Collection) + "/events:filter",
		Body:   body,
	}, &out)
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Debug("Fetched page",
		zap.String("collection", req.Collection),
		zap.Int("events", len(out.Events)),
		zap.Bool("more", out.NextToken != ""),
	)

	return &Page{Events: out.Events, ContinuationToken: out.NextToken}, nil
}

// translate maps HTTP status failures onto the structured error taxonomy.
func translate(err error) error {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return apperrors.FromHTTPStatus(statusErr.StatusCode, statusErr.Body).WithCause(err)
	}
	if strings.Contains(err.Error(), "authentication failed") {
		return apperrors.NewAuthFailed(err.Error()).WithCause(err)
	}
	return fmt.Errorf("log store request failed: %w", err)
}
