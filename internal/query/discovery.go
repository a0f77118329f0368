package query

import (
	"context"
	"strconv"
	"strings"
)

// ListCollections returns the collection names known to the store, up to the
// configured listing limit. Results are cached for CollectionCacheTTL.
func (s *Service) ListCollections(ctx context.Context) ([]string, error) {
	limit := s.cfg.CollectionListLimit
	key := "list:" + strconv.Itoa(limit)
	if names, ok := s.collections.Get(key); ok {
		return append([]string(nil), names...), nil
	}

	names, err := s.store.ListCollections(ctx, limit)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	s.collections.Set(key, names)
	return append([]string(nil), names...), nil
}

// SearchCollections returns the collections whose name contains pattern,
// ignoring case. An empty pattern matches nothing.
func (s *Service) SearchCollections(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		return []string{}, nil
	}
	all, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(pattern)
	matched := []string{}
	for _, name := range all {
		if strings.Contains(strings.ToLower(name), needle) {
			matched = append(matched, name)
		}
	}
	return matched, nil
}
