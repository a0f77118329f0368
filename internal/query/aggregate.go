package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tareqmamari/loglens/internal/record"
)

// DefaultTopPatterns is the number of error patterns returned by default.
const DefaultTopPatterns = 5

// patternTokens is the number of leading message tokens forming a pattern.
const patternTokens = 3

// NullKey is the aggregation key for records missing the field.
const NullKey = "null"

// CountByField counts records by the value at the dot path field of each
// record's JSON form, for example "statusCode" or "metadata.user.id".
// Records missing the field, or holding null, count under NullKey.
func CountByField(records []record.Record, field string) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[fieldKey(r, field)]++
	}
	return counts
}

func fieldKey(r record.Record, field string) string {
	b, err := json.Marshal(r)
	if err != nil {
		return NullKey
	}
	v := gjson.GetBytes(b, escapePath(field))
	if !v.Exists() || v.Type == gjson.Null {
		return NullKey
	}
	return v.String()
}

// escapePath escapes gjson syntax in each dot separated segment of field so
// that keys such as "a|b" or "*" match literally.
func escapePath(field string) string {
	segments := strings.Split(field, ".")
	for i, seg := range segments {
		segments[i] = gjson.Escape(seg)
	}
	return strings.Join(segments, ".")
}

// PatternCount is one error pattern and the number of records sharing it.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// String renders the pattern as "<pattern>: <n> occurrences".
func (p PatternCount) String() string {
	return fmt.Sprintf("%s: %d occurrences", p.Pattern, p.Count)
}

// TopErrorPatterns groups ERROR records by the first three whitespace
// separated tokens of their message and returns the k largest groups.
// Groups with equal counts keep the order in which they were first seen.
// k <= 0 means DefaultTopPatterns.
func TopErrorPatterns(records []record.Record, k int) []PatternCount {
	if k <= 0 {
		k = DefaultTopPatterns
	}

	var patterns []PatternCount
	index := make(map[string]int)
	for _, r := range records {
		if r.Level != record.LevelError {
			continue
		}
		tokens := strings.Fields(r.Message)
		if len(tokens) > patternTokens {
			tokens = tokens[:patternTokens]
		}
		key := strings.Join(tokens, " ")
		if i, ok := index[key]; ok {
			patterns[i].Count++
			continue
		}
		index[key] = len(patterns)
		patterns = append(patterns, PatternCount{Pattern: key, Count: 1})
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Count > patterns[j].Count
	})
	if len(patterns) > k {
		patterns = patterns[:k]
	}
	return patterns
}

// StatusCodeCounts counts records by status code, ignoring records without one.
func StatusCodeCounts(records []record.Record) map[int]int {
	counts := make(map[int]int)
	for _, r := range records {
		if r.StatusCode != nil && *r.StatusCode != 0 {
			counts[*r.StatusCode]++
		}
	}
	return counts
}
