// Package record defines the normalized log record and the normalizer that
// produces it from raw store events.
package record

import "strings"

// Level is the severity of a normalized record.
type Level string

// The four severities a record may carry.
const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelDebug Level = "DEBUG"
)

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError, LevelDebug:
		return true
	}
	return false
}

// ParseLevel uppercases s and returns the matching level. Values outside
// the known set, including common aliases, collapse to the nearest level or
// INFO so that a record's level is always valid.
func ParseLevel(s string) Level {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l.Valid() {
		return l
	}
	switch l {
	case "WARNING":
		return LevelWarn
	case "ERR", "FATAL", "CRITICAL", "PANIC":
		return LevelError
	case "TRACE":
		return LevelDebug
	}
	return LevelInfo
}

// MetadataCollectionKey is the metadata key holding the source collection.
const MetadataCollectionKey = "collectionName"

// Record is one normalized log entry. Records are created by the Normalizer
// and never mutated afterwards.
type Record struct {
	ID             string                 `json:"id"`
	Timestamp      string                 `json:"timestamp"`
	Message        string                 `json:"message"`
	CollectionName string                 `json:"collectionName,omitempty"`
	Level          Level                  `json:"level"`
	StatusCode     *int                   `json:"statusCode,omitempty"`
	RequestID      string                 `json:"requestId,omitempty"`
	Duration       *float64               `json:"duration,omitempty"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// HasStatus reports whether the record carries the given status code.
func (r Record) HasStatus(code int) bool {
	return r.StatusCode != nil && *r.StatusCode == code
}

// Sample is the reduced view of a record returned by sampling tools.
type Sample struct {
	Timestamp  string                 `json:"timestamp"`
	Message    string                 `json:"message"`
	Level      Level                  `json:"level"`
	StatusCode *int                   `json:"statusCode,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Sample returns the reduced view of r.
func (r Record) Sample() Sample {
	return Sample{
		Timestamp:  r.Timestamp,
		Message:    r.Message,
		Level:      r.Level,
		StatusCode: r.StatusCode,
		Metadata:   r.Metadata,
	}
}

// RawEvent is one event as returned by the log store, before normalization.
type RawEvent struct {
	ID              string `json:"eventId,omitempty"`
	TimestampMillis *int64 `json:"timestamp,omitempty"`
	Message         string `json:"message"`
}
