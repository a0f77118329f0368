package record

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// MaxMessageLength is the number of characters kept from a raw message.
const MaxMessageLength = 500

// TruncationMarker is appended to messages cut at MaxMessageLength.
const TruncationMarker = "..."

// TimestampLayout is the ISO-8601 layout used for record timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	statusCodePattern = regexp.MustCompile(`\b([45]\d{2})\b`)
	requestIDPattern  = regexp.MustCompile(`(?i)(?:request|req|trace)[_-]?id[:\s]+([a-zA-Z0-9-]+)`)
)

// Field precedence for structured messages. The first present key wins.
var (
	levelKeys      = []string{"level", "severity", "logLevel"}
	statusCodeKeys = []string{"statusCode", "status"}
	requestIDKeys  = []string{"requestId", "traceId"}
	durationKeys   = []string{"duration", "responseTime"}
)

// derived holds the fields a strategy extracts from a raw message.
type derived struct {
	level      Level
	statusCode *int
	requestID  string
	duration   *float64
	metadata   map[string]interface{}
}

// strategy extracts derived fields from a raw message. It returns false when
// the message is not in the format it understands.
type strategy interface {
	apply(message string, out *derived) bool
}

// Normalizer turns raw store events into Records. Strategies are tried in
// order; the first that accepts the message wins. The zero value is not
// usable, construct with NewNormalizer.
type Normalizer struct {
	clock      clock.Clock
	strategies []strategy
}

// NewNormalizer returns a Normalizer using clk for missing timestamps and
// synthesized ids. A nil clock means wall-clock time.
func NewNormalizer(clk clock.Clock) *Normalizer {
	if clk == nil {
		clk = clock.New()
	}
	return &Normalizer{
		clock:      clk,
		strategies: []strategy{jsonStrategy{}, textStrategy{}},
	}
}

// Normalize converts one raw event into a Record. It never fails: unknown
// formats degrade to a plain INFO record carrying the message.
func (n *Normalizer) Normalize(raw RawEvent, collection string) Record {
	now := n.clock.Now()

	out := derived{level: LevelInfo}
	for _, s := range n.strategies {
		if s.apply(raw.Message, &out) {
			break
		}
	}

	metadata := out.metadata
	if metadata == nil {
		metadata = make(map[string]interface{}, 1)
	}
	metadata[MetadataCollectionKey] = collection

	ts := now
	if raw.TimestampMillis != nil {
		ts = time.UnixMilli(*raw.TimestampMillis)
	}

	id := raw.ID
	if id == "" {
		id = fmt.Sprintf("event-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
	}

	return Record{
		ID:             id,
		Timestamp:      FormatTimestamp(ts),
		Message:        Truncate(raw.Message),
		CollectionName: collection,
		Level:          out.level,
		StatusCode:     out.statusCode,
		RequestID:      out.requestID,
		Duration:       out.duration,
		Metadata:       metadata,
	}
}

// FormatTimestamp renders t in the record timestamp layout (UTC, millisecond precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Truncate caps s at MaxMessageLength characters, appending TruncationMarker when cut.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxMessageLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxMessageLength]) + TruncationMarker
}

// jsonStrategy handles messages that parse as JSON. Fields are extracted
// only from objects; other JSON values (numbers, strings, arrays) yield a
// plain INFO record. A bare null is left to the text heuristics.
type jsonStrategy struct{}

func (jsonStrategy) apply(message string, out *derived) bool {
	var value interface{}
	if err := json.Unmarshal([]byte(message), &value); err != nil || value == nil {
		return false
	}

	out.level = LevelInfo
	parsed, ok := value.(map[string]interface{})
	if !ok {
		return true
	}

	out.metadata = parsed
	if v, ok := firstPresent(parsed, levelKeys); ok {
		if s, isString := v.(string); isString {
			out.level = ParseLevel(s)
		}
	}
	for _, k := range statusCodeKeys {
		if f, ok := parsed[k].(float64); ok {
			if code, ok := integral(f); ok {
				out.statusCode = &code
			}
			break
		}
	}
	for _, k := range requestIDKeys {
		if s, ok := parsed[k].(string); ok {
			out.requestID = s
			break
		}
	}
	for _, k := range durationKeys {
		if f, ok := parsed[k].(float64); ok {
			d := f
			out.duration = &d
			break
		}
	}
	return true
}

// textStrategy applies keyword and pattern heuristics to free text. It
// accepts every message.
type textStrategy struct{}

func (textStrategy) apply(message string, out *derived) bool {
	out.level = ClassifyText(message)

	if m := statusCodePattern.FindStringSubmatch(message); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			out.statusCode = &code
		}
	}
	if m := requestIDPattern.FindStringSubmatch(message); m != nil {
		out.requestID = m[1]
	}
	return true
}

// integral returns f as an int when it is a whole number within the int range.
func integral(f float64) (int, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// ClassifyText returns the level implied by keywords in s. "error" is
// checked before "warn", which is checked before "debug".
func ClassifyText(s string) Level {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "error"):
		return LevelError
	case strings.Contains(lower, "warn"):
		return LevelWarn
	case strings.Contains(lower, "debug"):
		return LevelDebug
	}
	return LevelInfo
}

// firstPresent returns the first value among keys that is set and not a
// zero value (empty string, 0, false or null).
func firstPresent(m map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t == "" {
				continue
			}
		case float64:
			if t == 0 {
				continue
			}
		case bool:
			if !t {
				continue
			}
		}
		return v, true
	}
	return nil, false
}
