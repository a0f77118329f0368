package store

import (
	"fmt"
	"time"

	"github.com/tareqmamari/loglens/internal/record"
)

// NewDemoStore returns a MemoryStore seeded with a few collections whose
// events fall in the hour before now. It backs the memory:// store URL.
func NewDemoStore(now time.Time) *MemoryStore {
	m := NewMemoryStore()
	at := func(minutesAgo int) *int64 {
		ms := now.Add(-time.Duration(minutesAgo) * time.Minute).UnixMilli()
		return &ms
	}

	api := make([]record.RawEvent, 0, 12)
	for i := 0; i < 12; i++ {
		status, level := 200, "info"
		switch i % 4 {
		case 1:
			status, level = 404, "warn"
		case 3:
			status, level = 500, "error"
		}
		api = append(api, record.RawEvent{
			ID:              fmt.Sprintf("api-%02d", i),
			TimestampMillis: at(5 * i),
			Message: fmt.Sprintf(`{"level":%q,"statusCode":%d,"requestId":"req-%04d","duration":%d,"path":"/orders/%d"}`,
				level, status, 1000+i, 20+7*i, i),
		})
	}
	m.Add("/app/prod/api", api...)

	m.Add("/app/prod/worker",
		record.RawEvent{ID: "wrk-1", TimestampMillis: at(3), Message: "job 42 started trace-id: 9f2c"},
		record.RawEvent{ID: "wrk-2", TimestampMillis: at(2), Message: "ERROR job 42 failed: upstream returned 503"},
		record.RawEvent{ID: "wrk-3", TimestampMillis: at(1), Message: "WARN retry budget low for job 42"},
	)

	m.Add("/app/staging/api")
	return m
}
