// Package logbuf keeps a bounded in-memory tail of the daemon's log so the
// status API can serve recent entries without touching disk.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Query filters Tail results. Zero values mean "no constraint".
type Query struct {
	Since    time.Time
	MinLevel slog.Level
	Limit    int
}

// Buffer is a fixed-capacity ring of log entries, safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a buffer holding up to capacity entries; older entries are
// overwritten once the buffer fills.
func New(capacity int) *Buffer {
	return &Buffer{entries: make([]Entry, capacity)}
}

func (b *Buffer) append(e Entry) {
	b.mu.Lock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Tail returns matching entries, oldest first. A positive Limit keeps only
// the newest entries after filtering.
func (b *Buffer) Tail(q Query) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, n := 0, b.next
	if b.full {
		start, n = b.next, len(b.entries)
	}

	var result []Entry
	for i := 0; i < n; i++ {
		e := b.entries[(start+i)%len(b.entries)]
		if !q.Since.IsZero() && e.Time.Before(q.Since) {
			continue
		}
		if levelFromString(e.Level) < q.MinLevel {
			continue
		}
		result = append(result, e)
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[len(result)-q.Limit:]
	}
	return result
}

func levelFromString(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
