package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Entry is one log record captured during a test.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Capture is a slog.Handler that keeps every record in memory so tests
// can assert on what a component logged. All levels are recorded
// regardless of the logger's configured level.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
	t       *testing.T
}

// NewTestLogger returns a logger wired to a fresh Capture. Records are
// echoed to t.Logf so failing tests show the log stream.
func NewTestLogger(t *testing.T) (*slog.Logger, *Capture) {
	c := &Capture{t: t}
	return slog.New(c), c
}

// Enabled implements slog.Handler.
func (c *Capture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (c *Capture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	c.mu.Lock()
	c.entries = append(c.entries, Entry{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler. Attribute scoping is not needed
// for assertions, so the capture is returned unchanged.
func (c *Capture) WithAttrs([]slog.Attr) slog.Handler { return c }

// WithGroup implements slog.Handler.
func (c *Capture) WithGroup(string) slog.Handler { return c }

// Entries returns a copy of everything captured so far.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// AtLevel returns the captured entries with exactly the given level.
func (c *Capture) AtLevel(level slog.Level) []Entry {
	var out []Entry
	for _, e := range c.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether any entry's message contains substr.
func (c *Capture) HasMessage(substr string) bool {
	for _, e := range c.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// HasAttr reports whether any entry carries the attribute key with the
// given value.
func (c *Capture) HasAttr(key string, value any) bool {
	for _, e := range c.Entries() {
		if got, ok := e.Attrs[key]; ok && got == value {
			return true
		}
	}
	return false
}

// Count returns the number of captured entries.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset discards everything captured so far.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
}
