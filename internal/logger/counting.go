package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Counts tallies warning and error records.
type Counts struct {
	warnings atomic.Int64
	errors   atomic.Int64
}

// Warnings returns the number of WARN records seen.
func (c *Counts) Warnings() int { return int(c.warnings.Load()) }

// Errors returns the number of ERROR records seen.
func (c *Counts) Errors() int { return int(c.errors.Load()) }

// Reset zeroes both counters.
func (c *Counts) Reset() {
	c.warnings.Store(0)
	c.errors.Store(0)
}

// CountingHandler wraps another handler and records WARN and ERROR levels
// before delegating. Records are counted even when the wrapped handler
// filters them out.
type CountingHandler struct {
	next   slog.Handler
	counts *Counts
}

// NewCountingHandler wraps next, adding to counts.
func NewCountingHandler(next slog.Handler, counts *Counts) *CountingHandler {
	return &CountingHandler{next: next, counts: counts}
}

// Enabled always accepts WARN and above so they are counted.
func (h *CountingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || h.next.Enabled(ctx, level)
}

// Handle counts the record and forwards it when the wrapped handler wants it.
func (h *CountingHandler) Handle(ctx context.Context, r slog.Record) error {
	switch {
	case r.Level >= slog.LevelError:
		h.counts.errors.Add(1)
	case r.Level >= slog.LevelWarn:
		h.counts.warnings.Add(1)
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a counting handler sharing the same tally.
func (h *CountingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CountingHandler{next: h.next.WithAttrs(attrs), counts: h.counts}
}

// WithGroup returns a counting handler sharing the same tally.
func (h *CountingHandler) WithGroup(name string) slog.Handler {
	return &CountingHandler{next: h.next.WithGroup(name), counts: h.counts}
}
