// Package mocklogger provides an slog handler that captures log records in
// memory for assertions in tests.
package mocklogger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

type Entry struct {
	Level   slog.Level
	Message string
}

// Handler implements slog.Handler and records every handled entry.
type Handler struct {
	mu      sync.Mutex
	entries []Entry
}

func (h *Handler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Entry{Level: r.Level, Message: r.Message})
	return nil
}

func (h *Handler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *Handler) WithGroup(_ string) slog.Handler {
	return h
}

// Entries returns a copy of everything logged so far.
func (h *Handler) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Contains reports whether any logged message contains substr.
func (h *Handler) Contains(substr string) bool {
	for _, e := range h.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// New returns a logger plus the handler to inspect afterwards.
func New() (*slog.Logger, *Handler) {
	h := &Handler{}
	return slog.New(h), h
}
