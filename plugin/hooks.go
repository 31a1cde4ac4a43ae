package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/leeforge/icons/logging"
	"go.uber.org/zap"
)

// HookTypeAll registers a handler for every type of a hook.
const HookTypeAll = "all"

// DefaultHookPriority is used by handlers that do not care about ordering.
const DefaultHookPriority = 500

// HookParams carries read-only context for a hook trigger.
type HookParams map[string]any

// HookHandler receives the current value and returns the value handed to the
// next handler. A handler returning an error leaves the value unchanged.
type HookHandler func(ctx context.Context, params HookParams, value any) (any, error)

type hookEntry struct {
	id       uint64
	priority int
	handler  HookHandler
}

// Hooks is a registry of filter hooks keyed by (name, type). Handlers run in
// ascending priority; equal priorities run in registration order.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[string]map[string][]hookEntry
	nextID   uint64
	logger   logging.Logger
}

func NewHooks(logger logging.Logger) *Hooks {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hooks{
		handlers: make(map[string]map[string][]hookEntry),
		logger:   logger,
	}
}

// Register adds handler for (name, typ) and returns a function removing it.
func (h *Hooks) Register(name, typ string, priority int, handler HookHandler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.handlers[name] == nil {
		h.handlers[name] = make(map[string][]hookEntry)
	}
	h.handlers[name][typ] = append(h.handlers[name][typ], hookEntry{id: id, priority: priority, handler: handler})

	return func() { h.unregister(name, typ, id) }
}

func (h *Hooks) unregister(name, typ string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.handlers[name][typ]
	for i, e := range entries {
		if e.id == id {
			h.handlers[name][typ] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Has reports whether any handler would run for (name, typ).
func (h *Hooks) Has(name, typ string) bool {
	return len(h.matching(name, typ)) > 0
}

func (h *Hooks) matching(name, typ string) []hookEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byType := h.handlers[name]
	entries := append([]hookEntry{}, byType[typ]...)
	if typ != HookTypeAll {
		entries = append(entries, byType[HookTypeAll]...)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].id < entries[j].id
	})
	return entries
}

// TriggerAs threads value through every matching handler and returns the
// result. A handler result of another type than T is discarded and logged.
func TriggerAs[T any](ctx context.Context, h *Hooks, name, typ string, params HookParams, value T) T {
	if h == nil {
		return value
	}
	for _, e := range h.matching(name, typ) {
		next, err := e.handler(ctx, params, value)
		if err != nil {
			logging.WithContext(h.logger, ctx).Warn("hook handler failed",
				zap.String("hook", name), zap.String("type", typ), zap.Error(err))
			continue
		}
		typed, ok := next.(T)
		if !ok {
			logging.WithContext(h.logger, ctx).Warn("hook handler returned wrong type",
				zap.String("hook", name), zap.String("type", typ))
			continue
		}
		value = typed
	}
	return value
}
