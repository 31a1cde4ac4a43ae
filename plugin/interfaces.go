package plugin

import (
	"context"

	"github.com/go-chi/chi/v5"
)

// Plugin is the minimal interface every plugin must implement.
type Plugin interface {
	Name() string
	Version() string
	Dependencies() []string
	Enable(ctx context.Context, app *AppContext) error
}

// --- Optional Capability Interfaces ---
// Runtime detects these via type assertion: if p, ok := plugin.(RouteProvider); ok { ... }

// Disableable -- cleanup on shutdown (release resources, flush buffers).
type Disableable interface {
	Disable(ctx context.Context, app *AppContext) error
}

// RouteProvider -- register HTTP routes.
type RouteProvider interface {
	RegisterRoutes(router chi.Router)
}

// MiddlewareProvider -- register HTTP middleware. Runs before any RouteProvider.
type MiddlewareProvider interface {
	RegisterMiddlewares(router chi.Router)
}

// HookProvider -- register filter hooks on other plugins' extension points.
type HookProvider interface {
	RegisterHooks(hooks *Hooks)
}

// EventSubscriber -- subscribe to system/plugin events.
type EventSubscriber interface {
	SubscribeEvents(bus EventBus)
}

// HealthReporter -- provide custom health checks.
type HealthReporter interface {
	HealthCheck(ctx context.Context) error
}

// Configurable -- declare plugin options (optional flag, description).
type Configurable interface {
	PluginOptions() PluginOptions
}

type PluginOptions struct {
	Optional    bool   // If true, failure does not abort bootstrap.
	Description string
}
