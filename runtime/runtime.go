// Package runtime boots plugins in dependency order and wires their optional
// capabilities: middleware, routes, hooks, event subscriptions and health.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/plugin"
	"go.uber.org/zap"
)

type Config struct {
	Router      chi.Router
	Logger      logging.Logger
	EventBuffer int // default 1024
	// PluginConfig returns the scoped settings of a plugin; nil means none.
	PluginConfig func(name string) plugin.ConfigProvider
}

// Runtime manages plugin lifecycle with correct dependency ordering.
type Runtime struct {
	router       chi.Router
	logger       logging.Logger
	pluginConfig func(string) plugin.ConfigProvider

	plugins      map[string]plugin.Plugin
	pluginState  map[string]plugin.PluginState
	pluginErrors map[string]error
	pluginApps   map[string]*plugin.AppContext
	mu           sync.RWMutex

	bootOrder  []string
	appContext *plugin.AppContext
	eventBus   *eventBus
	hooks      *plugin.Hooks

	healthChecks map[string]func(context.Context) error
}

func NewRuntime(cfg Config) *Runtime {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Router == nil {
		cfg.Router = chi.NewRouter()
	}

	bus := NewEventBus(cfg.EventBuffer, cfg.Logger)
	hooks := plugin.NewHooks(cfg.Logger.Named("hooks"))

	rt := &Runtime{
		router:       cfg.Router,
		logger:       cfg.Logger,
		pluginConfig: cfg.PluginConfig,
		plugins:      make(map[string]plugin.Plugin),
		pluginState:  make(map[string]plugin.PluginState),
		pluginErrors: make(map[string]error),
		pluginApps:   make(map[string]*plugin.AppContext),
		eventBus:     bus,
		hooks:        hooks,
		healthChecks: make(map[string]func(context.Context) error),
	}

	rt.appContext = &plugin.AppContext{
		Router:   cfg.Router,
		Logger:   cfg.Logger,
		Services: plugin.NewServiceRegistry(),
		Config:   plugin.EmptyConfig(),
		Events:   bus,
		Hooks:    hooks,
	}

	return rt
}

// Services returns the registry for pre-registering core services such as
// "entity.store". Must be called before Bootstrap.
func (r *Runtime) Services() *plugin.ServiceRegistry {
	return r.appContext.Services
}

func (r *Runtime) Hooks() *plugin.Hooks {
	return r.hooks
}

func (r *Runtime) Router() chi.Router {
	return r.router
}

// Register adds a plugin. Must be called before Bootstrap.
func (r *Runtime) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}

	r.plugins[name] = p
	r.pluginState[name] = plugin.StateRegistered
	r.logger.Info("plugin registered", zap.String("name", name), zap.String("version", p.Version()))
	return nil
}

// Bootstrap enables all plugins in dependency order, then wires middleware,
// routes, hooks, event subscriptions and health checks of enabled plugins.
func (r *Runtime) Bootstrap(ctx context.Context) error {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	order, err := r.resolveDependencies()
	if err != nil {
		return fmt.Errorf("dependency resolution failed: %w", err)
	}
	r.bootOrder = order
	r.logger.Info("dependency resolution completed", zap.Strings("order", order))

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("bootstrap canceled: %w", err)
		}

		if depErr := r.checkDependenciesHealthy(name); depErr != nil {
			if abortErr := r.handlePluginError(name, depErr); abortErr != nil {
				return abortErr
			}
			continue
		}

		app := r.appFor(name)
		if err := r.plugins[name].Enable(ctx, app); err != nil {
			if abortErr := r.handlePluginError(name, fmt.Errorf("enable failed: %w", err)); abortErr != nil {
				return abortErr
			}
			continue
		}
		r.setState(name, plugin.StateEnabled)
	}

	enabled := r.enabledInOrder()

	// chi rejects middleware added after the first route.
	for _, name := range enabled {
		if p, ok := r.plugins[name].(plugin.MiddlewareProvider); ok {
			p.RegisterMiddlewares(r.router)
		}
	}
	for _, name := range enabled {
		if p, ok := r.plugins[name].(plugin.RouteProvider); ok {
			p.RegisterRoutes(r.router)
		}
	}
	for _, name := range enabled {
		if p, ok := r.plugins[name].(plugin.HookProvider); ok {
			p.RegisterHooks(r.hooks)
		}
	}
	for _, name := range enabled {
		if p, ok := r.plugins[name].(plugin.EventSubscriber); ok {
			p.SubscribeEvents(r.eventBus)
		}
	}
	for _, name := range enabled {
		if p, ok := r.plugins[name].(plugin.HealthReporter); ok {
			r.healthChecks[name] = p.HealthCheck
		}
	}

	r.logger.Info("bootstrap completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("plugins", len(r.plugins)),
		zap.Int("enabled", len(enabled)),
	)
	return nil
}

// Shutdown drains the event bus, then disables plugins in reverse boot order.
func (r *Runtime) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r.eventBus.Close()

	for _, name := range reverseSlice(r.bootOrder) {
		if state, _ := r.GetPluginState(name); state != plugin.StateEnabled {
			continue
		}
		if p, ok := r.plugins[name].(plugin.Disableable); ok {
			if err := p.Disable(shutdownCtx, r.appFor(name)); err != nil {
				r.logger.Error("plugin disable failed",
					zap.String("plugin", name), zap.Error(err))
			}
		}
		r.setState(name, plugin.StateDisabled)
	}

	r.logger.Info("shutdown completed")
	return nil
}

func (r *Runtime) Publish(ctx context.Context, event plugin.Event) error {
	return r.eventBus.Publish(ctx, event)
}

// Health runs every registered health check and returns the failures by plugin.
func (r *Runtime) Health(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

func (r *Runtime) GetPluginState(name string) (plugin.PluginState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.pluginState[name]
	return state, ok
}

// PluginError returns the error that moved a plugin to StateFailed.
func (r *Runtime) PluginError(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pluginErrors[name]
}

// ListPlugins returns a snapshot of all plugin states.
func (r *Runtime) ListPlugins() map[string]plugin.PluginState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]plugin.PluginState, len(r.pluginState))
	for k, v := range r.pluginState {
		result[k] = v
	}
	return result
}

func (r *Runtime) BootOrder() []string {
	return append([]string{}, r.bootOrder...)
}

// --- Internal ---

func (r *Runtime) appFor(name string) *plugin.AppContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	if app, ok := r.pluginApps[name]; ok {
		return app
	}
	var cfg plugin.ConfigProvider
	if r.pluginConfig != nil {
		cfg = r.pluginConfig(name)
	}
	app := r.appContext.ForPlugin(name, cfg)
	r.pluginApps[name] = app
	return app
}

func (r *Runtime) setState(name string, state plugin.PluginState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pluginState[name] = state
}

func (r *Runtime) enabledInOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var enabled []string
	for _, name := range r.bootOrder {
		if r.pluginState[name] == plugin.StateEnabled {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

func (r *Runtime) resolveDependencies() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inDegree := make(map[string]int, len(r.plugins))
	dependents := make(map[string][]string)

	for name := range r.plugins {
		inDegree[name] = 0
	}

	for name, p := range r.plugins {
		for _, dep := range p.Dependencies() {
			if _, exists := r.plugins[dep]; !exists {
				return nil, fmt.Errorf("plugin %q depends on %q which is not registered", name, dep)
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Kahn's algorithm; the queue is kept sorted for a deterministic order.
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, dep := range dependents[current] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(r.plugins) {
		return nil, errors.New("circular dependency detected")
	}

	return order, nil
}

func (r *Runtime) handlePluginError(name string, err error) error {
	r.mu.Lock()
	r.pluginState[name] = plugin.StateFailed
	r.pluginErrors[name] = err
	r.mu.Unlock()

	if r.getPluginOptions(name).Optional {
		r.logger.Warn("optional plugin failed, continuing",
			zap.String("plugin", name), zap.Error(err))
		return nil
	}

	return fmt.Errorf("required plugin %q failed: %w", name, err)
}

func (r *Runtime) getPluginOptions(name string) plugin.PluginOptions {
	if p, ok := r.plugins[name].(plugin.Configurable); ok {
		return p.PluginOptions()
	}
	return plugin.PluginOptions{}
}

func (r *Runtime) checkDependenciesHealthy(name string) error {
	for _, dep := range r.plugins[name].Dependencies() {
		if state, _ := r.GetPluginState(dep); state == plugin.StateFailed {
			return fmt.Errorf("dependency %q is in Failed state", dep)
		}
	}
	return nil
}

func reverseSlice(s []string) []string {
	n := len(s)
	reversed := make([]string, n)
	for i, v := range s {
		reversed[n-1-i] = v
	}
	return reversed
}
