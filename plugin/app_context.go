package plugin

import (
	"github.com/go-chi/chi/v5"
	"github.com/leeforge/icons/logging"
)

// AppContext is the dependency context handed to plugin lifecycle methods.
// Config is scoped to the plugin receiving the context.
type AppContext struct {
	Router   chi.Router
	Logger   logging.Logger
	Services *ServiceRegistry
	Config   ConfigProvider
	Events   EventBus
	Hooks    *Hooks
}

// ForPlugin returns a copy of the context carrying cfg and a logger named
// after the plugin.
func (a *AppContext) ForPlugin(name string, cfg ConfigProvider) *AppContext {
	c := *a
	if cfg == nil {
		cfg = EmptyConfig()
	}
	c.Config = cfg
	if c.Logger != nil {
		c.Logger = c.Logger.Named(name)
	}
	return &c
}
