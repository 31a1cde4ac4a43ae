package plugin

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ConfigProvider gives plugins type-safe access to their scoped configuration.
type ConfigProvider interface {
	Get(key string) (any, bool)
	GetString(key string, defaultVal string) string
	GetInt(key string, defaultVal int) int
	GetBool(key string, defaultVal bool) bool
	Bind(target any) error
	IsEnabled() bool
}

// PluginConfigEntry is a ConfigProvider over one plugin's settings map, as
// found under plugins.<name> in the application config.
type PluginConfigEntry struct {
	name     string
	enabled  bool
	settings *viper.Viper
}

func NewPluginConfigEntry(name string, enabled bool, settings map[string]any) *PluginConfigEntry {
	v := viper.New()
	if settings != nil {
		_ = v.MergeConfigMap(settings)
	}
	return &PluginConfigEntry{name: name, enabled: enabled, settings: v}
}

func (c *PluginConfigEntry) Get(key string) (any, bool) {
	if !c.settings.IsSet(key) {
		return nil, false
	}
	return c.settings.Get(key), true
}

func (c *PluginConfigEntry) GetString(key string, defaultVal string) string {
	v, ok := c.Get(key)
	if !ok {
		return defaultVal
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return defaultVal
	}
	return s
}

func (c *PluginConfigEntry) GetInt(key string, defaultVal int) int {
	v, ok := c.Get(key)
	if !ok {
		return defaultVal
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func (c *PluginConfigEntry) GetBool(key string, defaultVal bool) bool {
	v, ok := c.Get(key)
	if !ok {
		return defaultVal
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// Bind decodes the settings into target using mapstructure tags, then fills
// remaining zero fields from `default` tags.
func (c *PluginConfigEntry) Bind(target any) error {
	if err := c.settings.Unmarshal(target); err != nil {
		return fmt.Errorf("bind plugin %q config: %w", c.name, err)
	}
	return defaults.Set(target)
}

func (c *PluginConfigEntry) IsEnabled() bool {
	return c.enabled
}

// NewMapConfigProvider creates an always-enabled ConfigProvider from a map.
func NewMapConfigProvider(settings map[string]any) *PluginConfigEntry {
	return NewPluginConfigEntry("", true, settings)
}

type emptyConfig struct{}

func (e *emptyConfig) Get(string) (any, bool)             { return nil, false }
func (e *emptyConfig) GetString(_ string, d string) string { return d }
func (e *emptyConfig) GetInt(_ string, d int) int          { return d }
func (e *emptyConfig) GetBool(_ string, d bool) bool       { return d }
func (e *emptyConfig) IsEnabled() bool                     { return false }

func (e *emptyConfig) Bind(target any) error {
	return defaults.Set(target)
}

// EmptyConfig returns a ConfigProvider that always returns defaults.
func EmptyConfig() ConfigProvider { return &emptyConfig{} }
