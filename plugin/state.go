package plugin

// PluginState is the lifecycle position of a registered plugin.
type PluginState int

const (
	StateRegistered PluginState = iota
	StateEnabled                // Enable() succeeded
	StateDisabled               // stopped during shutdown
	StateFailed                 // Enable() failed or a dependency failed
)

func (s PluginState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition happens in normal flow.
func (s PluginState) IsTerminal() bool {
	return s == StateFailed || s == StateDisabled
}
