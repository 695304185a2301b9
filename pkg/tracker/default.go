package tracker

import "sync/atomic"

var defaultAgent atomic.Pointer[Agent]

// SetDefault makes a the agent behind the package-level functions.
func SetDefault(a *Agent) {
	defaultAgent.Store(a)
}

// Default returns the agent set with SetDefault, or nil.
func Default() *Agent {
	return defaultAgent.Load()
}

// Track calls Track on the default agent.
func Track(name string, props map[string]any) { Default().Track(name, props) }

// Identify calls Identify on the default agent.
func Identify(userID string, traits map[string]any) { Default().Identify(userID, traits) }

// Flush calls Flush on the default agent.
func Flush() { Default().Flush() }

// GetIDs returns the default agent's ids.
func GetIDs() IDs { return Default().IDs() }
