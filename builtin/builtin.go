// Package builtin provides the demo tool catalog served by the relay binary.
package builtin

import (
	"time"

	"github.com/fwojciec/relay"
)

// Registerer accepts tool definitions.
type Registerer interface {
	Register(defs ...relay.ToolDefinition) error
}

// Definitions returns every built-in tool. now is the clock for
// current_time; nil means time.Now.
func Definitions(now func() time.Time) []relay.ToolDefinition {
	if now == nil {
		now = time.Now
	}
	return []relay.ToolDefinition{
		CurrentTime(now),
		WordCount(),
	}
}

// Register adds every built-in tool to r.
func Register(r Registerer, now func() time.Time) error {
	return r.Register(Definitions(now)...)
}
