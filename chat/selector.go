package chat

import (
	"fmt"

	"github.com/fwojciec/relay"
)

// Selection is the model and request-level instructions for one turn.
type Selection struct {
	Model        string
	Instructions string
}

// Selector picks a Selection for a session kind and message complexity.
// It must be a pure function of its inputs.
type Selector interface {
	Select(kind relay.SessionKind, c Complexity) (Selection, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(kind relay.SessionKind, c Complexity) (Selection, error)

// Select calls f.
func (f SelectorFunc) Select(kind relay.SessionKind, c Complexity) (Selection, error) {
	return f(kind, c)
}

// Table is a static Selector. Instructions apply to every complexity of a
// kind.
type Table struct {
	Models       map[relay.SessionKind]map[Complexity]string
	Instructions map[relay.SessionKind]string
}

// Select looks up the model for kind and c.
func (t Table) Select(kind relay.SessionKind, c Complexity) (Selection, error) {
	model := t.Models[kind][c]
	if model == "" {
		return Selection{}, fmt.Errorf("no model for %s/%s", kind, c)
	}
	return Selection{Model: model, Instructions: t.Instructions[kind]}, nil
}
