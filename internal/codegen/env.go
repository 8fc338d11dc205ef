package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir/value"
	"golang.org/x/exp/maps"
)

// Env maps the variables of a decision tree to the IR values currently
// holding them. It is forked at every switch arm and extended in place
// along linear paths.
type Env map[string]value.Value

// NewEnv returns an empty environment.
func NewEnv() Env {
	return make(Env)
}

// Fork returns an independent copy of e.
func (e Env) Fork() Env {
	if e == nil {
		return NewEnv()
	}
	return maps.Clone(e)
}

// Bind binds name to v, replacing any previous binding.
func (e Env) Bind(name string, v value.Value) {
	e[name] = v
}

// Lookup returns the value bound to name.
func (e Env) Lookup(name string) (value.Value, error) {
	v, ok := e[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnbound, name)
	}
	return v, nil
}

// Values looks up names in order.
func (e Env) Values(names []string) ([]value.Value, error) {
	vals := make([]value.Value, len(names))
	for i, name := range names {
		v, err := e.Lookup(name)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}
