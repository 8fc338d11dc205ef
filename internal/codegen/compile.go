package codegen

import (
	"github.com/llir/llvm/ir"

	"github.com/funvibe/matchgen/internal/decision"
	"github.com/funvibe/matchgen/internal/layout"
	"github.com/funvibe/matchgen/internal/symbols"
)

// Tree pairs a function symbol with its decision tree.
type Tree struct {
	Symbol *symbols.Symbol
	Root   decision.Node
}

// Compile lowers trees, in order, into a new module.
func Compile(def *symbols.Definition, trees []Tree) (*ir.Module, []*ir.Func, error) {
	m := ir.NewModule()
	t := layout.New(m, def)
	fns := make([]*ir.Func, 0, len(trees))
	for _, tree := range trees {
		fn, err := MakeEvalFunction(t, tree.Symbol, tree.Root)
		if err != nil {
			return nil, nil, err
		}
		fns = append(fns, fn)
	}
	return m, fns, nil
}
