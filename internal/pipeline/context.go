package pipeline

import (
	"context"

	"github.com/llir/llvm/ir"

	"github.com/funvibe/matchgen/internal/cache"
	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/decision"
	"github.com/funvibe/matchgen/internal/diagnostics"
	"github.com/funvibe/matchgen/internal/symbols"
)

// Tree is a decision tree loaded for one function symbol.
type Tree struct {
	Spec   config.TreeSpec
	File   string
	Data   []byte
	Symbol *symbols.Symbol
	Root   decision.Node
}

// PipelineContext carries the state shared by the pipeline stages.
type PipelineContext struct {
	Context context.Context
	Project *config.Project

	// Cache, when set, is consulted before lowering and filled after.
	Cache *cache.Cache

	Definition     *symbols.Definition
	DefinitionData []byte
	Trees          []*Tree

	// Key identifies the inputs in the cache.
	Key       string
	CacheHit  bool
	Module    *ir.Module
	Functions []*ir.Func

	// Output is the emitted LLVM assembly.
	Output string
	// Written is set once Output has been saved to the project's output path.
	Written bool

	Errors []*diagnostics.DiagnosticError
}

// NewPipelineContext returns a context for building project.
func NewPipelineContext(ctx context.Context, project *config.Project) *PipelineContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &PipelineContext{Context: ctx, Project: project}
}

func (ctx *PipelineContext) report(err *diagnostics.DiagnosticError) {
	ctx.Errors = append(ctx.Errors, err)
}

// Failed reports whether any stage produced an error.
func (ctx *PipelineContext) Failed() bool {
	return len(ctx.Errors) > 0
}
