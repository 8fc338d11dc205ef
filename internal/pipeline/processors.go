package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/llir/llvm/ir"

	"github.com/funvibe/matchgen/internal/cache"
	"github.com/funvibe/matchgen/internal/codegen"
	"github.com/funvibe/matchgen/internal/decision"
	"github.com/funvibe/matchgen/internal/diagnostics"
	"github.com/funvibe/matchgen/internal/layout"
	"github.com/funvibe/matchgen/internal/symbols"
)

// DefinitionLoader reads the project's definition file.
type DefinitionLoader struct{}

func (dl *DefinitionLoader) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Project == nil {
		ctx.report(diagnostics.NewError(diagnostics.ErrD001, "", "no project"))
		return ctx
	}
	path := ctx.Project.DefinitionPath()
	data, err := os.ReadFile(path)
	if err != nil {
		ctx.report(diagnostics.Wrap(diagnostics.ErrD001, path, err))
		return ctx
	}
	def, err := symbols.ParseDefinition(data, path)
	if err != nil {
		ctx.report(diagnostics.Wrap(diagnostics.ErrD001, path, err))
		return ctx
	}
	ctx.Definition = def
	ctx.DefinitionData = data
	return ctx
}

// TreeLoader reads every decision tree named by the project. A tree that
// fails to load is reported and left out; the others still load.
type TreeLoader struct{}

func (tl *TreeLoader) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Definition == nil {
		return ctx
	}
	for _, spec := range ctx.Project.Trees {
		path := ctx.Project.Resolve(spec.File)
		sym, ok := ctx.Definition.Symbol(spec.Symbol)
		if !ok || sym.IsDomainValue() {
			ctx.report(diagnostics.NewError(diagnostics.ErrD002, path,
				fmt.Sprintf("unknown function symbol %q", spec.Symbol)))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			ctx.report(diagnostics.Wrap(diagnostics.ErrD002, path, err))
			continue
		}
		root, err := decision.ParseTree(data, path, ctx.Definition)
		if err != nil {
			ctx.report(diagnostics.Wrap(diagnostics.ErrD002, path, err))
			continue
		}
		ctx.Trees = append(ctx.Trees, &Tree{Spec: spec, File: path, Data: data, Symbol: sym, Root: root})
	}
	return ctx
}

// Validator checks each loaded tree against its construction contract and
// reports every problem found, attributed to its node path.
type Validator struct{}

func (v *Validator) Process(ctx *PipelineContext) *PipelineContext {
	for _, t := range ctx.Trees {
		for _, p := range decision.Validate(t.Root, codegen.ParamNames(t.Symbol)) {
			ctx.report(diagnostics.NewError(diagnostics.ErrD003, t.File, p.Message).At(p.Path))
		}
	}
	return ctx
}

// Lowerer turns the trees into one module, or takes the module text from
// the cache when the inputs are unchanged. It does nothing once an earlier
// stage has failed.
type Lowerer struct{}

func (l *Lowerer) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Definition == nil || ctx.Failed() {
		return ctx
	}

	parts := [][]byte{ctx.DefinitionData}
	for _, t := range ctx.Trees {
		parts = append(parts, []byte(t.Spec.Symbol), t.Data)
	}
	ctx.Key = cache.Key(parts...)

	if ctx.Cache != nil {
		e, ok, err := ctx.Cache.Lookup(ctx.Context, ctx.Key)
		if err != nil {
			ctx.report(diagnostics.Wrap(diagnostics.ErrD005, ctx.Cache.Path(), err))
			return ctx
		}
		if ok {
			ctx.CacheHit = true
			ctx.Output = string(e.IR)
			return ctx
		}
	}

	m := ir.NewModule()
	lay := layout.New(m, ctx.Definition)
	fns := make([]*ir.Func, 0, len(ctx.Trees))
	for _, t := range ctx.Trees {
		fn, err := codegen.MakeEvalFunction(lay, t.Symbol, t.Root)
		if err != nil {
			ctx.report(diagnostics.Wrap(diagnostics.ErrD004, t.File, err))
			continue
		}
		fns = append(fns, fn)
	}
	if ctx.Failed() {
		return ctx
	}
	ctx.Module = m
	ctx.Functions = fns
	return ctx
}

// Emitter renders the module as LLVM assembly, writes it to the project's
// output path and stores it in the cache.
type Emitter struct{}

func (e *Emitter) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	if !ctx.CacheHit {
		if ctx.Module == nil {
			return ctx
		}
		ctx.Output = ctx.Module.String()
	}

	path := ctx.Project.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		ctx.report(diagnostics.Wrap(diagnostics.ErrD005, path, err))
		return ctx
	}
	if err := os.WriteFile(path, []byte(ctx.Output), 0o644); err != nil {
		ctx.report(diagnostics.Wrap(diagnostics.ErrD005, path, err))
		return ctx
	}
	ctx.Written = true

	if ctx.Cache != nil && !ctx.CacheHit {
		if _, err := ctx.Cache.Store(ctx.Context, ctx.Key, []byte(ctx.Output)); err != nil {
			ctx.report(diagnostics.Wrap(diagnostics.ErrD005, ctx.Cache.Path(), err))
		}
	}
	return ctx
}
