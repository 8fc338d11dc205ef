package pipeline

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Build returns the full build pipeline: load, validate, lower and emit.
func Build() *Pipeline {
	return New(
		&DefinitionLoader{},
		&TreeLoader{},
		&Validator{},
		&Lowerer{},
		&Emitter{},
	)
}

// Check returns the pipeline that loads and validates without lowering.
func Check() *Pipeline {
	return New(
		&DefinitionLoader{},
		&TreeLoader{},
		&Validator{},
	)
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors to collect diagnostics from all stages;
		// each stage skips itself when its inputs are missing.
	}
	return ctx
}
