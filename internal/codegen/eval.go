package codegen

import (
	"fmt"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/decision"
	"github.com/funvibe/matchgen/internal/layout"
	"github.com/funvibe/matchgen/internal/symbols"
)

// State is the build state of one eval function.
type State int

const (
	StateNew State = iota
	StateDeclared
	StateEntryOpen
	StateLowering
	StateClosed
)

var stateNames = [...]string{"New", "Declared", "EntryOpen", "Lowering", "Closed"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// EvalName returns the name of the native function for sym.
func EvalName(sym *symbols.Symbol) string {
	return config.EvalFuncPrefix + sym.Name
}

// ParamNames returns the names the arguments of sym are bound to on entry.
func ParamNames(sym *symbols.Symbol) []string {
	names := make([]string, sym.Arity())
	for i := range names {
		names[i] = config.SubjectPrefix + strconv.Itoa(i)
	}
	return names
}

// EntryBuilder synthesizes the native function of one symbol:
// Declare, Open and Lower must run in that order.
type EntryBuilder struct {
	Types  *layout.Types
	Symbol *symbols.Symbol

	state State
	fn    *ir.Func
	entry *ir.Block
	stuck *ir.Block
	env   Env
}

// NewEntryBuilder returns a builder for sym's eval function in t's module.
func NewEntryBuilder(t *layout.Types, sym *symbols.Symbol) *EntryBuilder {
	return &EntryBuilder{Types: t, Symbol: sym}
}

// State returns the current build state.
func (b *EntryBuilder) State() State {
	return b.state
}

// Function returns the function being built, nil before Declare.
func (b *EntryBuilder) Function() *ir.Func {
	return b.fn
}

func (b *EntryBuilder) expect(s State) error {
	if b.state != s {
		return fmt.Errorf("%w: %s is %s, want %s", ErrState, EvalName(b.Symbol), b.state, s)
	}
	return nil
}

// Declare declares eval_<symbol> with one parameter per argument sort and
// binds the parameters as subject0, subject1, ...
func (b *EntryBuilder) Declare() error {
	if err := b.expect(StateNew); err != nil {
		return err
	}
	if b.Symbol.Sort == nil {
		return fmt.Errorf("%s: symbol has no result sort", b.Symbol.Name)
	}

	name := EvalName(b.Symbol)
	ret := b.Types.ValueType(b.Symbol.Sort.Category)
	params := make([]types.Type, b.Symbol.Arity())
	for i, arg := range b.Symbol.Arguments {
		params[i] = b.Types.ValueType(arg.Category)
	}

	fn := b.Types.Function(name, ret, params...)
	if len(fn.Blocks) > 0 {
		return fmt.Errorf("%w: %s", ErrRedefined, name)
	}
	if !types.Equal(fn.Sig, types.NewFunc(ret, params...)) {
		return fmt.Errorf("%w: %s declared as %s", ErrSignature, name, fn.Sig)
	}

	b.env = NewEnv()
	for i, p := range fn.Params {
		p.SetName(config.SubjectPrefix + strconv.Itoa(i))
		b.env.Bind(p.Name(), p)
	}
	b.fn = fn
	b.state = StateDeclared
	return nil
}

// Open creates the entry block and the shared stuck block, which calls
// the no-return abort primitive.
func (b *EntryBuilder) Open() error {
	if err := b.expect(StateDeclared); err != nil {
		return err
	}
	b.entry = b.fn.NewBlock(config.EntryBlockName)
	b.stuck = b.fn.NewBlock(config.StuckBlockName)

	abort := b.Types.Function(config.AbortFuncName, types.Void)
	if !hasFuncAttr(abort, enum.FuncAttrNoReturn) {
		abort.FuncAttrs = append(abort.FuncAttrs, enum.FuncAttrNoReturn)
	}
	b.stuck.NewCall(abort)
	b.stuck.NewUnreachable()

	b.state = StateEntryOpen
	return nil
}

// Lower lowers root into the function body, then checks that every block
// ended with a terminator.
func (b *EntryBuilder) Lower(root decision.Node) error {
	if err := b.expect(StateEntryOpen); err != nil {
		return err
	}
	b.state = StateLowering

	d := NewDecision(b.Types, b.fn, b.entry, b.stuck, b.Symbol.Sort.Category)
	if err := d.Codegen(root, b.env); err != nil {
		return fmt.Errorf("%s: %w", EvalName(b.Symbol), err)
	}
	if err := Verify(b.fn); err != nil {
		return err
	}

	b.state = StateClosed
	return nil
}

// MakeEvalFunction builds the eval function of sym from its decision tree.
func MakeEvalFunction(t *layout.Types, sym *symbols.Symbol, root decision.Node) (*ir.Func, error) {
	b := NewEntryBuilder(t, sym)
	if err := b.Declare(); err != nil {
		return nil, err
	}
	if err := b.Open(); err != nil {
		return nil, err
	}
	if err := b.Lower(root); err != nil {
		return nil, err
	}
	return b.fn, nil
}

// Verify checks that every block of fn has a terminator.
func Verify(fn *ir.Func) error {
	for _, blk := range fn.Blocks {
		if blk.Term == nil {
			return fmt.Errorf("%w: %s in %s", ErrUnterminated, blk.Name(), fn.Name())
		}
	}
	return nil
}

func hasFuncAttr(f *ir.Func, attr ir.FuncAttribute) bool {
	for _, a := range f.FuncAttrs {
		if a == attr {
			return true
		}
	}
	return false
}
