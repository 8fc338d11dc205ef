// Package codegen lowers decision trees into LLVM IR: one native function
// per function symbol, dispatching on term tags with multi-way branches and
// ending in a call to the matched rule's action or in a shared abort block.
package codegen

import (
	"fmt"
	"math/big"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/decision"
	"github.com/funvibe/matchgen/internal/layout"
	"github.com/funvibe/matchgen/internal/symbols"
)

// Decision is the lowering context of one native function. It must not be
// shared between functions.
type Decision struct {
	Types    *layout.Types
	Function *ir.Func

	// CurrentBlock is where the next instruction is emitted.
	CurrentBlock *ir.Block

	// StuckBlock is the shared failure target of the function.
	StuckBlock *ir.Block

	// Result is the category of the function's return value.
	Result symbols.ValueCategory

	used map[string]bool
	next map[string]int
}

// NewDecision creates the lowering context for fn, emitting into entry and
// failing into stuck.
func NewDecision(t *layout.Types, fn *ir.Func, entry, stuck *ir.Block, result symbols.ValueCategory) *Decision {
	d := &Decision{
		Types:        t,
		Function:     fn,
		CurrentBlock: entry,
		StuckBlock:   stuck,
		Result:       result,
		used:         make(map[string]bool),
		next:         make(map[string]int),
	}
	for _, p := range fn.Params {
		d.used[p.Name()] = true
	}
	for _, b := range fn.Blocks {
		d.used[b.Name()] = true
	}
	return d
}

// Codegen lowers the tree rooted at entry, starting in the current block
// with the bindings of env.
func (d *Decision) Codegen(entry decision.Node, env Env) error {
	return d.lower(entry, env)
}

// localName returns base, or base with a numeric suffix if a block or
// value of the function already uses it.
func (d *Decision) localName(base string) string {
	for {
		n := d.next[base]
		d.next[base] = n + 1
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		if !d.used[name] {
			d.used[name] = true
			return name
		}
	}
}

func (d *Decision) newBlock(base string) *ir.Block {
	return d.Function.NewBlock(d.localName(base))
}

func (d *Decision) lower(n decision.Node, env Env) error {
	switch n := n.(type) {
	case *decision.SwitchNode:
		return d.lowerSwitch(n, env)
	case *decision.FunctionNode:
		return d.lowerFunction(n, env)
	case *decision.LeafNode:
		return d.lowerLeaf(n, env)
	case decision.FailNode:
		d.CurrentBlock.NewBr(d.StuckBlock)
		return nil
	default:
		return fmt.Errorf("codegen: unknown decision node %T", n)
	}
}

type arm struct {
	c      *decision.Case
	target *ir.Block
}

func (d *Decision) lowerSwitch(n *decision.SwitchNode, env Env) error {
	val, err := env.Lookup(n.Subject)
	if err != nil {
		return fmt.Errorf("switch on %s: %w", n.Subject, err)
	}

	defaultTarget := d.StuckBlock
	hasDefault := false
	literal := false
	arms := make([]arm, 0, len(n.Cases))
	idx := 0
	for i := range n.Cases {
		c := &n.Cases[i]
		target := d.StuckBlock
		if !decision.IsFail(c.Child) {
			target = d.newBlock(fmt.Sprintf("%s%s%d", n.Subject, config.CaseBlockInfix, idx))
			idx++
		}
		if c.IsDefault() {
			if hasDefault {
				return fmt.Errorf("switch on %s: %w", n.Subject, ErrMultipleDefaults)
			}
			hasDefault = true
			defaultTarget = target
		} else {
			literal = literal || c.IsLiteral()
		}
		arms = append(arms, arm{c: c, target: target})
	}

	if err := d.emitDispatch(n.Subject, val, literal, defaultTarget, arms); err != nil {
		return err
	}

	for _, a := range arms {
		if a.target == d.StuckBlock {
			continue
		}
		d.CurrentBlock = a.target
		armEnv := env.Fork()
		if !literal && !a.c.IsDefault() {
			if err := d.bindFields(val, a.c, armEnv); err != nil {
				return fmt.Errorf("switch on %s: %w", n.Subject, err)
			}
		}
		if err := d.lower(a.c.Child, armEnv); err != nil {
			return err
		}
	}
	return nil
}

// emitDispatch terminates the current block with the branch that selects
// an arm.
func (d *Decision) emitDispatch(subject string, val value.Value, literal bool, defaultTarget *ir.Block, arms []arm) error {
	cases := 0
	for _, a := range arms {
		if !a.c.IsDefault() {
			cases++
		}
	}
	if cases == 0 {
		d.CurrentBlock.NewBr(defaultTarget)
		return nil
	}

	seen := make(map[string]bool, cases)
	irCases := make([]*ir.Case, 0, cases)

	if literal {
		it, ok := val.Type().(*types.IntType)
		if !ok {
			return fmt.Errorf("switch on %s: %w (%s)", subject, ErrLiteralSubject, val.Type())
		}
		for _, a := range arms {
			if a.c.IsDefault() {
				continue
			}
			if a.c.Literal == nil {
				return fmt.Errorf("switch on %s: %w", subject, ErrMixedSwitch)
			}
			c := literalConst(it, a.c.Literal)
			key := c.X.String()
			if seen[key] {
				return fmt.Errorf("switch on %s: %w: %s", subject, ErrDuplicateCase, key)
			}
			seen[key] = true
			irCases = append(irCases, ir.NewCase(c, a.target))
		}
		d.CurrentBlock.NewSwitch(val, defaultTarget, irCases...)
		return nil
	}

	for _, a := range arms {
		if a.c.IsDefault() {
			continue
		}
		if seen[a.c.Constructor.Name] {
			return fmt.Errorf("switch on %s: %w: %s", subject, ErrDuplicateCase, a.c.Constructor.Name)
		}
		seen[a.c.Constructor.Name] = true
		tag := constant.NewInt(types.I32, int64(d.Types.Tag(a.c.Constructor)))
		irCases = append(irCases, ir.NewCase(tag, a.target))
	}
	tag, err := d.Tag(val)
	if err != nil {
		return fmt.Errorf("switch on %s: %w", subject, err)
	}
	d.CurrentBlock.NewSwitch(tag, defaultTarget, irCases...)
	return nil
}

// bindFields loads the fields of the block val, viewed through the layout
// of the arm's constructor, and binds them in env.
func (d *Decision) bindFields(val value.Value, c *decision.Case, env Env) error {
	if len(c.Bindings) == 0 {
		return nil
	}
	bt, err := d.Types.BlockType(c.Constructor)
	if err != nil {
		return err
	}
	if config.FirstFieldOffset+len(c.Bindings) > len(bt.Fields) {
		return fmt.Errorf("%w: %s has %d fields, arm binds %d",
			ErrArity, c.Constructor.Name, len(bt.Fields)-config.FirstFieldOffset, len(c.Bindings))
	}

	cast := d.CurrentBlock.NewBitCast(val, types.NewPointer(bt))
	for i, name := range c.Bindings {
		offset := config.FirstFieldOffset + i
		ptr := d.CurrentBlock.NewGetElementPtr(bt, cast,
			constant.NewInt(types.I64, 0),
			constant.NewInt(types.I32, int64(offset)))
		ptr.InBounds = true
		load := d.CurrentBlock.NewLoad(bt.Fields[offset], ptr)
		load.SetName(d.localName(name))
		env.Bind(name, load)
	}
	return nil
}

func (d *Decision) lowerFunction(n *decision.FunctionNode, env Env) error {
	args, err := env.Values(n.Arguments)
	if err != nil {
		return fmt.Errorf("function %s: %w", n.Name, err)
	}
	callee, err := d.callee(n.Function, d.Types.ValueType(n.Result), args)
	if err != nil {
		return fmt.Errorf("function %s: %w", n.Name, err)
	}
	call := d.CurrentBlock.NewCall(callee, args...)
	call.SetName(d.localName(n.Name))
	env.Bind(n.Name, call)
	return d.lower(n.Child, env)
}

func (d *Decision) lowerLeaf(n *decision.LeafNode, env Env) error {
	args, err := env.Values(n.Arguments)
	if err != nil {
		return fmt.Errorf("leaf %s: %w", n.Function, err)
	}
	callee, err := d.callee(n.Function, d.Types.ValueType(d.Result), args)
	if err != nil {
		return fmt.Errorf("leaf %s: %w", n.Function, err)
	}
	call := d.CurrentBlock.NewCall(callee, args...)
	d.CurrentBlock.NewRet(call)
	return nil
}

// callee declares name with parameter types taken from args, or checks an
// existing declaration against them.
func (d *Decision) callee(name string, ret types.Type, args []value.Value) (*ir.Func, error) {
	params := make([]types.Type, len(args))
	for i, a := range args {
		params[i] = a.Type()
	}
	f := d.Types.Function(name, ret, params...)
	if !types.Equal(f.Sig, types.NewFunc(ret, params...)) {
		return nil, fmt.Errorf("%w: %s declared as %s", ErrSignature, name, f.Sig)
	}
	return f, nil
}

// literalConst builds the case value of a literal arm, truncated to the
// subject's width.
func literalConst(t *types.IntType, lit *big.Int) *constant.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(t.BitSize))
	mask.Sub(mask, big.NewInt(1))
	return &constant.Int{Typ: t, X: new(big.Int).And(lit, mask)}
}
