package interp

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/funvibe/matchgen/internal/config"
)

var (
	// ErrStuck is returned when execution reaches the abort primitive.
	ErrStuck = errors.New("interp: stuck")

	// ErrUnreachable is returned when execution reaches unreachable.
	ErrUnreachable = errors.New("interp: reached unreachable")
)

// maxBlocks bounds the number of blocks one call may enter.
const maxBlocks = 1 << 16

// External implements a function that is declared but not defined in the
// module.
type External func(args []uint64) (uint64, error)

// Call records one call to an external function.
type Call struct {
	Function string
	Args     []uint64
}

// Machine runs functions of one module.
type Machine struct {
	Heap      *Heap
	Externals map[string]External

	// Trace lists the blocks entered, as function:block.
	Trace []string
	// Calls lists the external calls made, in order.
	Calls []Call
}

// New returns a machine over heap.
func New(heap *Heap) *Machine {
	return &Machine{Heap: heap, Externals: make(map[string]External)}
}

// Reset clears the trace and call log.
func (m *Machine) Reset() {
	m.Trace = nil
	m.Calls = nil
}

// slot addresses a word inside a heap block: index 0 is the header,
// index n >= config.FirstFieldOffset is field n-FirstFieldOffset.
type slot struct {
	obj   *Object
	index int
}

// val is a runtime value: a word, or the address of a slot.
type val struct {
	word uint64
	slot *slot
}

type frame struct {
	fn   *ir.Func
	regs map[value.Value]val
}

// Call runs fn with the given argument words and returns its result.
func (m *Machine) Call(fn *ir.Func, args ...uint64) (uint64, error) {
	if len(fn.Blocks) == 0 {
		return m.external(fn.Name(), args)
	}
	if len(args) != len(fn.Params) {
		return 0, fmt.Errorf("interp: %s takes %d arguments, got %d", fn.Name(), len(fn.Params), len(args))
	}

	f := &frame{fn: fn, regs: make(map[value.Value]val)}
	for i, p := range fn.Params {
		f.regs[p] = val{word: mask(args[i], width(p.Type()))}
	}

	var prev *ir.Block
	blk := fn.Blocks[0]
	for steps := 0; steps < maxBlocks; steps++ {
		m.Trace = append(m.Trace, fn.Name()+":"+blk.Name())
		for _, inst := range blk.Insts {
			if err := m.exec(f, inst, prev); err != nil {
				return 0, fmt.Errorf("%s:%s: %w", fn.Name(), blk.Name(), err)
			}
		}

		var next *ir.Block
		switch term := blk.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return 0, nil
			}
			v, err := m.eval(f, term.X)
			if err != nil {
				return 0, err
			}
			return v.word, nil
		case *ir.TermBr:
			next = blockOf(term.Target)
		case *ir.TermCondBr:
			c, err := m.eval(f, term.Cond)
			if err != nil {
				return 0, err
			}
			if c.word&1 != 0 {
				next = blockOf(term.TargetTrue)
			} else {
				next = blockOf(term.TargetFalse)
			}
		case *ir.TermSwitch:
			x, err := m.eval(f, term.X)
			if err != nil {
				return 0, err
			}
			next = blockOf(term.TargetDefault)
			for _, c := range term.Cases {
				cv, err := m.eval(f, c.X)
				if err != nil {
					return 0, err
				}
				if cv.word == x.word {
					next = blockOf(c.Target)
					break
				}
			}
		case *ir.TermUnreachable:
			return 0, ErrUnreachable
		case nil:
			return 0, fmt.Errorf("interp: %s:%s has no terminator", fn.Name(), blk.Name())
		default:
			return 0, fmt.Errorf("interp: unsupported terminator %T", term)
		}
		if next == nil {
			return 0, fmt.Errorf("interp: %s:%s: branch target is not a block", fn.Name(), blk.Name())
		}
		prev, blk = blk, next
	}
	return 0, fmt.Errorf("interp: %s: block limit exceeded", fn.Name())
}

func (m *Machine) external(name string, args []uint64) (uint64, error) {
	m.Calls = append(m.Calls, Call{Function: name, Args: append([]uint64(nil), args...)})
	if name == config.AbortFuncName {
		return 0, ErrStuck
	}
	ext, ok := m.Externals[name]
	if !ok {
		return 0, fmt.Errorf("interp: no implementation for %s", name)
	}
	return ext(args)
}

func (m *Machine) exec(f *frame, inst ir.Instruction, prev *ir.Block) error {
	switch inst := inst.(type) {
	case *ir.InstPtrToInt:
		v, err := m.eval(f, inst.From)
		if err != nil {
			return err
		}
		f.regs[inst] = val{word: mask(v.word, width(inst.To))}

	case *ir.InstTrunc:
		v, err := m.eval(f, inst.From)
		if err != nil {
			return err
		}
		f.regs[inst] = val{word: mask(v.word, width(inst.To))}

	case *ir.InstBitCast:
		v, err := m.eval(f, inst.From)
		if err != nil {
			return err
		}
		f.regs[inst] = v

	case *ir.InstLShr:
		x, err := m.eval(f, inst.X)
		if err != nil {
			return err
		}
		y, err := m.eval(f, inst.Y)
		if err != nil {
			return err
		}
		f.regs[inst] = val{word: x.word >> y.word}

	case *ir.InstGetElementPtr:
		return m.gep(f, inst)

	case *ir.InstLoad:
		src, err := m.eval(f, inst.Src)
		if err != nil {
			return err
		}
		if src.slot == nil {
			return fmt.Errorf("interp: load from non-slot address %#x", src.word)
		}
		s := src.slot
		var w uint64
		if s.index == 0 {
			w = s.obj.Header
		} else {
			i := s.index - config.FirstFieldOffset
			if i < 0 || i >= len(s.obj.Fields) {
				return fmt.Errorf("interp: load of field %d of a block with %d fields", i, len(s.obj.Fields))
			}
			w = s.obj.Fields[i]
		}
		f.regs[inst] = val{word: mask(w, width(inst.ElemType))}

	case *ir.InstPhi:
		if prev == nil {
			return fmt.Errorf("interp: phi in entry block")
		}
		for _, inc := range inst.Incs {
			if blockOf(inc.Pred) == prev {
				v, err := m.eval(f, inc.X)
				if err != nil {
					return err
				}
				f.regs[inst] = v
				return nil
			}
		}
		return fmt.Errorf("interp: phi has no incoming value for %s", prev.Name())

	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return fmt.Errorf("interp: indirect call")
		}
		args := make([]uint64, len(inst.Args))
		for i, a := range inst.Args {
			v, err := m.eval(f, a)
			if err != nil {
				return err
			}
			args[i] = v.word
		}
		r, err := m.Call(callee, args...)
		if err != nil {
			return err
		}
		f.regs[inst] = val{word: r}

	default:
		return fmt.Errorf("interp: unsupported instruction %T", inst)
	}
	return nil
}

// gep resolves a struct field address of a block: indices are 0 then the
// field index, with trailing zeros selecting the header word.
func (m *Machine) gep(f *frame, inst *ir.InstGetElementPtr) error {
	src, err := m.eval(f, inst.Src)
	if err != nil {
		return err
	}
	if len(inst.Indices) < 2 {
		return fmt.Errorf("interp: unsupported gep with %d indices", len(inst.Indices))
	}
	idx := make([]uint64, len(inst.Indices))
	for i, x := range inst.Indices {
		v, err := m.eval(f, x)
		if err != nil {
			return err
		}
		idx[i] = v.word
	}
	if idx[0] != 0 {
		return fmt.Errorf("interp: gep across blocks")
	}
	for _, x := range idx[2:] {
		if x != 0 {
			return fmt.Errorf("interp: unsupported nested gep index %d", x)
		}
	}
	if idx[1] == 1 {
		return fmt.Errorf("interp: gep into the child array")
	}
	obj, err := m.Heap.Object(src.word)
	if err != nil {
		return err
	}
	f.regs[inst] = val{word: src.word, slot: &slot{obj: obj, index: int(idx[1])}}
	return nil
}

func (m *Machine) eval(f *frame, v value.Value) (val, error) {
	if r, ok := f.regs[v]; ok {
		return r, nil
	}
	if c, ok := v.(*constant.Int); ok {
		return val{word: intWord(c)}, nil
	}
	return val{}, fmt.Errorf("interp: unsupported operand %s", v.Ident())
}

// blockOf accepts a branch target whatever its static type.
func blockOf(v interface{}) *ir.Block {
	b, _ := v.(*ir.Block)
	return b
}

func width(t types.Type) uint64 {
	if it, ok := t.(*types.IntType); ok {
		return it.BitSize
	}
	return 64
}

func mask(w uint64, bits uint64) uint64 {
	if bits >= 64 {
		return w
	}
	return w & (1<<bits - 1)
}

func intWord(c *constant.Int) uint64 {
	m := new(big.Int).Lsh(big.NewInt(1), 64)
	m.Sub(m, big.NewInt(1))
	w := new(big.Int).And(c.X, m).Uint64()
	return mask(w, c.Typ.BitSize)
}
