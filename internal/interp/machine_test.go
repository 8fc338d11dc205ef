package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

// headerFunc builds i64 f(%block* %p) returning the header word of p.
func headerFunc() *ir.Func {
	m := ir.NewModule()
	header := types.NewStruct(types.I64)
	block := types.NewStruct(header, types.NewArray(0, types.NewPointer(types.I64)), types.I64)
	m.NewTypeDef("blockheader", header)
	m.NewTypeDef("block", block)

	p := ir.NewParam("p", types.NewPointer(block))
	fn := m.NewFunc("header", types.I64, p)
	entry := fn.NewBlock("entry")
	zero := constant.NewInt(types.I32, 0)
	ptr := entry.NewGetElementPtr(block, p, constant.NewInt(types.I64, 0), zero, zero)
	entry.NewRet(entry.NewLoad(types.I64, ptr))
	return fn
}

func TestHeapAddresses(t *testing.T) {
	h := NewHeap()
	a := h.Alloc(3, 1, 2)
	b := h.Alloc(4)
	if a&1 != 0 || b&1 != 0 {
		t.Errorf("block addresses must not look immediate: %#x %#x", a, b)
	}
	if a == b {
		t.Fatal("allocations share an address")
	}
	o, err := h.Object(a)
	if err != nil {
		t.Fatal(err)
	}
	if o.Tag() != 3 || len(o.Fields) != 2 || o.Fields[1] != 2 {
		t.Errorf("object = %+v", o)
	}
	if got := h.Immediate(7); got != 7<<32|1 {
		t.Errorf("Immediate(7) = %#x", got)
	}
	if _, err := h.Object(h.Immediate(7)); err == nil {
		t.Error("dereferencing an immediate must fail")
	}
	if _, err := h.Object(0x8); err == nil {
		t.Error("unknown address must fail")
	}
}

func TestLoadHeader(t *testing.T) {
	h := NewHeap()
	m := New(h)
	fn := headerFunc()

	got, err := m.Call(fn, h.Alloc(42, 9))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 42 {
		t.Errorf("got=%d, want=42", got)
	}
	if len(m.Trace) != 1 || m.Trace[0] != "header:entry" {
		t.Errorf("trace = %v", m.Trace)
	}

	if _, err := m.Call(fn, h.Immediate(42)); err == nil || !strings.Contains(err.Error(), "immediate") {
		t.Errorf("loading through an immediate = %v", err)
	}
}

func TestPhiFollowsPredecessor(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.I1)
	fn := m.NewFunc("pick", types.I64, x)
	entry := fn.NewBlock("entry")
	yes := fn.NewBlock("yes")
	no := fn.NewBlock("no")
	join := fn.NewBlock("join")
	entry.NewCondBr(x, yes, no)
	yes.NewBr(join)
	no.NewBr(join)
	phi := join.NewPhi(
		ir.NewIncoming(constant.NewInt(types.I64, 10), yes),
		ir.NewIncoming(constant.NewInt(types.I64, 20), no))
	join.NewRet(phi)

	tests := []struct {
		in   uint64
		want uint64
	}{{1, 10}, {0, 20}, {3, 10}, {2, 20}}
	for _, tt := range tests {
		vm := New(NewHeap())
		got, err := vm.Call(fn, tt.in)
		if err != nil {
			t.Fatalf("Call(%d): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Call(%d) got=%d, want=%d", tt.in, got, tt.want)
		}
	}
}

func TestSwitchAndExternals(t *testing.T) {
	m := ir.NewModule()
	act := m.NewFunc("act", types.I64, ir.NewParam("", types.I64))
	abort := m.NewFunc("abort", types.Void)

	x := ir.NewParam("x", types.I64)
	fn := m.NewFunc("dispatch", types.I64, x)
	entry := fn.NewBlock("entry")
	hit := fn.NewBlock("hit")
	miss := fn.NewBlock("miss")
	entry.NewSwitch(x, miss, ir.NewCase(constant.NewInt(types.I64, 5), hit))
	shifted := hit.NewLShr(x, constant.NewInt(types.I64, 1))
	hit.NewRet(hit.NewCall(act, shifted))
	miss.NewCall(abort)
	miss.NewUnreachable()

	vm := New(NewHeap())
	vm.Externals["act"] = func(args []uint64) (uint64, error) { return args[0] * 10, nil }

	got, err := vm.Call(fn, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 20 {
		t.Errorf("got=%d, want=20", got)
	}
	if len(vm.Calls) != 1 || vm.Calls[0].Function != "act" || vm.Calls[0].Args[0] != 2 {
		t.Errorf("calls = %+v", vm.Calls)
	}

	vm.Reset()
	if _, err := vm.Call(fn, 6); !errors.Is(err, ErrStuck) {
		t.Errorf("miss = %v, want ErrStuck", err)
	}
	if len(vm.Trace) != 2 || vm.Trace[1] != "dispatch:miss" {
		t.Errorf("trace = %v", vm.Trace)
	}

	delete(vm.Externals, "act")
	if _, err := vm.Call(fn, 5); err == nil || !strings.Contains(err.Error(), "no implementation for act") {
		t.Errorf("missing external = %v", err)
	}
}

func TestUnreachableAndArity(t *testing.T) {
	m := ir.NewModule()
	fn := m.NewFunc("dead", types.Void)
	fn.NewBlock("entry").NewUnreachable()

	vm := New(NewHeap())
	if _, err := vm.Call(fn); !errors.Is(err, ErrUnreachable) {
		t.Errorf("got %v, want ErrUnreachable", err)
	}
	if _, err := vm.Call(fn, 1); err == nil {
		t.Error("extra argument must fail")
	}
}

func TestTruncMasks(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.I64)
	fn := m.NewFunc("low", types.I32, x)
	entry := fn.NewBlock("entry")
	entry.NewRet(entry.NewTrunc(x, types.I32))

	got, err := New(NewHeap()).Call(fn, 0x1_0000_0007)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("got=%#x, want=7", got)
	}
}
