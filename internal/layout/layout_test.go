package layout

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/symbols"
)

const def = `
sorts:
  - name: SortKItem
    category: symbol
  - name: SortInt
    category: int
  - name: SortBool
    category: bool
  - name: SortMInt16
    category: mint
    width: 16
symbols:
  - name: pair
    tag: 7
    args: [SortKItem, SortInt, SortBool, SortMInt16]
    sort: SortKItem
  - name: "'Unds'Plus'"
    sort: SortKItem
`

func newTypes(t *testing.T) *Types {
	t.Helper()
	d, err := symbols.ParseDefinition([]byte(def), "def.yaml")
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	return New(ir.NewModule(), d)
}

func TestValueType(t *testing.T) {
	ty := newTypes(t)
	tests := []struct {
		cat  symbols.ValueCategory
		want string
	}{
		{symbols.ValueCategory{Cat: symbols.SymbolCat}, "%block*"},
		{symbols.ValueCategory{Cat: symbols.VariableCat}, "%block*"},
		{symbols.ValueCategory{Cat: symbols.BoolCat}, "i1"},
		{symbols.ValueCategory{Cat: symbols.MIntCat, Width: 64}, "i64"},
		{symbols.ValueCategory{Cat: symbols.IntCat}, "%mpz*"},
		{symbols.ValueCategory{Cat: symbols.FloatCat}, "%floating*"},
		{symbols.ValueCategory{Cat: symbols.StringBufferCat}, "%stringbuffer*"},
		{symbols.ValueCategory{Cat: symbols.MapCat}, "%map*"},
		{symbols.ValueCategory{Cat: symbols.ListCat}, "%list*"},
		{symbols.ValueCategory{Cat: symbols.SetCat}, "%set*"},
	}
	for _, tt := range tests {
		if got := ty.ValueType(tt.cat).String(); got != tt.want {
			t.Errorf("ValueType(%v) = %s, want %s", tt.cat, got, tt.want)
		}
	}
}

func TestBlockType(t *testing.T) {
	ty := newTypes(t)
	pair, _ := ty.Definition.Symbol("pair")

	st, err := ty.BlockType(pair)
	if err != nil {
		t.Fatalf("BlockType: %v", err)
	}
	if st.Name() != "block_pair" {
		t.Errorf("name = %q, want block_pair", st.Name())
	}
	if len(st.Fields) != config.FirstFieldOffset+pair.Arity() {
		t.Fatalf("got %d fields, want %d", len(st.Fields), config.FirstFieldOffset+pair.Arity())
	}
	want := []string{"%blockheader", "[0 x i64*]", "%block*", "%mpz*", "i1", "i16"}
	for i, f := range st.Fields {
		if f.String() != want[i] {
			t.Errorf("field %d = %s, want %s", i, f, want[i])
		}
	}

	again, _ := ty.BlockType(pair)
	if again != st {
		t.Error("BlockType must be memoized")
	}
	if ty.Tag(pair) != 7 {
		t.Errorf("Tag = %d, want 7", ty.Tag(pair))
	}

	plus, _ := ty.Definition.Symbol("'Unds'Plus'")
	pst, err := ty.BlockType(plus)
	if err != nil {
		t.Fatalf("BlockType: %v", err)
	}
	if pst.Name() != "block_$000027Unds$000027Plus$000027" {
		t.Errorf("mangled name = %q", pst.Name())
	}

	dv, _ := ty.Definition.Symbol(config.DomainValueCtor)
	if _, err := ty.BlockType(dv); err == nil {
		t.Error("domain values have no block layout")
	}
}

func TestFunctionGetOrInsert(t *testing.T) {
	ty := newTypes(t)
	f := ty.Function("hook", types.I1, ty.BlockPtr(), types.I64)
	if len(f.Params) != 2 {
		t.Fatalf("got %d params, want 2", len(f.Params))
	}
	g := ty.Function("hook", types.I64)
	if f != g {
		t.Error("second lookup must return the existing declaration")
	}
	if len(ty.Module.Funcs) != 1 {
		t.Errorf("module has %d funcs, want 1", len(ty.Module.Funcs))
	}

	// A registry over an existing module sees its declarations.
	ty2 := New(ty.Module, ty.Definition)
	if h, ok := ty2.Lookup("hook"); !ok || h != f {
		t.Error("existing declaration not indexed")
	}
}

func TestMangleIsInjective(t *testing.T) {
	tests := []struct{ a, b string }{
		{"\x012", "\x12"},
		{"'a", "$27a"},
		{"\u00e9", "\xe9"},
	}
	for _, tt := range tests {
		if mangle(tt.a) == mangle(tt.b) {
			t.Errorf("mangle(%q) == mangle(%q) == %q", tt.a, tt.b, mangle(tt.a))
		}
	}
	if got := mangle("\\dv"); got != "$00005cdv" {
		t.Errorf("mangle(`\\dv`) = %q", got)
	}
}

func TestBlockTypeReusesModuleTypeDefs(t *testing.T) {
	ty := newTypes(t)
	pair, _ := ty.Definition.Symbol("pair")
	st, err := ty.BlockType(pair)
	if err != nil {
		t.Fatalf("BlockType: %v", err)
	}

	ty2 := New(ty.Module, ty.Definition)
	st2, err := ty2.BlockType(pair)
	if err != nil {
		t.Fatalf("second registry: %v", err)
	}
	if st2 != st {
		t.Error("second registry must reuse block_pair")
	}
	n := 0
	for _, td := range ty.Module.TypeDefs {
		if td.Name() == "block_pair" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("block_pair defined %d times, want 1", n)
	}
}
