// Package layout maps definition metadata onto LLVM types: the physical
// type of each value category and the struct type of each constructor's
// block. It also owns the function declarations of a module so that every
// caller gets the same *ir.Func for a name.
package layout

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/symbols"
)

// Types is the per-module type and declaration registry.
type Types struct {
	Module     *ir.Module
	Definition *symbols.Definition

	named  map[string]types.Type
	blocks map[*symbols.Symbol]*types.StructType
	funcs  map[string]*ir.Func
}

// New creates a registry for m. Types already defined in m are reused.
func New(m *ir.Module, def *symbols.Definition) *Types {
	t := &Types{
		Module:     m,
		Definition: def,
		named:      make(map[string]types.Type),
		blocks:     make(map[*symbols.Symbol]*types.StructType),
		funcs:      make(map[string]*ir.Func),
	}
	for _, td := range m.TypeDefs {
		t.named[td.Name()] = td
	}
	for _, f := range m.Funcs {
		t.funcs[f.Name()] = f
	}
	return t
}

// opaque returns the named opaque struct type name, defining it on first use.
func (t *Types) opaque(name string) types.Type {
	if typ, ok := t.named[name]; ok {
		return typ
	}
	typ := t.Module.NewTypeDef(name, &types.StructType{Opaque: true})
	t.named[name] = typ
	return typ
}

// BlockHeader returns %blockheader = type { i64 }.
func (t *Types) BlockHeader() types.Type {
	if typ, ok := t.named[config.BlockHeaderTypeName]; ok {
		return typ
	}
	typ := t.Module.NewTypeDef(config.BlockHeaderTypeName, types.NewStruct(types.I64))
	t.named[config.BlockHeaderTypeName] = typ
	return typ
}

// childArray is the zero-length array that follows the header of every block.
func childArray() types.Type {
	return types.NewArray(0, types.NewPointer(types.I64))
}

// Block returns %block = type { %blockheader, [0 x i64*] }, the type every
// term pointer is declared with.
func (t *Types) Block() types.Type {
	if typ, ok := t.named[config.BlockTypeName]; ok {
		return typ
	}
	typ := t.Module.NewTypeDef(config.BlockTypeName, types.NewStruct(t.BlockHeader(), childArray()))
	t.named[config.BlockTypeName] = typ
	return typ
}

// BlockPtr returns %block*.
func (t *Types) BlockPtr() *types.PointerType {
	return types.NewPointer(t.Block())
}

// ValueType returns the physical type of values of the given category.
func (t *Types) ValueType(cat symbols.ValueCategory) types.Type {
	switch cat.Cat {
	case symbols.BoolCat:
		return types.I1
	case symbols.MIntCat:
		return types.NewInt(uint64(cat.Width))
	case symbols.IntCat:
		return types.NewPointer(t.opaque(config.MpzTypeName))
	case symbols.FloatCat:
		return types.NewPointer(t.opaque(config.FloatingTypeName))
	case symbols.StringBufferCat:
		return types.NewPointer(t.opaque(config.StringBufferTypeName))
	case symbols.MapCat:
		return types.NewPointer(t.opaque(config.MapTypeName))
	case symbols.ListCat:
		return types.NewPointer(t.opaque(config.ListTypeName))
	case symbols.SetCat:
		return types.NewPointer(t.opaque(config.SetTypeName))
	default:
		return t.BlockPtr()
	}
}

// BlockType returns the struct layout of blocks built by constructor sym:
// the header, the child array and one field per argument, in order.
func (t *Types) BlockType(sym *symbols.Symbol) (*types.StructType, error) {
	if sym == nil {
		return nil, fmt.Errorf("layout: nil constructor")
	}
	if st, ok := t.blocks[sym]; ok {
		return st, nil
	}
	if sym.IsDomainValue() {
		return nil, fmt.Errorf("layout: %s has no block layout", sym.Name)
	}

	fields := []types.Type{t.BlockHeader(), childArray()}
	for _, arg := range sym.Arguments {
		fields = append(fields, t.ValueType(arg.Category))
	}
	name := config.BlockTypePrefix + mangle(sym.Name)
	if typ, ok := t.named[name]; ok {
		st, ok := typ.(*types.StructType)
		if !ok || len(st.Fields) != len(fields) {
			return nil, fmt.Errorf("layout: %s already defined as %s", name, typ.LLString())
		}
		t.blocks[sym] = st
		return st, nil
	}
	st := types.NewStruct(fields...)
	t.Module.NewTypeDef(name, st)
	t.named[name] = st
	t.blocks[sym] = st
	return st, nil
}

// Tag returns the numeric tag of sym.
func (t *Types) Tag(sym *symbols.Symbol) uint32 {
	return sym.Tag
}

// Function returns the function called name, declaring it with the given
// signature if the module does not have it yet. An existing function is
// returned as is.
func (t *Types) Function(name string, ret types.Type, params ...types.Type) *ir.Func {
	if f, ok := t.funcs[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, p := range params {
		ps[i] = ir.NewParam("", p)
	}
	f := t.Module.NewFunc(name, ret, ps...)
	t.funcs[name] = f
	return f
}

// Lookup returns the function called name, if declared.
func (t *Types) Lookup(name string) (*ir.Func, bool) {
	f, ok := t.funcs[name]
	return f, ok
}

// mangle keeps identifier characters and hex-escapes the rest so that
// symbol names like `'Unds'Plus'Int` or `\dv` make valid type names.
// Escapes are fixed width, so distinct names never mangle alike.
func mangle(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "$%06x", r)
		}
	}
	return sb.String()
}
