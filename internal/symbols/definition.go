// Package symbols holds the definition metadata the lowering consumes:
// sorts with their physical categories and symbols with their tags and
// argument sorts.
package symbols

import (
	"github.com/funvibe/matchgen/internal/config"
)

// Sort is a named sort of the definition.
type Sort struct {
	Name     string
	Category ValueCategory
}

// Symbol is a constructor or function symbol.
type Symbol struct {
	Name string
	// Tag is the numeric tag stored in block headers and immediates.
	Tag       uint32
	Arguments []*Sort
	Sort      *Sort
}

// IsDomainValue reports whether s is the literal constructor.
func (s *Symbol) IsDomainValue() bool {
	return s.Name == config.DomainValueCtor
}

// Arity is the number of arguments (block fields) of s.
func (s *Symbol) Arity() int {
	return len(s.Arguments)
}

func (s *Symbol) String() string {
	return s.Name
}

// Definition indexes the sorts and symbols of one definition.
type Definition struct {
	sorts   map[string]*Sort
	symbols map[string]*Symbol
	order   []*Symbol
}

// NewDefinition returns an empty definition that already knows the
// domain value constructor.
func NewDefinition() *Definition {
	d := &Definition{
		sorts:   make(map[string]*Sort),
		symbols: make(map[string]*Symbol),
	}
	d.symbols[config.DomainValueCtor] = &Symbol{Name: config.DomainValueCtor}
	return d
}

// AddSort registers a sort. It returns false if the name is taken.
func (d *Definition) AddSort(s *Sort) bool {
	if _, ok := d.sorts[s.Name]; ok {
		return false
	}
	d.sorts[s.Name] = s
	return true
}

// AddSymbol registers a symbol. It returns false if the name is taken.
func (d *Definition) AddSymbol(s *Symbol) bool {
	if _, ok := d.symbols[s.Name]; ok {
		return false
	}
	d.symbols[s.Name] = s
	d.order = append(d.order, s)
	return true
}

// Sort looks up a sort by name.
func (d *Definition) Sort(name string) (*Sort, bool) {
	s, ok := d.sorts[name]
	return s, ok
}

// Symbol looks up a symbol by name.
func (d *Definition) Symbol(name string) (*Symbol, bool) {
	s, ok := d.symbols[name]
	return s, ok
}

// Symbols returns the declared symbols in declaration order.
// The domain value constructor is not included.
func (d *Definition) Symbols() []*Symbol {
	return d.order
}
