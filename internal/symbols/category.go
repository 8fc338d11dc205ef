package symbols

import (
	"fmt"
	"strings"
)

// Category is the physical representation class of a sort.
type Category int

const (
	SymbolCat Category = iota
	VariableCat
	IntCat
	FloatCat
	StringBufferCat
	BoolCat
	MIntCat
	MapCat
	ListCat
	SetCat
)

var categoryNames = [...]string{
	SymbolCat:       "symbol",
	VariableCat:     "variable",
	IntCat:          "int",
	FloatCat:        "float",
	StringBufferCat: "stringbuffer",
	BoolCat:         "bool",
	MIntCat:         "mint",
	MapCat:          "map",
	ListCat:         "list",
	SetCat:          "set",
}

func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory maps a category name (case insensitive) to its Category.
func ParseCategory(name string) (Category, error) {
	lower := strings.ToLower(name)
	for i, n := range categoryNames {
		if n == lower {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// ValueCategory is a category together with its bit width, which is only
// meaningful for MIntCat.
type ValueCategory struct {
	Cat   Category
	Width int
}

func (v ValueCategory) String() string {
	if v.Cat == MIntCat {
		return fmt.Sprintf("mint%d", v.Width)
	}
	return v.Cat.String()
}

// IsBoxed reports whether values of this category live behind a pointer.
func (v ValueCategory) IsBoxed() bool {
	return v.Cat != BoolCat && v.Cat != MIntCat
}
