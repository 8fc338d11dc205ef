package symbols

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// definitionFile is the YAML form of a definition.
type definitionFile struct {
	Sorts   []sortEntry   `yaml:"sorts"`
	Symbols []symbolEntry `yaml:"symbols"`
}

type sortEntry struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Width    int    `yaml:"width,omitempty"`
}

type symbolEntry struct {
	Name string `yaml:"name"`
	// Tag is optional; missing tags are assigned after the explicit ones.
	Tag  *uint32  `yaml:"tag,omitempty"`
	Args []string `yaml:"args,omitempty"`
	Sort string   `yaml:"sort"`
}

// LoadDefinition reads and parses a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition %s: %w", path, err)
	}
	return ParseDefinition(data, path)
}

// ParseDefinition parses definition content from bytes.
// The path argument is used only for error messages.
func ParseDefinition(data []byte, path string) (*Definition, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	def := NewDefinition()
	for i, e := range file.Sorts {
		if e.Name == "" {
			return nil, fmt.Errorf("%s: sorts[%d]: name is required", path, i)
		}
		cat, err := ParseCategory(e.Category)
		if err != nil {
			return nil, fmt.Errorf("%s: sorts[%d] (%s): %w", path, i, e.Name, err)
		}
		if cat == MIntCat && e.Width <= 0 {
			return nil, fmt.Errorf("%s: sorts[%d] (%s): mint requires a positive width", path, i, e.Name)
		}
		if cat != MIntCat && e.Width != 0 {
			return nil, fmt.Errorf("%s: sorts[%d] (%s): width is only valid for mint", path, i, e.Name)
		}
		if !def.AddSort(&Sort{Name: e.Name, Category: ValueCategory{Cat: cat, Width: e.Width}}) {
			return nil, fmt.Errorf("%s: sorts[%d]: duplicate sort %q", path, i, e.Name)
		}
	}

	used := make(map[uint32]string)
	for _, e := range file.Symbols {
		if e.Tag == nil {
			continue
		}
		if prev, ok := used[*e.Tag]; ok {
			return nil, fmt.Errorf("%s: symbols %q and %q share tag %d", path, prev, e.Name, *e.Tag)
		}
		used[*e.Tag] = e.Name
	}

	var next uint32
	for i, e := range file.Symbols {
		if e.Name == "" {
			return nil, fmt.Errorf("%s: symbols[%d]: name is required", path, i)
		}
		sym := &Symbol{Name: e.Name}

		if e.Tag != nil {
			sym.Tag = *e.Tag
		} else {
			for {
				if _, taken := used[next]; !taken {
					break
				}
				next++
			}
			sym.Tag = next
			used[next] = e.Name
		}

		sort, ok := def.Sort(e.Sort)
		if !ok {
			return nil, fmt.Errorf("%s: symbols[%d] (%s): unknown sort %q", path, i, e.Name, e.Sort)
		}
		sym.Sort = sort

		for j, arg := range e.Args {
			argSort, ok := def.Sort(arg)
			if !ok {
				return nil, fmt.Errorf("%s: symbols[%d] (%s): args[%d]: unknown sort %q", path, i, e.Name, j, arg)
			}
			sym.Arguments = append(sym.Arguments, argSort)
		}

		if !def.AddSymbol(sym) {
			return nil, fmt.Errorf("%s: symbols[%d]: duplicate symbol %q", path, i, e.Name)
		}
	}

	return def, nil
}
