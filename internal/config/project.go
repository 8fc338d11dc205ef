package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Project represents the top-level matchgen.yaml configuration.
type Project struct {
	// Definition is the path of the definition file (sorts and symbols),
	// relative to the project file.
	Definition string `yaml:"definition"`

	// Trees lists the decision trees to lower, one native function each.
	Trees []TreeSpec `yaml:"trees"`

	// Output is the path of the emitted LLVM assembly.
	// Defaults to out.ll next to the project file.
	Output string `yaml:"output,omitempty"`

	// Cache is the path of the sqlite artifact cache. Caching is disabled
	// when empty.
	Cache string `yaml:"cache,omitempty"`

	// Verbose enables progress output on stderr.
	Verbose bool `yaml:"verbose,omitempty"`

	// Dir is the directory containing the project file. Not read from YAML.
	Dir string `yaml:"-"`
}

// TreeSpec binds a function symbol to the file holding its decision tree.
type TreeSpec struct {
	// Symbol is the name of the function symbol in the definition.
	Symbol string `yaml:"symbol"`

	// File is the decision tree file, relative to the project file.
	File string `yaml:"file"`
}

// LoadProject reads and parses a matchgen.yaml file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", path, err)
	}
	return ParseProject(data, path)
}

// ParseProject parses matchgen.yaml content from bytes.
// The path argument is used for error messages and to resolve relative paths.
func ParseProject(data []byte, path string) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := p.validate(path); err != nil {
		return nil, err
	}
	p.Dir = filepath.Dir(path)
	p.setDefaults()
	return &p, nil
}

// FindProject searches for a project file starting from dir and walking up
// to parent directories.
// Returns the path to the project file and nil error if found,
// or empty string and nil error if not found.
func FindProject(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ProjectFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (p *Project) validate(path string) error {
	if p.Definition == "" {
		return fmt.Errorf("%s: definition is required", path)
	}
	if len(p.Trees) == 0 {
		return fmt.Errorf("%s: no trees defined", path)
	}

	seen := make(map[string]int)
	for i, tree := range p.Trees {
		if tree.Symbol == "" {
			return fmt.Errorf("%s: trees[%d]: symbol is required", path, i)
		}
		if tree.File == "" {
			return fmt.Errorf("%s: trees[%d] (%s): file is required", path, i, tree.Symbol)
		}
		if prev, ok := seen[tree.Symbol]; ok {
			return fmt.Errorf("%s: trees[%d]: symbol %q already bound by trees[%d]",
				path, i, tree.Symbol, prev)
		}
		seen[tree.Symbol] = i
	}

	return nil
}

// setDefaults fills in default values for omitted fields.
func (p *Project) setDefaults() {
	if p.Output == "" {
		p.Output = DefaultFileName
	}
}

// Resolve returns path relative to the project directory, unless it is
// already absolute.
func (p *Project) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// DefinitionPath returns the resolved definition file path.
func (p *Project) DefinitionPath() string {
	return p.Resolve(p.Definition)
}

// OutputPath returns the resolved output file path.
func (p *Project) OutputPath() string {
	return p.Resolve(p.Output)
}

// CachePath returns the resolved cache path, or "" when caching is off.
func (p *Project) CachePath() string {
	return p.Resolve(p.Cache)
}
