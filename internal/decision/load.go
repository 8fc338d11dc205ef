package decision

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/symbols"
)

// The YAML form of a tree. A node is the scalar `fail` or a mapping with
// exactly one of the keys switch, function or leaf:
//
//	switch:
//	  subject: subject0
//	  cases:
//	    - constructor: Cons
//	      bindings: [hd, tl]
//	      next:
//	        leaf: {call: apply_rule_1, args: [hd, tl]}
//	    - next: fail
//
// Literal arms use `literal:` (an integer, true or false); their
// constructor defaults to \dv.

type rawNode struct {
	line     int
	fail     bool
	Switch   *rawSwitch   `yaml:"switch"`
	Function *rawFunction `yaml:"function"`
	Leaf     *rawLeaf     `yaml:"leaf"`
}

type rawSwitch struct {
	Subject string    `yaml:"subject"`
	Cases   []rawCase `yaml:"cases"`
}

type rawCase struct {
	Constructor string     `yaml:"constructor"`
	Literal     yaml.Node  `yaml:"literal"`
	Bindings    []string   `yaml:"bindings"`
	Next        *rawNode   `yaml:"next"`
}

type rawFunction struct {
	Name string   `yaml:"name"`
	Call string   `yaml:"call"`
	Args []string `yaml:"args"`
	Sort string   `yaml:"sort"`
	Next *rawNode `yaml:"next"`
}

type rawLeaf struct {
	Call string   `yaml:"call"`
	Args []string `yaml:"args"`
}

func (r *rawNode) UnmarshalYAML(value *yaml.Node) error {
	r.line = value.Line
	if value.Kind == yaml.ScalarNode {
		if value.Value == "fail" {
			r.fail = true
			return nil
		}
		return fmt.Errorf("line %d: unknown node %q", value.Line, value.Value)
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: node must be `fail` or a mapping", value.Line)
	}

	var body struct {
		Switch   *rawSwitch   `yaml:"switch"`
		Function *rawFunction `yaml:"function"`
		Leaf     *rawLeaf     `yaml:"leaf"`
	}
	if err := value.Decode(&body); err != nil {
		return err
	}
	n := 0
	for _, set := range []bool{body.Switch != nil, body.Function != nil, body.Leaf != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("line %d: node must have exactly one of switch, function, leaf", value.Line)
	}
	r.Switch, r.Function, r.Leaf = body.Switch, body.Function, body.Leaf
	return nil
}

// LoadTree reads and parses a decision tree file, resolving constructor
// and sort names against def.
func LoadTree(path string, def *symbols.Definition) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", path, err)
	}
	return ParseTree(data, path, def)
}

// ParseTree parses decision tree content from bytes.
// The path argument is used only for error messages.
func ParseTree(data []byte, path string, def *symbols.Definition) (Node, error) {
	var root rawNode
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if !root.fail && root.Switch == nil && root.Function == nil && root.Leaf == nil {
		return nil, fmt.Errorf("parsing %s: empty tree", path)
	}
	b := &builder{def: def}
	n, err := b.node(&root, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

type builder struct {
	def *symbols.Definition
}

func (b *builder) node(r *rawNode, path string) (Node, error) {
	if r == nil {
		return nil, fmt.Errorf("%s: missing next", orRoot(path))
	}
	switch {
	case r.fail:
		return Fail, nil

	case r.Leaf != nil:
		if r.Leaf.Call == "" {
			return nil, fmt.Errorf("%s (line %d): leaf call is required", join(path, "leaf"), r.line)
		}
		return &LeafNode{Function: r.Leaf.Call, Arguments: r.Leaf.Args}, nil

	case r.Function != nil:
		f := r.Function
		here := join(path, "function("+f.Name+")")
		if f.Name == "" || f.Call == "" {
			return nil, fmt.Errorf("%s (line %d): function name and call are required", here, r.line)
		}
		sort, ok := b.def.Sort(f.Sort)
		if !ok {
			return nil, fmt.Errorf("%s (line %d): unknown sort %q", here, r.line, f.Sort)
		}
		child, err := b.node(f.Next, here)
		if err != nil {
			return nil, err
		}
		return &FunctionNode{
			Name:      f.Name,
			Function:  f.Call,
			Arguments: f.Args,
			Result:    sort.Category,
			Child:     child,
		}, nil

	default:
		s := r.Switch
		here := join(path, "switch("+s.Subject+")")
		if s.Subject == "" {
			return nil, fmt.Errorf("%s (line %d): switch subject is required", here, r.line)
		}
		sw := &SwitchNode{Subject: s.Subject, Cases: make([]Case, 0, len(s.Cases))}
		for i := range s.Cases {
			c, err := b.arm(&s.Cases[i], fmt.Sprintf("%s/case[%d]", here, i))
			if err != nil {
				return nil, err
			}
			sw.Cases = append(sw.Cases, c)
		}
		return sw, nil
	}
}

func (b *builder) arm(rc *rawCase, path string) (Case, error) {
	var c Case
	name := rc.Constructor
	if name == "" && !rc.Literal.IsZero() {
		name = config.DomainValueCtor
	}
	if name != "" {
		sym, ok := b.def.Symbol(name)
		if !ok {
			return c, fmt.Errorf("%s: unknown constructor %q", path, name)
		}
		c.Constructor = sym
	}

	if !rc.Literal.IsZero() {
		if c.Constructor == nil || !c.Constructor.IsDomainValue() {
			return c, fmt.Errorf("%s: literal is only valid on %s arms", path, config.DomainValueCtor)
		}
		lit, err := parseLiteral(rc.Literal.Value)
		if err != nil {
			return c, fmt.Errorf("%s (line %d): %w", path, rc.Literal.Line, err)
		}
		c.Literal = lit
	} else if c.IsLiteral() {
		return c, fmt.Errorf("%s: %s arm requires a literal", path, config.DomainValueCtor)
	}

	c.Bindings = rc.Bindings
	child, err := b.node(rc.Next, path)
	if err != nil {
		return c, err
	}
	c.Child = child
	return c, nil
}

// parseLiteral accepts true, false and integers in any base strconv knows.
func parseLiteral(s string) (*big.Int, error) {
	switch s {
	case "true":
		return big.NewInt(1), nil
	case "false":
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid literal %q", s)
	}
	return v, nil
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "/" + elem
}

func orRoot(path string) string {
	if path == "" {
		return "root"
	}
	return path
}
