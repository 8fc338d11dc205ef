package decision

import (
	"fmt"

	"golang.org/x/exp/maps"
)

// Problem is one construction-contract violation found by Validate.
type Problem struct {
	// Path locates the offending node, e.g. switch(x)/case[1]/leaf.
	Path    string
	Message string
}

func (p Problem) Error() string {
	return p.Path + ": " + p.Message
}

// Validate checks the contract a tree builder must honour before a tree is
// handed to the code generator. params are the names bound on entry.
// It reports every problem found rather than stopping at the first.
func Validate(root Node, params []string) []Problem {
	v := &validator{}
	scope := make(map[string]bool, len(params))
	for _, p := range params {
		scope[p] = true
	}
	v.node(root, "", scope)
	return v.problems
}

type validator struct {
	problems []Problem
}

func (v *validator) report(path, format string, args ...interface{}) {
	v.problems = append(v.problems, Problem{Path: orRoot(path), Message: fmt.Sprintf(format, args...)})
}

func (v *validator) uses(path string, scope map[string]bool, names []string) {
	for _, name := range names {
		if !scope[name] {
			v.report(path, "unbound variable %q", name)
		}
	}
}

func (v *validator) node(n Node, path string, scope map[string]bool) {
	switch n := n.(type) {
	case FailNode:
		return

	case *LeafNode:
		v.uses(join(path, "leaf"), scope, n.Arguments)

	case *FunctionNode:
		here := join(path, "function("+n.Name+")")
		v.uses(here, scope, n.Arguments)
		scope[n.Name] = true
		v.node(n.Child, here, scope)

	case *SwitchNode:
		v.switchNode(n, join(path, "switch("+n.Subject+")"), scope)

	case nil:
		v.report(path, "missing node")

	default:
		v.report(path, "unknown node type %T", n)
	}
}

func (v *validator) switchNode(n *SwitchNode, here string, scope map[string]bool) {
	v.uses(here, scope, []string{n.Subject})

	defaults, literals, structural := 0, 0, 0
	seen := make(map[string]int)
	for i := range n.Cases {
		c := &n.Cases[i]
		casePath := fmt.Sprintf("%s/case[%d]", here, i)

		var key string
		switch {
		case c.IsDefault():
			defaults++
			if defaults > 1 {
				v.report(casePath, "more than one default arm")
			}
			if len(c.Bindings) > 0 {
				v.report(casePath, "default arm cannot bind fields")
			}
		case c.IsLiteral():
			literals++
			if c.Literal == nil {
				v.report(casePath, "literal arm without a value")
			} else {
				key = "literal " + c.Literal.String()
			}
			if len(c.Bindings) > 0 {
				v.report(casePath, "literal arm cannot bind fields")
			}
		default:
			structural++
			key = "constructor " + c.Constructor.Name
			if len(c.Bindings) != c.Constructor.Arity() {
				v.report(casePath, "%s has %d fields but the arm binds %d",
					c.Constructor.Name, c.Constructor.Arity(), len(c.Bindings))
			}
		}
		if key != "" {
			if prev, ok := seen[key]; ok {
				v.report(casePath, "%s already handled by case[%d]", key, prev)
			} else {
				seen[key] = i
			}
		}

		// Each arm gets its own scope; nothing it binds is visible to its
		// siblings.
		armScope := maps.Clone(scope)
		for _, b := range c.Bindings {
			armScope[b] = true
		}
		v.node(c.Child, casePath, armScope)
	}

	if literals > 0 && structural > 0 {
		v.report(here, "switch mixes literal and constructor arms")
	}
}
