// Package decision defines the precompiled pattern-matching decision trees
// that the code generator lowers, together with their YAML form and a
// construction-contract validator.
package decision

import (
	"math/big"

	"github.com/funvibe/matchgen/internal/symbols"
)

// Node is a decision tree node: one of *SwitchNode, *FunctionNode,
// *LeafNode or FailNode. Trees are read-only once built.
type Node interface {
	decisionNode()
}

// SwitchNode dispatches on the constructor (or literal value) bound to
// Subject.
type SwitchNode struct {
	Subject string
	Cases   []Case
}

// Case is one arm of a switch. A nil Constructor marks the default arm.
type Case struct {
	Constructor *symbols.Symbol
	// Literal is set only for domain value arms.
	Literal *big.Int
	// Bindings name the constructor's fields, in field order.
	Bindings []string
	Child    Node
}

// IsDefault reports whether c is the default arm.
func (c *Case) IsDefault() bool {
	return c.Constructor == nil
}

// IsLiteral reports whether c compares a domain value.
func (c *Case) IsLiteral() bool {
	return c.Constructor != nil && c.Constructor.IsDomainValue()
}

// FunctionNode calls a side-effect-free evaluator and binds its result.
type FunctionNode struct {
	Name      string
	Function  string
	Arguments []string
	Result    symbols.ValueCategory
	Child     Node
}

// LeafNode calls the rule action and returns its result.
type LeafNode struct {
	Function  string
	Arguments []string
}

// FailNode is a guaranteed non-match.
type FailNode struct{}

// Fail is the only FailNode value trees need.
var Fail Node = FailNode{}

func (*SwitchNode) decisionNode()   {}
func (*FunctionNode) decisionNode() {}
func (*LeafNode) decisionNode()     {}
func (FailNode) decisionNode()      {}

// IsFail reports whether n is the fail terminal.
func IsFail(n Node) bool {
	_, ok := n.(FailNode)
	return ok
}
