package decision

// Walk calls fn for every node of the tree in pre-order. Switch arms are
// visited in case order. If fn returns false the children of that node are
// skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *SwitchNode:
		for i := range n.Cases {
			Walk(n.Cases[i].Child, fn)
		}
	case *FunctionNode:
		Walk(n.Child, fn)
	}
}

// Stats counts the nodes of a tree by kind.
type Stats struct {
	Switches  int
	Cases     int
	Functions int
	Leaves    int
	Fails     int
}

// Count returns the node statistics of the tree rooted at n.
func Count(n Node) Stats {
	var s Stats
	Walk(n, func(n Node) bool {
		switch n := n.(type) {
		case *SwitchNode:
			s.Switches++
			s.Cases += len(n.Cases)
		case *FunctionNode:
			s.Functions++
		case *LeafNode:
			s.Leaves++
		case FailNode:
			s.Fails++
		}
		return true
	})
	return s
}
