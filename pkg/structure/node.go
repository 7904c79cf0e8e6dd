package structure

// NodeKind discriminates the three node variants.
type NodeKind uint8

const (
	// NodeLeaf is a terminal node identifying one configurable value.
	NodeLeaf NodeKind = iota

	// NodeList is an ordered sequence of children addressed by index.
	NodeList

	// NodeMap is a named collection of children, order preserved from
	// the wire.
	NodeMap
)

// String returns the node kind name.
func (k NodeKind) String() string {
	switch k {
	case NodeLeaf:
		return "leaf"
	case NodeList:
		return "list"
	case NodeMap:
		return "map"
	default:
		return "unknown"
	}
}

// Node is one node of a schema tree. Path is set on every node; the
// variant fields are meaningful per Kind:
//
//   - NodeList: Children
//   - NodeMap: Children and Names, parallel and equal in length
//   - NodeLeaf: ValueKind, Description, and (string leaves only) Choices
//
// A nil Choices slice means the leaf declared no choices; this is
// distinct from an empty list.
type Node struct {
	Kind NodeKind
	Path Path

	Children []*Node
	Names    []string

	ValueKind   ValueKind
	Description string
	Choices     []string
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool { return n.Kind == NodeLeaf }

// IsList reports whether the node is a list.
func (n *Node) IsList() bool { return n.Kind == NodeList }

// IsMap reports whether the node is a map.
func (n *Node) IsMap() bool { return n.Kind == NodeMap }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.Children) }

// At returns the i'th child of a list or map node, or nil when out of
// range.
func (n *Node) At(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Child returns the named child of a map node, or nil.
func (n *Node) Child(name string) *Node {
	if n.Kind != NodeMap {
		return nil
	}
	for i, childName := range n.Names {
		if childName == name {
			return n.Children[i]
		}
	}
	return nil
}

// Walk visits n and every node below it in depth-first order.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Leaves returns every leaf node in the subtree in depth-first order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.Walk(func(node *Node) {
		if node.IsLeaf() {
			out = append(out, node)
		}
	})
	return out
}

// Find resolves a path against root and returns the addressed node, or
// nil when any step does not resolve. The empty path returns root.
func Find(root *Node, path Path) *Node {
	node := root
	for _, elem := range path {
		if node == nil {
			return nil
		}
		switch elem.Kind {
		case PathIndex:
			if node.Kind != NodeList {
				return nil
			}
			node = node.At(int(elem.Index))
		case PathName:
			node = node.Child(elem.Name)
		default:
			return nil
		}
	}
	return node
}

// FindString resolves a textual path (see ParsePath) against root.
func FindString(root *Node, path string) *Node {
	p, err := ParsePath(path)
	if err != nil {
		return nil
	}
	return Find(root, p)
}
