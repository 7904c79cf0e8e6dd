package structure

import (
	"fmt"
	"strconv"
	"strings"
)

// PathElementKind discriminates the two element forms.
type PathElementKind uint8

const (
	// PathName addresses a child of a map node by name.
	PathName PathElementKind = iota

	// PathIndex addresses a child of a list node by position.
	PathIndex
)

// PathElement is one step from a node to one of its children: a string
// name within a map or a non-negative index within a list.
type PathElement struct {
	Kind  PathElementKind
	Name  string
	Index uint32
}

// NameElement returns a path element addressing a map child.
func NameElement(name string) PathElement {
	return PathElement{Kind: PathName, Name: name}
}

// IndexElement returns a path element addressing a list child.
func IndexElement(index uint32) PathElement {
	return PathElement{Kind: PathIndex, Index: index}
}

// String returns the element as it appears in a textual path.
func (e PathElement) String() string {
	if e.Kind == PathIndex {
		return strconv.FormatUint(uint64(e.Index), 10)
	}
	return e.Name
}

// Path is an ordered sequence of elements identifying a node from the
// schema root. The empty path denotes the root.
type Path []PathElement

// Extend returns a new path consisting of a copy of p with elem
// appended. The receiver is never modified, so child paths stay valid
// regardless of what happens to the parent's.
func (p Path) Extend(elem PathElement) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

// Equal reports whether two paths identify the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the path with "/" separators; the root is "".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return strings.Join(parts, "/")
}

// Wire returns the path in its wire form: a slice of strings and
// unsigned integers, ready to encode as a CBOR array. The root is [].
func (p Path) Wire() []any {
	out := make([]any, len(p))
	for i, e := range p {
		if e.Kind == PathIndex {
			out[i] = e.Index
		} else {
			out[i] = e.Name
		}
	}
	return out
}

// PathFromWire converts a decoded CBOR path array back into a Path.
// Elements must be text strings or unsigned integers.
func PathFromWire(elems []any) (Path, error) {
	out := make(Path, 0, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case string:
			out = append(out, NameElement(v))
		case uint64:
			out = append(out, IndexElement(uint32(v)))
		case uint32:
			out = append(out, IndexElement(v))
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("path element %d: negative index %d", i, v)
			}
			out = append(out, IndexElement(uint32(v)))
		default:
			return nil, fmt.Errorf("path element %d: unsupported type %T", i, e)
		}
	}
	return out, nil
}

// ParsePath parses a "/"-separated textual path. Segments consisting
// entirely of digits parse as indexes, everything else as names; the
// empty string is the root.
func ParsePath(s string) (Path, error) {
	if s == "" || s == "/" {
		return Path{}, nil
	}

	s = strings.Trim(s, "/")
	segments := strings.Split(s, "/")
	out := make(Path, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("empty path segment in %q", s)
		}
		if idx, err := strconv.ParseUint(seg, 10, 32); err == nil {
			out = append(out, IndexElement(uint32(idx)))
		} else {
			out = append(out, NameElement(seg))
		}
	}
	return out, nil
}
