package structure

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/via/viaems-protocol/pkg/wire"
)

// Builder errors.
var (
	// ErrUnknownLeafKind indicates a leaf with an unrecognized "_type".
	ErrUnknownLeafKind = errors.New("unknown leaf kind")

	// ErrMalformedStructure indicates a payload that is not a valid
	// schema document.
	ErrMalformedStructure = errors.New("malformed structure payload")
)

// Build parses a structure response payload into a schema tree rooted
// at the empty path. Any malformed subtree fails the whole build.
func Build(payload cbor.RawMessage) (*Node, error) {
	return buildNode(payload, Path{})
}

// buildNode dispatches one CBOR value to the matching node variant.
// Arrays become lists; maps carrying "_type" become leaves; all other
// maps become map nodes.
func buildNode(raw cbor.RawMessage, path Path) (*Node, error) {
	switch {
	case wire.IsArray(raw):
		return buildList(raw, path)
	case wire.IsMap(raw):
		keys, values, err := wire.DecodeMapEntries(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedStructure, err)
		}
		if hasTypeKey(keys) {
			return buildLeaf(keys, values, path)
		}
		return buildMap(keys, values, path)
	default:
		return nil, fmt.Errorf("%w: node at %q is neither array nor map", ErrMalformedStructure, path)
	}
}

func buildList(raw cbor.RawMessage, path Path) (*Node, error) {
	var elems []cbor.RawMessage
	if err := wire.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStructure, err)
	}

	children := make([]*Node, len(elems))
	for i, elem := range elems {
		child, err := buildNode(elem, path.Extend(IndexElement(uint32(i))))
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	return &Node{Kind: NodeList, Path: path, Children: children}, nil
}

func buildMap(keys, values []cbor.RawMessage, path Path) (*Node, error) {
	names := make([]string, len(keys))
	children := make([]*Node, len(keys))

	for i, key := range keys {
		var name string
		if err := wire.Unmarshal(key, &name); err != nil {
			return nil, fmt.Errorf("%w: map key at %q is not a text string", ErrMalformedStructure, path)
		}
		names[i] = name

		child, err := buildNode(values[i], path.Extend(NameElement(name)))
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	return &Node{Kind: NodeMap, Path: path, Children: children, Names: names}, nil
}

func buildLeaf(keys, values []cbor.RawMessage, path Path) (*Node, error) {
	node := &Node{Kind: NodeLeaf, Path: path, ValueKind: ValueInvalid}

	for i, key := range keys {
		var name string
		if err := wire.Unmarshal(key, &name); err != nil {
			// Leaf metadata keys must be text; anything else is not a
			// valid leaf map.
			return nil, fmt.Errorf("%w: leaf key at %q is not a text string", ErrMalformedStructure, path)
		}

		switch name {
		case "_type":
			var typeName string
			if err := wire.Unmarshal(values[i], &typeName); err != nil {
				return nil, fmt.Errorf("%w: _type at %q is not a text string", ErrMalformedStructure, path)
			}
			node.ValueKind = ValueKindFromString(typeName)
			if node.ValueKind == ValueInvalid {
				return nil, fmt.Errorf("%w: %q at %q", ErrUnknownLeafKind, typeName, path)
			}

		case "description":
			// Optional; a non-string description is ignored rather than
			// failing the build.
			var desc string
			if err := wire.Unmarshal(values[i], &desc); err == nil {
				node.Description = desc
			}

		case "choices":
			var choices []string
			if err := wire.Unmarshal(values[i], &choices); err == nil {
				node.Choices = choices
			}
		}
	}

	if node.ValueKind == ValueInvalid {
		return nil, fmt.Errorf("%w: leaf at %q has no _type", ErrMalformedStructure, path)
	}

	// Choices are only meaningful on string leaves.
	if node.ValueKind != ValueString {
		node.Choices = nil
	}

	return node, nil
}

func hasTypeKey(keys []cbor.RawMessage) bool {
	for _, key := range keys {
		var name string
		if err := wire.Unmarshal(key, &name); err != nil {
			continue
		}
		if name == "_type" {
			return true
		}
	}
	return false
}
