// Package inspect renders schema trees and telemetry samples for
// human consumption in the example tools.
package inspect

import (
	"fmt"
	"strings"

	"github.com/via/viaems-protocol/pkg/feed"
	"github.com/via/viaems-protocol/pkg/structure"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowPaths prints each node's path alongside it.
	ShowPaths bool

	// IndentWidth is the number of spaces per indent level.
	IndentWidth int
}

// NewFormatter creates a Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		IndentWidth: 2,
	}
}

// FormatTree renders a schema tree.
func (f *Formatter) FormatTree(root *structure.Node) string {
	var b strings.Builder
	f.formatNode(&b, root, 0)
	return b.String()
}

func (f *Formatter) formatNode(b *strings.Builder, node *structure.Node, depth int) {
	switch node.Kind {
	case structure.NodeLeaf:
		b.WriteString(f.formatLeaf(node))
		b.WriteByte('\n')

	case structure.NodeList:
		b.WriteByte('\n')
		for i, child := range node.Children {
			b.WriteString(f.indent(depth))
			b.WriteString(fmt.Sprintf("%d: ", i))
			f.formatNode(b, child, depth+1)
		}

	case structure.NodeMap:
		b.WriteByte('\n')
		for i, child := range node.Children {
			b.WriteString(f.indent(depth))
			b.WriteString(node.Names[i])
			b.WriteString(": ")
			f.formatNode(b, child, depth+1)
		}
	}
}

func (f *Formatter) formatLeaf(node *structure.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%s)", node.ValueKind)
	if node.Description != "" {
		b.WriteByte(' ')
		b.WriteString(node.Description)
	}
	if node.Choices != nil {
		fmt.Fprintf(&b, " [%s]", strings.Join(node.Choices, ","))
	}
	if f.ShowPaths {
		fmt.Fprintf(&b, "  <%s>", node.Path)
	}
	return b.String()
}

// FormatSample renders one telemetry sample as "name=value" pairs.
func (f *Formatter) FormatSample(keys []feed.FieldKey, values []feed.FieldValue) string {
	parts := make([]string, 0, len(keys))
	for i, key := range keys {
		if i >= len(values) {
			break
		}
		parts = append(parts, fmt.Sprintf("%s=%s", key.Name, values[i]))
	}
	return strings.Join(parts, " ")
}

func (f *Formatter) indent(depth int) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width)
}
