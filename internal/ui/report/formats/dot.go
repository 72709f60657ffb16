package formats

import (
	"fmt"
	"strings"
)

type DOTGenerator struct{}

func NewDOTGenerator() *DOTGenerator {
	return &DOTGenerator{}
}

// Generate renders the call graph as a Graphviz digraph. The seed is drawn
// bold and functions outside the project are dashed.
func (g *DOTGenerator) Generate(doc Document) (string, error) {
	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n")

	for i, fn := range doc.Functions {
		attrs := []string{fmt.Sprintf("label=\"%s\"", escapeLabel(nodeLabel(fn)))}
		if i == 0 {
			attrs = append(attrs, "style=\"rounded,bold\"", "color=\"#1f6feb\"")
		} else if !fn.IsProject {
			attrs = append(attrs, "style=\"rounded,dashed\"")
		}
		b.WriteString(fmt.Sprintf("  \"%s\" [%s];\n", escapeLabel(fn.Signature), strings.Join(attrs, ", ")))
	}
	for _, edge := range doc.Edges {
		b.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", escapeLabel(edge.From), escapeLabel(edge.To)))
	}
	b.WriteString("}\n")
	return b.String(), nil
}
