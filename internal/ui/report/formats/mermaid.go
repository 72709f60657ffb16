package formats

import (
	"fmt"
	"strings"
)

type MermaidGenerator struct{}

func NewMermaidGenerator() *MermaidGenerator {
	return &MermaidGenerator{}
}

func (m *MermaidGenerator) Generate(doc Document) (string, error) {
	names := make([]string, 0, len(doc.Functions))
	for _, fn := range doc.Functions {
		names = append(names, fn.Signature)
	}
	ids := makeIDs(names)

	var b strings.Builder
	b.WriteString("flowchart LR\n")
	b.WriteString("  classDef seed stroke:#1f6feb,stroke-width:3px;\n")
	b.WriteString("  classDef external stroke-dasharray: 5 5;\n")

	var external []string
	for i, fn := range doc.Functions {
		id := ids[fn.Signature]
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", id, escapeLabel(strings.ReplaceAll(nodeLabel(fn), "\\n", "<br/>"))))
		if i == 0 {
			b.WriteString(fmt.Sprintf("  class %s seed\n", id))
		} else if !fn.IsProject {
			external = append(external, id)
		}
	}
	if len(external) > 0 {
		b.WriteString(fmt.Sprintf("  class %s external\n", strings.Join(external, ",")))
	}
	for _, edge := range doc.Edges {
		from, okFrom := ids[edge.From]
		to, okTo := ids[edge.To]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s --> %s\n", from, to))
	}
	return b.String(), nil
}
