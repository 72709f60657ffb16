package formats

import (
	"fmt"
	"strings"
	"time"
)

type MarkdownOptions struct {
	// IncludeSource renders each function's extracted text in a python block.
	IncludeSource bool
	Version       string
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

// Generate renders one section per function in materialization order.
func (m *MarkdownGenerator) Generate(doc Document, opts MarkdownOptions) (string, error) {
	byID := doc.byID()

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Call Context\n")
	b.WriteString("seed: " + nonEmpty(doc.Seed, "unknown") + "\n")
	b.WriteString("generated_at: " + doc.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	if doc.RunID != "" {
		b.WriteString("run_id: " + doc.RunID + "\n")
	}
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString(fmt.Sprintf("# Call context for `%s`\n\n", nonEmpty(doc.Seed, "unknown")))
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|---|---:|\n")
	b.WriteString(fmt.Sprintf("| Functions | %d |\n", len(doc.Functions)))
	b.WriteString(fmt.Sprintf("| Calls | %d |\n", len(doc.Edges)))
	b.WriteString(fmt.Sprintf("| Unresolved calls | %d |\n", doc.Unresolved))
	b.WriteString(fmt.Sprintf("| Diagnostics | %d |\n\n", len(doc.Diagnostics)))

	if len(doc.Functions) == 0 {
		b.WriteString("No function or method definitions were found for the seed.\n")
		return b.String(), nil
	}

	for i, fn := range doc.Functions {
		b.WriteString(fmt.Sprintf("## %d. `%s`\n\n", i+1, fn.Name))
		b.WriteString(fmt.Sprintf("- File: `%s:%d`\n", fn.File, fn.Line))
		if fn.Package != "" {
			b.WriteString(fmt.Sprintf("- Package: `%s`\n", fn.Package))
		}
		b.WriteString(fmt.Sprintf("- Depth: %d\n", fn.Depth))
		if !fn.IsProject {
			b.WriteString("- External: yes\n")
		}
		if len(fn.Dependencies) > 0 {
			names := make([]string, 0, len(fn.Dependencies))
			for _, sig := range fn.Dependencies {
				name := sig
				if dep, ok := byID[sig]; ok {
					name = dep.Name
				}
				names = append(names, "`"+name+"`")
			}
			b.WriteString("- Calls: " + strings.Join(names, ", ") + "\n")
		}
		b.WriteString("\n")
		if opts.IncludeSource && fn.Source != "" {
			fence := codeFence(fn.Source)
			b.WriteString(fence + "python\n")
			b.WriteString(strings.TrimRight(fn.Source, "\n"))
			b.WriteString("\n" + fence + "\n\n")
		}
	}

	if len(doc.Diagnostics) > 0 {
		b.WriteString("## Diagnostics\n\n")
		for _, d := range doc.Diagnostics {
			location := d.File
			if d.Line > 0 {
				location = fmt.Sprintf("%s:%d", d.File, d.Line)
			}
			b.WriteString(fmt.Sprintf("- **%s** `%s` %s", d.Severity, location, d.Message))
			if d.Call != "" {
				b.WriteString(fmt.Sprintf(" (call `%s`)", d.Call))
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
