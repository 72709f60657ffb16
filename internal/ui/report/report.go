package report

import (
	"fmt"
	"strings"

	domainerrors "callctx/internal/core/errors"
	"callctx/internal/data/history"
	"callctx/internal/shared/util"
	"callctx/internal/ui/report/formats"
)

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatDOT      = "dot"
	FormatMermaid  = "mermaid"
)

type Document = formats.Document
type Meta = formats.Meta

var NewDocument = formats.NewDocument

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatMarkdown, FormatJSON, FormatYAML, FormatDOT, FormatMermaid}
}

type Options struct {
	IncludeSource bool
	Version       string
}

// Render produces doc in the named format.
func Render(format string, doc Document, opts Options) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatMarkdown:
		return formats.NewMarkdownGenerator().Generate(doc, formats.MarkdownOptions{IncludeSource: opts.IncludeSource, Version: opts.Version})
	case FormatJSON:
		return formats.GenerateJSON(doc)
	case FormatYAML:
		return formats.GenerateYAML(doc)
	case FormatDOT:
		return formats.NewDOTGenerator().Generate(doc)
	case FormatMermaid:
		return formats.NewMermaidGenerator().Generate(doc)
	default:
		return "", domainerrors.New(domainerrors.CodeNotSupported, fmt.Sprintf("unknown output format %q", format))
	}
}

// FromRun rebuilds a document from a stored run.
func FromRun(detail history.RunDetail) Document {
	doc := formats.NewEmptyDocument(formats.Meta{
		RunID:       detail.Run.ID,
		Seed:        detail.Run.Seed,
		SeedFile:    detail.Run.SeedFile,
		Root:        detail.Run.Root,
		GeneratedAt: detail.Run.CreatedAt,
	})
	for _, fn := range detail.Functions {
		doc.Functions = append(doc.Functions, formats.Function{
			Signature: fn.Signature,
			Name:      fn.QualifiedName,
			Class:     fn.ClassName,
			File:      formats.DisplayPath(detail.Run.Root, fn.FilePath),
			Line:      fn.Line,
			EndLine:   fn.EndLine,
			Depth:     fn.Depth,
			Package:   fn.PackageName,
			IsProject: fn.IsProject,
			Source:    fn.SourceText,
		})
	}
	for _, edge := range detail.Edges {
		doc.Edges = append(doc.Edges, formats.Edge{From: edge.From, To: edge.To})
	}
	doc.Unresolved = detail.Run.UnresolvedCount
	doc.RebuildDependencies()
	return doc
}

// Write stores content at path, creating parent directories.
func Write(path, content string) error {
	if err := util.WriteStringWithDirs(path, content, 0o644); err != nil {
		return domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeIO, "write report"), domainerrors.CtxPath, path)
	}
	return nil
}
