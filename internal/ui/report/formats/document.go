package formats

import (
	"path/filepath"
	"strings"
	"time"

	"callctx/internal/engine/callgraph"
)

// Document is the render-ready form of one analysis run. It can be built
// from a live result or from a stored run.
type Document struct {
	RunID       string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Seed        string       `json:"seed" yaml:"seed"`
	SeedFile    string       `json:"seed_file" yaml:"seed_file"`
	Root        string       `json:"root" yaml:"root"`
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Unresolved  int          `json:"unresolved" yaml:"unresolved"`
	Functions   []Function   `json:"functions" yaml:"functions"`
	Edges       []Edge       `json:"edges" yaml:"edges"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type Function struct {
	Signature    string   `json:"signature" yaml:"signature"`
	Name         string   `json:"name" yaml:"name"`
	Class        string   `json:"class,omitempty" yaml:"class,omitempty"`
	File         string   `json:"file" yaml:"file"`
	Line         int      `json:"line" yaml:"line"`
	EndLine      int      `json:"end_line" yaml:"end_line"`
	Depth        int      `json:"depth" yaml:"depth"`
	Package      string   `json:"package,omitempty" yaml:"package,omitempty"`
	IsProject    bool     `json:"is_project" yaml:"is_project"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Source       string   `json:"source" yaml:"source"`
}

type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

type Diagnostic struct {
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Line     int    `json:"line,omitempty" yaml:"line,omitempty"`
	Call     string `json:"call,omitempty" yaml:"call,omitempty"`
}

// Meta carries the run attributes a result does not know about.
type Meta struct {
	RunID       string
	Seed        string
	SeedFile    string
	Root        string
	GeneratedAt time.Time
}

// NewDocument converts an analysis result. Files are shown relative to
// meta.Root when they lie inside it.
func NewDocument(result *callgraph.Result, meta Meta) Document {
	doc := newDocument(meta)
	if result == nil {
		return doc
	}
	for _, fc := range result.Contexts {
		fn := Function{
			Signature: fc.Signature,
			Name:      fc.QualifiedName,
			Class:     fc.ClassName,
			File:      DisplayPath(meta.Root, fc.FilePath),
			Line:      fc.Line,
			EndLine:   fc.EndLine,
			Depth:     fc.Depth,
			Package:   fc.PackageName,
			IsProject: fc.IsProjectFunction,
			Source:    fc.SourceText,
		}
		for _, dep := range fc.Dependencies() {
			fn.Dependencies = append(fn.Dependencies, dep.Signature)
		}
		doc.Functions = append(doc.Functions, fn)
	}
	for _, edge := range result.Edges() {
		doc.Edges = append(doc.Edges, Edge{From: edge.From, To: edge.To})
	}
	for _, d := range result.Diagnostics {
		doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
			Severity: d.Severity,
			Message:  d.Message,
			File:     DisplayPath(meta.Root, d.File),
			Line:     d.Line,
			Call:     d.Call,
		})
	}
	doc.Unresolved = result.Unresolved
	return doc
}

func newDocument(meta Meta) Document {
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	return Document{
		RunID:       meta.RunID,
		Seed:        meta.Seed,
		SeedFile:    DisplayPath(meta.Root, meta.SeedFile),
		Root:        meta.Root,
		GeneratedAt: generated.UTC(),
		Functions:   []Function{},
		Edges:       []Edge{},
	}
}

// NewEmptyDocument returns a document with only the run attributes set.
func NewEmptyDocument(meta Meta) Document {
	return newDocument(meta)
}

// RebuildDependencies fills each function's Dependencies from Edges.
func (d *Document) RebuildDependencies() {
	deps := make(map[string][]string, len(d.Functions))
	for _, edge := range d.Edges {
		deps[edge.From] = append(deps[edge.From], edge.To)
	}
	for i := range d.Functions {
		d.Functions[i].Dependencies = deps[d.Functions[i].Signature]
	}
}

func (d Document) byID() map[string]Function {
	out := make(map[string]Function, len(d.Functions))
	for _, fn := range d.Functions {
		out[fn.Signature] = fn
	}
	return out
}

// DisplayPath returns path relative to root when path lies inside root.
func DisplayPath(root, path string) string {
	if root == "" || path == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
