package history

import (
	"time"

	"callctx/internal/engine/callgraph"
)

const SchemaVersion = 1

// Run is the summary row of one stored analysis.
type Run struct {
	ID              string
	CreatedAt       time.Time
	Root            string
	SeedFile        string
	Seed            string
	Classifier      string
	MaxDepth        int
	FunctionCount   int
	EdgeCount       int
	UnresolvedCount int
	DiagnosticCount int
}

// FunctionRecord is a persisted FunctionContext.
type FunctionRecord struct {
	Position      int
	Signature     string
	QualifiedName string
	ClassName     string
	FilePath      string
	Line          int
	EndLine       int
	Depth         int
	PackageName   string
	IsProject     bool
	SourceText    string
}

type EdgeRecord struct {
	From string
	To   string
}

// RunDetail is a run together with its functions and edges.
type RunDetail struct {
	Run       Run
	Functions []FunctionRecord
	Edges     []EdgeRecord
}

// RunMeta describes how a run was produced.
type RunMeta struct {
	Root       string
	SeedFile   string
	Seed       string
	Classifier string
	MaxDepth   int
}

// NewRunDetail flattens an analysis result for storage.
func NewRunDetail(meta RunMeta, res *callgraph.Result) RunDetail {
	detail := RunDetail{Run: Run{
		Root:       meta.Root,
		SeedFile:   meta.SeedFile,
		Seed:       meta.Seed,
		Classifier: meta.Classifier,
		MaxDepth:   meta.MaxDepth,
	}}
	if res == nil {
		return detail
	}
	for i, fc := range res.Contexts {
		detail.Functions = append(detail.Functions, FunctionRecord{
			Position:      i,
			Signature:     fc.Signature,
			QualifiedName: fc.QualifiedName,
			ClassName:     fc.ClassName,
			FilePath:      fc.FilePath,
			Line:          fc.Line,
			EndLine:       fc.EndLine,
			Depth:         fc.Depth,
			PackageName:   fc.PackageName,
			IsProject:     fc.IsProjectFunction,
			SourceText:    fc.SourceText,
		})
	}
	for _, edge := range res.Edges() {
		detail.Edges = append(detail.Edges, EdgeRecord{From: edge.From, To: edge.To})
	}
	detail.Run.FunctionCount = len(detail.Functions)
	detail.Run.EdgeCount = len(detail.Edges)
	detail.Run.UnresolvedCount = res.Unresolved
	detail.Run.DiagnosticCount = len(res.Diagnostics)
	return detail
}
