package callgraph

// FunctionContext is one materialized definition of an analysis run.
// Its identity is Signature.
type FunctionContext struct {
	Signature         string
	QualifiedName     string
	ClassName         string
	FileName          string
	FilePath          string
	Line              int
	EndLine           int
	Depth             int
	SourceText        string
	PackageName       string
	IsProjectFunction bool

	dependencies []*FunctionContext
	depIndex     map[string]struct{}
}

// AddDependency records a caller-to-callee edge. Duplicate callees are ignored.
func (fc *FunctionContext) AddDependency(dep *FunctionContext) bool {
	if dep == nil {
		return false
	}
	if fc.depIndex == nil {
		fc.depIndex = make(map[string]struct{})
	}
	if _, ok := fc.depIndex[dep.Signature]; ok {
		return false
	}
	fc.depIndex[dep.Signature] = struct{}{}
	fc.dependencies = append(fc.dependencies, dep)
	return true
}

// Dependencies returns the direct callees in discovery order.
func (fc *FunctionContext) Dependencies() []*FunctionContext {
	out := make([]*FunctionContext, len(fc.dependencies))
	copy(out, fc.dependencies)
	return out
}

type Edge struct {
	From string
	To   string
}

const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Diagnostic reports a fault that was absorbed during resolution.
type Diagnostic struct {
	Severity string
	Message  string
	File     string
	Line     int
	Call     string
}

// Result holds the contexts of one run in materialization order.
type Result struct {
	Seed        *FunctionContext
	Contexts    []*FunctionContext
	Diagnostics []Diagnostic
	Unresolved  int

	index map[string]*FunctionContext
}

func newResult() *Result {
	return &Result{index: make(map[string]*FunctionContext)}
}

func (r *Result) add(fc *FunctionContext) {
	if r.index == nil {
		r.index = make(map[string]*FunctionContext)
	}
	r.index[fc.Signature] = fc
	r.Contexts = append(r.Contexts, fc)
}

func (r *Result) Lookup(signature string) *FunctionContext {
	if r == nil || r.index == nil {
		return nil
	}
	return r.index[signature]
}

// Edges lists every dependency edge, callers in materialization order.
func (r *Result) Edges() []Edge {
	if r == nil {
		return nil
	}
	var edges []Edge
	for _, fc := range r.Contexts {
		for _, dep := range fc.dependencies {
			edges = append(edges, Edge{From: fc.Signature, To: dep.Signature})
		}
	}
	return edges
}

func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Contexts)
}
