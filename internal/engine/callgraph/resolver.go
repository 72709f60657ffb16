package callgraph

import (
	"fmt"
	"log/slog"
	"strings"

	"callctx/internal/engine/parser"
	"callctx/internal/shared/observability"
)

const (
	strategyMethod     = "method"
	strategyLocal      = "local"
	strategyFile       = "file"
	strategyImport     = "import"
	strategyClass      = "class"
	strategyUnresolved = "unresolved"
)

// resolve maps a call site to a definition by trying the method, local-scope,
// file-scope and import strategies in order. Faults inside a strategy are
// recovered and reported as diagnostics.
func (s *session) resolve(call *parser.Element) (def *parser.Element) {
	name := CallName(call)
	if name == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			observability.ResolutionFaultsTotal.Inc()
			s.warn(call, name, fmt.Sprintf("resolution fault: %v", r))
			def = nil
		}
	}()

	strategies := []struct {
		name string
		fn   func(*parser.Element, string) *parser.Element
	}{
		{strategyMethod, s.resolveMethodCall},
		{strategyLocal, s.resolveLocal},
		{strategyFile, s.resolveInFile},
		{strategyImport, s.resolveImport},
	}
	for _, strategy := range strategies {
		if found := strategy.fn(call, name); found != nil {
			observability.ResolutionsTotal.WithLabelValues(strategy.name).Inc()
			return found
		}
	}

	s.result.Unresolved++
	observability.ResolutionsTotal.WithLabelValues(strategyUnresolved).Inc()
	slog.Debug("unresolved call", "path", call.Path(), "line", call.Line(), "call", name)
	return nil
}

func (s *session) resolveMethodCall(call *parser.Element, name string) *parser.Element {
	if !isMethodCallText(strings.TrimSpace(call.Text())) {
		return nil
	}
	_, def := s.registry.FindMethod(name)
	return def
}

// resolveLocal searches the enclosing function scopes, innermost first, for a
// nested definition of name.
func (s *session) resolveLocal(call *parser.Element, name string) *parser.Element {
	for anc := call.Parent(); anc != nil; anc = anc.Parent() {
		if !s.classifier.IsFunctionOrMethod(anc) {
			continue
		}
		if def := s.findDefinition(anc, name, false); def != nil {
			return def
		}
	}
	return nil
}

func (s *session) resolveInFile(call *parser.Element, name string) *parser.Element {
	file := call.File()
	if file == nil {
		return nil
	}
	return s.findDefinition(file.Root, name, true)
}

// resolveImport searches the modules imported by the call's file. A from-import
// is searched for its imported name whatever the call name is, so the first
// record whose module defines that name wins.
func (s *session) resolveImport(call *parser.Element, name string) *parser.Element {
	file := call.File()
	if file == nil {
		return nil
	}
	for _, record := range s.importsOf(file) {
		module := record.ImportedName
		target := name
		if record.FromModule != "" {
			module = record.FromModule
			target = record.ImportedName
		}
		for _, candidate := range s.analyzer.project.Candidates(file.Path, module) {
			loaded, err := s.analyzer.project.Load(candidate)
			if err != nil {
				s.warn(call, name, fmt.Sprintf("load %s: %v", candidate, err))
				continue
			}
			if def := s.findDefinition(loaded.Root, target, true); def != nil {
				return def
			}
		}
	}
	return nil
}

// findDefinition returns the first function definition named name in scope's
// subtree, in document order.
func (s *session) findDefinition(scope *parser.Element, name string, includeScope bool) *parser.Element {
	if scope == nil {
		return nil
	}
	match := func(e *parser.Element) bool {
		return s.classifier.IsFunctionOrMethod(e) && ExtractName(e) == name
	}
	if includeScope {
		return parser.Find(scope, match)
	}
	for _, child := range scope.Children() {
		if def := parser.Find(child, match); def != nil {
			return def
		}
	}
	return nil
}

func (s *session) importsOf(file *parser.SourceFile) []ImportRecord {
	if records, ok := s.imports[file.Path]; ok {
		return records
	}
	records := ParseImports(file)
	s.imports[file.Path] = records
	return records
}

func (s *session) warn(call *parser.Element, name, message string) {
	d := Diagnostic{
		Severity: SeverityWarning,
		Message:  message,
		File:     call.Path(),
		Line:     call.Line(),
		Call:     name,
	}
	s.result.Diagnostics = append(s.result.Diagnostics, d)
	slog.Warn("call resolution degraded", "path", d.File, "line", d.Line, "call", name, "error", message)
}
