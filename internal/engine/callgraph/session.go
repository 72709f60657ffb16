package callgraph

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"callctx/internal/engine/parser"
)

// session is the state of one Analyze call. It is never shared between calls.
type session struct {
	ctx        context.Context
	analyzer   *Analyzer
	classifier Classifier
	registry   *ClassRegistry
	visited    map[string]struct{}
	imports    map[string][]ImportRecord
	result     *Result
	err        error
}

func newSession(ctx context.Context, a *Analyzer) *session {
	return &session{
		ctx:        ctx,
		analyzer:   a,
		classifier: a.classifier,
		registry:   NewClassRegistry(a.classifier),
		visited:    make(map[string]struct{}),
		imports:    make(map[string][]ImportRecord),
		result:     newResult(),
	}
}

// buildRegistry registers the classes of the seed file, then of every other
// project file when project-wide classes are enabled.
func (s *session) buildRegistry(seedFile *parser.SourceFile) {
	s.registry.Build(seedFile)
	if !s.analyzer.opts.ProjectWideClasses {
		return
	}
	files, err := s.analyzer.project.PythonFiles()
	if err != nil {
		s.note(seedFile.Path, fmt.Sprintf("enumerate project files: %v", err))
		return
	}
	for _, path := range files {
		if path == seedFile.Path {
			continue
		}
		file, err := s.analyzer.project.Load(path)
		if err != nil {
			s.note(path, fmt.Sprintf("load for class registry: %v", err))
			continue
		}
		s.registry.Build(file)
	}
}

func (s *session) note(path, message string) {
	s.result.Diagnostics = append(s.result.Diagnostics, Diagnostic{
		Severity: SeverityInfo,
		Message:  message,
		File:     path,
	})
}

func (s *session) signature(def *parser.Element, cls *ClassContext) string {
	return def.Path() + "::" + qualifiedName(def, cls)
}

func qualifiedName(def *parser.Element, cls *ClassContext) string {
	name := ExtractName(def)
	if cls != nil {
		return cls.Name + "." + name
	}
	return name
}

// visit materializes def and expands its calls depth-first. It returns nil
// when def is skipped or was already visited.
func (s *session) visit(def *parser.Element, depth int, cls *ClassContext) *FunctionContext {
	if def == nil || s.err != nil {
		return nil
	}
	if depth > s.analyzer.opts.MaxDepth || s.analyzer.project.IsExcluded(def.Path()) {
		return nil
	}
	sig := s.signature(def, cls)
	if _, seen := s.visited[sig]; seen {
		return nil
	}
	s.visited[sig] = struct{}{}

	if !s.analyzer.opts.IncludeTests && isTestDefinition(def) {
		return nil
	}

	fc := s.materialize(def, cls, sig, depth)
	s.result.add(fc)

	if depth >= s.analyzer.opts.MaxDepth {
		return fc
	}

	for _, el := range parser.Descendants(def) {
		if !s.classifier.IsCallExpression(el) {
			continue
		}
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return fc
		}
		callee, calleeCls := s.resolveCall(el, cls)
		if callee == nil {
			continue
		}
		if _, seen := s.visited[s.signature(callee, calleeCls)]; seen {
			continue
		}
		if child := s.visit(callee, depth+1, calleeCls); child != nil {
			fc.AddDependency(child)
		}
	}
	return fc
}

// resolveCall resolves "self.x(" and "<Class>.x(" against the enclosing
// class's methods and everything else through the resolver.
func (s *session) resolveCall(call *parser.Element, cls *ClassContext) (*parser.Element, *ClassContext) {
	text := strings.TrimSpace(call.Text())
	if cls != nil {
		for _, prefix := range []string{"self.", cls.Name + "."} {
			if !strings.HasPrefix(text, prefix) {
				continue
			}
			head, ok := callHead(text)
			if !ok {
				break
			}
			name := strings.TrimSpace(head[len(prefix):])
			// Chained receivers such as self.repo.save( go to the resolver.
			if !identPattern.MatchString(name) {
				break
			}
			if def, found := cls.Methods[name]; found {
				return def, cls
			}
			s.result.Unresolved++
			return nil, nil
		}
	}

	callee := s.resolve(call)
	if callee == nil {
		return nil, nil
	}
	return callee, s.registry.LookupEnclosingClass(callee)
}

func (s *session) materialize(def *parser.Element, cls *ClassContext, sig string, depth int) *FunctionContext {
	path := def.Path()
	fc := &FunctionContext{
		Signature:         sig,
		QualifiedName:     qualifiedName(def, cls),
		FileName:          filepath.Base(path),
		FilePath:          path,
		Line:              def.Line(),
		EndLine:           def.EndLine(),
		Depth:             depth,
		SourceText:        ExtractText(def, s.analyzer.opts.IncludeComments),
		PackageName:       PackageName(path),
		IsProjectFunction: IsProjectPath(path),
	}
	if cls != nil {
		fc.ClassName = cls.Name
	}
	if decs := decorators(def); len(decs) > 0 {
		fc.Line = decs[0].Line()
	}
	return fc
}

// isTestDefinition matches test_* functions and functions carrying pytest or
// unittest decorators.
func isTestDefinition(def *parser.Element) bool {
	if strings.HasPrefix(strings.ToLower(ExtractName(def)), "test_") {
		return true
	}
	text := strings.ToLower(DecoratedText(def))
	return strings.Contains(text, "@pytest") || strings.Contains(text, "@unittest")
}
