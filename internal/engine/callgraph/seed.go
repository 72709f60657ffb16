package callgraph

import (
	"fmt"
	"strings"

	"callctx/internal/core/errors"
	"callctx/internal/engine/parser"
)

// FindSeed locates a definition by "name" or "Class.method". Plain names
// prefer top-level functions over methods.
func FindSeed(file *parser.SourceFile, qualified string, classifier Classifier) (*parser.Element, error) {
	if file == nil || file.Root == nil {
		return nil, errors.New(errors.CodeValidationError, "source file is required")
	}
	if classifier == nil {
		classifier = GrammarClassifier{}
	}
	qualified = strings.TrimSpace(qualified)
	className, name := "", qualified
	if idx := strings.LastIndexByte(qualified, '.'); idx >= 0 {
		className, name = qualified[:idx], qualified[idx+1:]
	}
	if name == "" {
		return nil, errors.New(errors.CodeValidationError, "function name is required")
	}

	var fallback *parser.Element
	var found *parser.Element
	parser.Walk(file.Root, func(e *parser.Element) bool {
		if found != nil {
			return false
		}
		if !classifier.IsFunctionOrMethod(e) || ExtractName(e) != name {
			return true
		}
		owner := enclosingClassName(e, classifier)
		switch {
		case className != "" && owner == className:
			found = e
		case className == "" && owner == "":
			found = e
		case className == "" && fallback == nil:
			fallback = e
		}
		return true
	})
	if found == nil {
		found = fallback
	}
	if found == nil {
		err := errors.New(errors.CodeNotFound, fmt.Sprintf("no definition named %q", qualified))
		return nil, errors.AddContext(errors.AddContext(err, errors.CtxSymbol, qualified), errors.CtxPath, file.Path)
	}
	return found, nil
}

// SeedAtLine returns the innermost definition whose span covers line.
func SeedAtLine(file *parser.SourceFile, line int, classifier Classifier) (*parser.Element, error) {
	if file == nil || file.Root == nil {
		return nil, errors.New(errors.CodeValidationError, "source file is required")
	}
	if classifier == nil {
		classifier = GrammarClassifier{}
	}
	var found *parser.Element
	parser.Walk(file.Root, func(e *parser.Element) bool {
		if line < e.Line() || line > e.EndLine() {
			return false
		}
		if classifier.IsFunctionOrMethod(e) {
			found = e
		}
		return true
	})
	if found == nil {
		err := errors.New(errors.CodeNotFound, fmt.Sprintf("no definition covers line %d", line))
		return nil, errors.AddContext(err, errors.CtxPath, file.Path)
	}
	return found, nil
}

// enclosingClassName names the nearest enclosing class, stopping at function
// boundaries.
func enclosingClassName(e *parser.Element, classifier Classifier) string {
	for anc := e.Parent(); anc != nil; anc = anc.Parent() {
		if classifier.IsFunctionOrMethod(anc) {
			return ""
		}
		if classifier.IsClassDefinition(anc) {
			return ExtractClassName(anc)
		}
	}
	return ""
}
