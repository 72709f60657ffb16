package callgraph

import (
	"callctx/internal/engine/parser"
)

// ClassContext is a class definition and its directly declared methods.
type ClassContext struct {
	Name       string
	Definition *parser.Element
	Methods    map[string]*parser.Element
}

// ClassRegistry maps class names to contexts and iterates them in
// registration order.
type ClassRegistry struct {
	classifier Classifier
	classes    map[string]*ClassContext
	order      []string
}

func NewClassRegistry(classifier Classifier) *ClassRegistry {
	return &ClassRegistry{
		classifier: classifier,
		classes:    make(map[string]*ClassContext),
	}
}

// Build registers every class defined anywhere in file.
func (r *ClassRegistry) Build(file *parser.SourceFile) {
	if file == nil || file.Root == nil {
		return
	}
	parser.Walk(file.Root, func(e *parser.Element) bool {
		if r.classifier.IsClassDefinition(e) {
			r.Register(r.newClassContext(e))
		}
		return true
	})
}

func (r *ClassRegistry) newClassContext(def *parser.Element) *ClassContext {
	ctx := &ClassContext{
		Name:       ExtractClassName(def),
		Definition: def,
		Methods:    make(map[string]*parser.Element),
	}
	r.collectMethods(def, ctx)
	return ctx
}

// collectMethods registers functions declared in the class body. It descends
// through body wrappers and decorators but never into functions or nested
// classes.
func (r *ClassRegistry) collectMethods(e *parser.Element, ctx *ClassContext) {
	for _, child := range e.Children() {
		switch {
		case r.classifier.IsFunctionOrMethod(child):
			if name := ExtractName(child); name != "" {
				ctx.Methods[name] = child
			}
		case r.classifier.IsClassDefinition(child):
		default:
			r.collectMethods(child, ctx)
		}
	}
}

// Register stores ctx under its name. A re-registered name keeps its original
// iteration position.
func (r *ClassRegistry) Register(ctx *ClassContext) {
	if ctx == nil || ctx.Name == "" {
		return
	}
	if _, exists := r.classes[ctx.Name]; !exists {
		r.order = append(r.order, ctx.Name)
	}
	r.classes[ctx.Name] = ctx
}

func (r *ClassRegistry) Get(name string) (*ClassContext, bool) {
	ctx, ok := r.classes[name]
	return ctx, ok
}

func (r *ClassRegistry) Len() int {
	return len(r.order)
}

// Classes returns the registered contexts in registration order.
func (r *ClassRegistry) Classes() []*ClassContext {
	out := make([]*ClassContext, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.classes[name])
	}
	return out
}

// LookupEnclosingClass returns the context of the nearest ancestor class
// definition that is registered, or nil.
func (r *ClassRegistry) LookupEnclosingClass(e *parser.Element) *ClassContext {
	if e == nil {
		return nil
	}
	for anc := e.Parent(); anc != nil; anc = anc.Parent() {
		if !r.classifier.IsClassDefinition(anc) {
			continue
		}
		if ctx, ok := r.classes[ExtractClassName(anc)]; ok {
			return ctx
		}
	}
	return nil
}

// FindMethod searches every registered class, in registration order, for a
// method with the given name. Receiver types are not considered.
func (r *ClassRegistry) FindMethod(name string) (*ClassContext, *parser.Element) {
	for _, className := range r.order {
		ctx := r.classes[className]
		if def, ok := ctx.Methods[name]; ok {
			return ctx, def
		}
	}
	return nil, nil
}
