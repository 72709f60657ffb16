package callgraph

import (
	"context"
	"log/slog"
	"time"

	"callctx/internal/core/errors"
	"callctx/internal/engine/parser"
	"callctx/internal/engine/project"
	"callctx/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxDepth = 3

type Options struct {
	MaxDepth           int
	IncludeTests       bool
	IncludeComments    bool
	ProjectWideClasses bool
}

func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth, IncludeComments: true}
}

// Analyzer computes call graphs rooted at a seed definition. It holds only
// immutable configuration and the project's shared file cache, so concurrent
// Analyze calls are safe.
type Analyzer struct {
	opts       Options
	project    *project.Project
	classifier Classifier
}

func NewAnalyzer(opts Options, proj *project.Project, classifier Classifier) (*Analyzer, error) {
	if proj == nil {
		return nil, errors.New(errors.CodeValidationError, "project is required")
	}
	if opts.MaxDepth < 0 {
		return nil, errors.New(errors.CodeValidationError, "max depth must be non-negative")
	}
	if classifier == nil {
		classifier = GrammarClassifier{}
	}
	return &Analyzer{opts: opts, project: proj, classifier: classifier}, nil
}

func (a *Analyzer) Options() Options {
	return a.opts
}

func (a *Analyzer) Classifier() Classifier {
	return a.classifier
}

func (a *Analyzer) Project() *project.Project {
	return a.project
}

// Analyze walks the calls reachable from seed. A seed that is not a function
// or method yields an empty result. When ctx is cancelled the partial result
// is returned together with ctx.Err().
func (a *Analyzer) Analyze(ctx context.Context, seed *parser.Element) (*Result, error) {
	if seed == nil || seed.File() == nil {
		return newResult(), nil
	}

	ctx, span := observability.Tracer.Start(ctx, "callgraph.Analyze", trace.WithAttributes(
		attribute.String("path", seed.Path()),
		attribute.String("classifier", a.classifier.Name()),
		attribute.Int("max_depth", a.opts.MaxDepth),
	))
	defer span.End()

	start := time.Now()
	s := newSession(ctx, a)
	s.buildRegistry(seed.File())

	if a.classifier.IsFunctionOrMethod(seed) {
		s.result.Seed = s.visit(seed, 0, s.registry.LookupEnclosingClass(seed))
	}

	edges := len(s.result.Edges())
	observability.AnalysisDuration.WithLabelValues("callgraph").Observe(time.Since(start).Seconds())
	observability.GraphNodes.Set(float64(s.result.Len()))
	observability.GraphEdges.Set(float64(edges))
	span.SetAttributes(
		attribute.Int("contexts", s.result.Len()),
		attribute.Int("edges", edges),
		attribute.Int("unresolved", s.result.Unresolved),
	)

	slog.Debug("analysis finished",
		"path", seed.Path(),
		"contexts", s.result.Len(),
		"edges", edges,
		"unresolved", s.result.Unresolved,
		"classes", s.registry.Len(),
		"duration", time.Since(start),
	)

	if s.err != nil {
		span.RecordError(s.err)
		span.SetStatus(codes.Error, s.err.Error())
		return s.result, s.err
	}
	return s.result, nil
}
