package callgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"callctx/internal/engine/parser"
	"callctx/internal/engine/project"

	"github.com/stretchr/testify/require"
)

var classifierKinds = []string{ClassifierText, ClassifierGrammar}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestAnalyzer(t *testing.T, root string, opts Options, kind string) *Analyzer {
	t.Helper()
	loader, err := parser.NewGrammarLoader()
	require.NoError(t, err)
	proj, err := project.New(root, parser.NewParser(loader), project.Options{})
	require.NoError(t, err)
	classifier, err := NewClassifier(kind)
	require.NoError(t, err)
	a, err := NewAnalyzer(opts, proj, classifier)
	require.NoError(t, err)
	return a
}

func loadFile(t *testing.T, a *Analyzer, root, rel string) *parser.SourceFile {
	t.Helper()
	file, err := a.Project().Load(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return file
}

func analyzeSeed(t *testing.T, a *Analyzer, root, rel, qualified string) *Result {
	t.Helper()
	file := loadFile(t, a, root, rel)
	seed, err := FindSeed(file, qualified, a.Classifier())
	require.NoError(t, err)
	result, err := a.Analyze(context.Background(), seed)
	require.NoError(t, err)
	return result
}

func contextNames(r *Result) []string {
	names := make([]string, 0, len(r.Contexts))
	for _, fc := range r.Contexts {
		names = append(names, fc.QualifiedName)
	}
	return names
}

func edgeNames(r *Result) []string {
	var edges []string
	for _, fc := range r.Contexts {
		for _, dep := range fc.Dependencies() {
			edges = append(edges, fmt.Sprintf("%s->%s", fc.QualifiedName, dep.QualifiedName))
		}
	}
	return edges
}

func opts(maxDepth int) Options {
	o := DefaultOptions()
	o.MaxDepth = maxDepth
	return o
}
