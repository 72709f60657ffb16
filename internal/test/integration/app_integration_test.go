package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"callctx/internal/core/config"
	"callctx/internal/data/history"
	"callctx/internal/engine/callgraph"
	"callctx/internal/engine/parser"
	"callctx/internal/engine/project"
	"callctx/internal/ui/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopFiles = map[string]string{
	"src/shop/__init__.py": "",
	"src/shop/models.py": `class Order:
    def __init__(self, items):
        self.items = items

    def total(self):
        return self._sum()

    def _sum(self):
        return sum(self.items)
`,
	"src/shop/util.py": `def money(value):
    """Format a price."""
    return "%.2f" % value
`,
	"src/shop/service.py": `from .models import Order
from .util import money


def checkout(order: Order):
    value = order.total()
    return money(value)


def test_checkout():
    assert checkout(Order([1])) == "1.00"
`,
	"venv/lib/site-packages/shop_stub.py": `class Order:
    def total(self):
        return 0
`,
}

func createTestFiles(t *testing.T, root string) {
	for rel, content := range shopFiles {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newAnalyzer(t *testing.T, cfg *config.Config, root string) *callgraph.Analyzer {
	loader, err := parser.NewGrammarLoader()
	require.NoError(t, err)
	proj, err := project.New(root, parser.NewParser(loader), project.Options{
		ExcludeDirs:  cfg.Exclude.Dirs,
		ExcludeFiles: cfg.Exclude.Files,
		CacheSize:    cfg.Cache.ParsedFiles,
	})
	require.NoError(t, err)
	classifier, err := callgraph.NewClassifier(cfg.Analysis.Classifier)
	require.NoError(t, err)
	analyzer, err := callgraph.NewAnalyzer(callgraph.Options{
		MaxDepth:           cfg.Analysis.MaxDepth,
		IncludeTests:       cfg.Analysis.IncludeTests,
		IncludeComments:    cfg.Analysis.IncludeComments,
		ProjectWideClasses: cfg.Analysis.ProjectWideClasses,
	}, proj, classifier)
	require.NoError(t, err)
	return analyzer
}

func analyzeCheckout(t *testing.T, analyzer *callgraph.Analyzer, root string) *callgraph.Result {
	file, err := analyzer.Project().Load(filepath.Join(root, "src", "shop", "service.py"))
	require.NoError(t, err)
	seed, err := callgraph.FindSeed(file, "checkout", analyzer.Classifier())
	require.NoError(t, err)
	result, err := analyzer.Analyze(context.Background(), seed)
	require.NoError(t, err)
	return result
}

func names(result *callgraph.Result) []string {
	out := make([]string, 0, result.Len())
	for _, fc := range result.Contexts {
		out = append(out, fc.QualifiedName)
	}
	return out
}

func TestFullPipelineIntegration(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)

	for _, kind := range []string{callgraph.ClassifierGrammar, callgraph.ClassifierText} {
		t.Run(kind, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Analysis.Classifier = kind
			cfg.Analysis.ProjectWideClasses = true
			cfg.Analysis.IncludeComments = false
			require.NoError(t, config.Validate(cfg))

			analyzer := newAnalyzer(t, cfg, root)
			result := analyzeCheckout(t, analyzer, root)

			assert.Equal(t, []string{"checkout", "Order.total", "Order._sum", "money"}, names(result))
			if kind == callgraph.ClassifierGrammar {
				assert.Equal(t, 1, result.Unresolved, "sum(...) has no definition")
			} else {
				assert.GreaterOrEqual(t, result.Unresolved, 1)
			}

			total := result.Contexts[1]
			assert.Equal(t, "Order", total.ClassName)
			assert.Equal(t, "shop", total.PackageName)
			assert.True(t, total.IsProjectFunction)
			assert.Equal(t, filepath.Join(root, "src", "shop", "models.py")+"::Order.total", total.Signature)

			money := result.Contexts[3]
			assert.NotContains(t, money.SourceText, "Format a price")
			assert.Equal(t, 1, money.Depth)

			again := analyzeCheckout(t, analyzer, root)
			assert.Equal(t, names(result), names(again))
			assert.Equal(t, result.Edges(), again.Edges())
		})
	}
}

func TestPipelinePersistsAndRenders(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)

	cfg := config.DefaultConfig()
	cfg.Analysis.ProjectWideClasses = true
	analyzer := newAnalyzer(t, cfg, root)
	result := analyzeCheckout(t, analyzer, root)

	store, err := history.Open(config.ResolvePaths(cfg, root).DBPath)
	require.NoError(t, err)
	defer store.Close()

	seedFile := filepath.Join(root, "src", "shop", "service.py")
	saved, err := store.SaveRun(context.Background(), history.NewRunDetail(history.RunMeta{
		Root:       root,
		SeedFile:   seedFile,
		Seed:       "checkout",
		Classifier: analyzer.Classifier().Name(),
		MaxDepth:   cfg.Analysis.MaxDepth,
	}, result))
	require.NoError(t, err)

	detail, err := store.LoadRun(context.Background(), saved.ID)
	require.NoError(t, err)
	require.Len(t, detail.Functions, result.Len())

	live, err := report.Render(report.FormatMarkdown, report.NewDocument(result, report.Meta{Seed: "checkout", SeedFile: seedFile, Root: root, GeneratedAt: saved.CreatedAt}), report.Options{IncludeSource: true})
	require.NoError(t, err)
	stored, err := report.Render(report.FormatMarkdown, report.FromRun(detail), report.Options{IncludeSource: true})
	require.NoError(t, err)

	assert.Contains(t, stored, "run_id: "+saved.ID)
	assert.Contains(t, stored, "## 2. `Order.total`")
	assert.Contains(t, stored, "- File: `src/shop/models.py:5`")
	assert.Contains(t, live, "- Calls: `Order.total`, `money`")
	assert.Contains(t, stored, "- Calls: `Order.total`, `money`")
}

func TestPipeline_IncludeTests(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)

	cfg := config.DefaultConfig()
	cfg.Analysis.IncludeTests = true
	analyzer := newAnalyzer(t, cfg, root)

	file, err := analyzer.Project().Load(filepath.Join(root, "src", "shop", "service.py"))
	require.NoError(t, err)
	seed, err := callgraph.FindSeed(file, "test_checkout", analyzer.Classifier())
	require.NoError(t, err)
	result, err := analyzer.Analyze(context.Background(), seed)
	require.NoError(t, err)

	require.GreaterOrEqual(t, result.Len(), 2)
	assert.Equal(t, "test_checkout", result.Contexts[0].QualifiedName)
	assert.Equal(t, "checkout", result.Contexts[1].QualifiedName)
}
