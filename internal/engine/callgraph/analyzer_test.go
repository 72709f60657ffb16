package callgraph

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Scenarios(t *testing.T) {
	cases := []struct {
		name     string
		source   string
		seed     string
		options  Options
		contexts []string
		edges    []string
	}{
		{
			name:     "DirectCall",
			source:   "def a():\n    b()\n\ndef b():\n    pass\n",
			seed:     "a",
			options:  opts(1),
			contexts: []string{"a", "b"},
			edges:    []string{"a->b"},
		},
		{
			name:     "SelfMethodCall",
			source:   "class C:\n    def m(self):\n        self.n()\n\n    def n(self):\n        pass\n",
			seed:     "C.m",
			options:  opts(3),
			contexts: []string{"C.m", "C.n"},
			edges:    []string{"C.m->C.n"},
		},
		{
			name:     "ClassNameCall",
			source:   "class C:\n    def m(self):\n        C.n()\n\n    @staticmethod\n    def n():\n        pass\n",
			seed:     "C.m",
			options:  opts(3),
			contexts: []string{"C.m", "C.n"},
			edges:    []string{"C.m->C.n"},
		},
		{
			name:     "ZeroDepth",
			source:   "def a():\n    b()\n\ndef b():\n    pass\n",
			seed:     "a",
			options:  opts(0),
			contexts: []string{"a"},
		},
		{
			name:     "UnresolvedHelper",
			source:   "def seed():\n    helper()\n",
			seed:     "seed",
			options:  opts(3),
			contexts: []string{"seed"},
		},
		{
			name:     "FanInSuppression",
			source:   "def root():\n    p()\n    q()\n\ndef p():\n    shared()\n\ndef q():\n    shared()\n\ndef shared():\n    pass\n",
			seed:     "root",
			options:  opts(3),
			contexts: []string{"root", "p", "shared", "q"},
			edges:    []string{"root->p", "root->q", "p->shared"},
		},
		{
			name:     "TestFunctionVisitedNotMaterialized",
			source:   "def a():\n    test_foo()\n\ndef test_foo():\n    b()\n\ndef b():\n    pass\n",
			seed:     "a",
			options:  opts(3),
			contexts: []string{"a"},
		},
		{
			name:     "PytestDecoratedSkipped",
			source:   "import pytest\n\ndef a():\n    check()\n\n@pytest.fixture\ndef check():\n    pass\n",
			seed:     "a",
			options:  opts(3),
			contexts: []string{"a"},
		},
		{
			name:     "NestedFunctionResolvesLocally",
			source:   "def outer():\n    def inner():\n        pass\n    inner()\n\ndef inner():\n    pass\n",
			seed:     "outer",
			options:  opts(2),
			contexts: []string{"outer", "inner"},
			edges:    []string{"outer->inner"},
		},
		{
			name:     "RecursionTerminates",
			source:   "def a():\n    b()\n\ndef b():\n    a()\n",
			seed:     "a",
			options:  opts(10),
			contexts: []string{"a", "b"},
			edges:    []string{"a->b"},
		},
		{
			name:     "MethodStrategyAcrossClasses",
			source:   "class Repo:\n    def save(self):\n        pass\n\ndef run(repo):\n    repo.save()\n",
			seed:     "run",
			options:  opts(2),
			contexts: []string{"run", "Repo.save"},
			edges:    []string{"run->Repo.save"},
		},
	}

	for _, kind := range classifierKinds {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			for _, tc := range cases {
				tc := tc
				t.Run(tc.name, func(t *testing.T) {
					root := writeTree(t, map[string]string{"mod.py": tc.source})
					a := newTestAnalyzer(t, root, tc.options, kind)

					result := analyzeSeed(t, a, root, "mod.py", tc.seed)
					assert.Equal(t, tc.contexts, contextNames(result))
					if len(tc.edges) == 0 {
						assert.Empty(t, edgeNames(result))
					} else {
						assert.ElementsMatch(t, tc.edges, edgeNames(result))
					}
					require.NotNil(t, result.Seed)
					assert.Equal(t, tc.seed, result.Seed.QualifiedName)
				})
			}
		})
	}
}

func TestAnalyze_IncludeTests(t *testing.T) {
	source := "def a():\n    test_foo()\n\ndef test_foo():\n    b()\n\ndef b():\n    pass\n"
	for _, kind := range classifierKinds {
		t.Run(kind, func(t *testing.T) {
			root := writeTree(t, map[string]string{"mod.py": source})
			o := opts(3)
			o.IncludeTests = true
			a := newTestAnalyzer(t, root, o, kind)

			result := analyzeSeed(t, a, root, "mod.py", "a")
			assert.Equal(t, []string{"a", "test_foo", "b"}, contextNames(result))
			assert.Equal(t, []string{"a->test_foo", "test_foo->b"}, edgeNames(result))
		})
	}
}

func TestAnalyze_DepthBound(t *testing.T) {
	source := "def d0():\n    d1()\n\ndef d1():\n    d2()\n\ndef d2():\n    d3()\n\ndef d3():\n    d4()\n\ndef d4():\n    pass\n"
	for _, kind := range classifierKinds {
		t.Run(kind, func(t *testing.T) {
			root := writeTree(t, map[string]string{"chain.py": source})
			for depth := 0; depth <= 4; depth++ {
				a := newTestAnalyzer(t, root, opts(depth), kind)
				result := analyzeSeed(t, a, root, "chain.py", "d0")
				require.Len(t, result.Contexts, depth+1)
				for _, fc := range result.Contexts {
					assert.LessOrEqual(t, fc.Depth, depth)
				}
			}
		})
	}
}

func TestAnalyze_DeterministicAndIdempotent(t *testing.T) {
	files := map[string]string{
		"app.py": "from lib import helper\n\nclass A:\n    def go(self):\n        self.step()\n        helper()\n        other.run()\n\n    def step(self):\n        pass\n\nclass B:\n    def run(self):\n        pass\n\nclass C:\n    def run(self):\n        pass\n",
		"lib.py": "def helper():\n    inner()\n\ndef inner():\n    pass\n",
	}
	for _, kind := range classifierKinds {
		t.Run(kind, func(t *testing.T) {
			root := writeTree(t, files)
			a := newTestAnalyzer(t, root, opts(3), kind)

			first := analyzeSeed(t, a, root, "app.py", "A.go")
			second := analyzeSeed(t, a, root, "app.py", "A.go")

			assert.Equal(t, contextNames(first), contextNames(second))
			assert.Equal(t, first.Edges(), second.Edges())
			assert.Equal(t, []string{"A.go", "A.step", "helper", "inner", "B.run"}, contextNames(first))
		})
	}
}

func TestAnalyze_ConcurrentCallsOnOneAnalyzer(t *testing.T) {
	source := "def root():\n    p()\n    q()\n\ndef p():\n    shared()\n\ndef q():\n    shared()\n\ndef shared():\n    pass\n"
	root := writeTree(t, map[string]string{"mod.py": source})
	a := newTestAnalyzer(t, root, opts(3), ClassifierGrammar)
	file := loadFile(t, a, root, "mod.py")
	seed, err := FindSeed(file, "root", a.Classifier())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := a.Analyze(context.Background(), seed)
			if err == nil {
				results[i] = r
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, []string{"root", "p", "shared", "q"}, contextNames(r))
		assert.Len(t, r.Edges(), 3)
	}
}

func TestAnalyze_NonFunctionSeedYieldsEmptyResult(t *testing.T) {
	root := writeTree(t, map[string]string{"mod.py": "class C:\n    pass\n"})
	a := newTestAnalyzer(t, root, opts(3), ClassifierGrammar)
	file := loadFile(t, a, root, "mod.py")

	result, err := a.Analyze(context.Background(), file.Root.Children()[0])
	require.NoError(t, err)
	assert.Nil(t, result.Seed)
	assert.Empty(t, result.Contexts)

	result, err = a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Contexts)
}

func TestAnalyze_CancelledContextReturnsPartialResult(t *testing.T) {
	root := writeTree(t, map[string]string{"mod.py": "def a():\n    b()\n\ndef b():\n    pass\n"})
	a := newTestAnalyzer(t, root, opts(3), ClassifierGrammar)
	file := loadFile(t, a, root, "mod.py")
	seed, err := FindSeed(file, "a", a.Classifier())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := a.Analyze(ctx, seed)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, []string{"a"}, contextNames(result))
}

func TestAnalyze_ContextMetadata(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/shop/orders.py": "class Orders:\n    @staticmethod\n    def place():\n        # record it\n        return 1\n",
	})
	for _, kind := range classifierKinds {
		t.Run(kind, func(t *testing.T) {
			o := opts(1)
			o.IncludeComments = false
			a := newTestAnalyzer(t, root, o, kind)

			result := analyzeSeed(t, a, root, "src/shop/orders.py", "Orders.place")
			require.Len(t, result.Contexts, 1)
			fc := result.Contexts[0]
			assert.Equal(t, "Orders.place", fc.QualifiedName)
			assert.Equal(t, "Orders", fc.ClassName)
			assert.Equal(t, "orders.py", fc.FileName)
			assert.Equal(t, "shop", fc.PackageName)
			assert.True(t, fc.IsProjectFunction)
			assert.Equal(t, 2, fc.Line)
			assert.True(t, strings.HasSuffix(fc.Signature, "orders.py::Orders.place"))
			assert.Equal(t, "@staticmethod\n    def place():\n        return 1\n", fc.SourceText)
			assert.Same(t, fc, result.Lookup(fc.Signature))
		})
	}
}

func TestNewAnalyzer_Validation(t *testing.T) {
	_, err := NewAnalyzer(DefaultOptions(), nil, nil)
	require.Error(t, err)

	root := writeTree(t, map[string]string{})
	a := newTestAnalyzer(t, root, DefaultOptions(), ClassifierGrammar)
	_, err = NewAnalyzer(Options{MaxDepth: -1}, a.Project(), nil)
	require.Error(t, err)

	_, err = NewClassifier("regex")
	require.Error(t, err)
}
