package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domainerrors "callctx/internal/core/errors"
	"callctx/internal/data/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedRun() history.RunDetail {
	return history.RunDetail{
		Run: history.Run{
			ID:              "run-1",
			CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Root:            "/p",
			SeedFile:        "/p/app.py",
			Seed:            "main",
			UnresolvedCount: 1,
		},
		Functions: []history.FunctionRecord{
			{Signature: "/p/app.py::main", QualifiedName: "main", FilePath: "/p/app.py", Line: 1, IsProject: true, SourceText: "def main():\n    helper()\n"},
			{Signature: "/p/app.py::helper", QualifiedName: "helper", FilePath: "/p/app.py", Line: 4, Depth: 1, IsProject: true, SourceText: "def helper():\n    pass\n"},
		},
		Edges: []history.EdgeRecord{{From: "/p/app.py::main", To: "/p/app.py::helper"}},
	}
}

func TestFromRun(t *testing.T) {
	doc := FromRun(storedRun())

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, "app.py", doc.SeedFile)
	require.Len(t, doc.Functions, 2)
	assert.Equal(t, "app.py", doc.Functions[0].File)
	assert.Equal(t, []string{"/p/app.py::helper"}, doc.Functions[0].Dependencies)
	assert.Equal(t, 1, doc.Unresolved)
}

func TestRender_AllFormats(t *testing.T) {
	doc := FromRun(storedRun())
	markers := map[string]string{
		FormatMarkdown: "# Call context for `main`",
		FormatJSON:     "\"run_id\": \"run-1\"",
		FormatYAML:     "run_id: run-1",
		FormatDOT:      "digraph callgraph",
		FormatMermaid:  "flowchart LR",
	}
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			out, err := Render(format, doc, Options{IncludeSource: true})
			require.NoError(t, err)
			assert.Contains(t, out, markers[format])
		})
	}

	out, err := Render("", doc, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "---\n"))
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render("pdf", FromRun(storedRun()), Options{})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeNotSupported))
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.md")
	require.NoError(t, Write(path, "content"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestReplaceBetweenMarkers(t *testing.T) {
	content := strings.Join([]string{
		"# Docs",
		"<!-- callctx:graph:start -->",
		"old",
		"<!-- callctx:graph:end -->",
	}, "\n")
	got, err := ReplaceBetweenMarkers(content, "graph", "new-line")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "<!-- callctx:graph:start -->\nnew-line\n<!-- callctx:graph:end -->") {
		t.Fatalf("unexpected marker replacement result: %s", got)
	}
}

func TestReplaceBetweenMarkers_MissingMarker(t *testing.T) {
	_, err := ReplaceBetweenMarkers("no markers here", "graph", "content")
	if err == nil {
		t.Fatal("expected error for missing markers")
	}
}

func TestInjectDiagram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	initial := "<!-- callctx:deps:start -->\nold\n<!-- callctx:deps:end -->\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InjectDiagram(path, "deps", "```mermaid\nflowchart LR\n```"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "flowchart LR") || strings.Contains(string(data), "old") {
		t.Fatalf("expected updated markdown diagram, got: %s", string(data))
	}
}
