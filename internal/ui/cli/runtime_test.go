package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appSource = `import helpers


def main():
    helper()
    helpers.shared()


def helper():
    # local
    return 1
`

const helpersSource = `def shared():
    return 2
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte(appSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "helpers.py"), []byte(helpersSource), 0o644))
	return root
}

func execute(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(&stdout)
	cmd.SetErr(&stderr)
	base := []string{"--config", filepath.Join(root, "missing.toml"), "--root", root}
	cmd.SetArgs(append(append([]string{}, args[:1]...), append(base, args[1:]...)...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeCommand_Markdown(t *testing.T) {
	root := writeProject(t)
	out, summary, err := execute(t, root, "analyze", filepath.Join(root, "app.py"), "main")
	require.NoError(t, err)

	assert.Contains(t, out, "# Call context for `main`")
	assert.Contains(t, out, "## 2. `helper`")
	assert.Contains(t, out, "## 3. `shared`")
	assert.Contains(t, out, "# local")
	assert.Contains(t, summary, "functions")
}

func TestAnalyzeCommand_FlagsOverrideConfig(t *testing.T) {
	root := writeProject(t)
	out, _, err := execute(t, root, "analyze", filepath.Join(root, "app.py"), "main",
		"--format", "json", "--max-depth", "0", "--include-comments=false", "--classifier", "text")
	require.NoError(t, err)

	var doc struct {
		Functions []struct {
			Name string `json:"name"`
		} `json:"functions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Functions, 1)
	assert.Equal(t, "main", doc.Functions[0].Name)
}

func TestAnalyzeCommand_WritesOutFileAndInjects(t *testing.T) {
	root := writeProject(t)
	readme := filepath.Join(root, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("<!-- callctx:graph:start -->\n<!-- callctx:graph:end -->\n"), 0o644))

	out, _, err := execute(t, root, "analyze", filepath.Join(root, "app.py"), "main",
		"--format", "dot", "--out", "docs/graph.dot", "--inject", readme+":graph")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(root, "docs", "graph.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph callgraph")

	injected, err := os.ReadFile(readme)
	require.NoError(t, err)
	assert.Contains(t, string(injected), "```mermaid\nflowchart LR")
}

func TestAnalyzeCommand_SeedByLine(t *testing.T) {
	root := writeProject(t)
	out, _, err := execute(t, root, "analyze", filepath.Join(root, "app.py"), "--line", "11", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "seed: helper")
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	root := writeProject(t)

	_, _, err := execute(t, root, "analyze", filepath.Join(root, "app.py"))
	assert.True(t, errors.Is(err, errUsage), "expected usage error, got %v", err)

	_, _, err = execute(t, root, "analyze", filepath.Join(root, "app.py"), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")

	_, _, err = execute(t, root, "analyze", filepath.Join(root, "app.py"), "main", "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")

	_, _, err = execute(t, root, "analyze", filepath.Join(root, "app.py"), "main", "--inject", "README.md")
	assert.True(t, errors.Is(err, errUsage), "expected usage error, got %v", err)
}

func TestHistoryAndShowCommands(t *testing.T) {
	root := writeProject(t)
	_, summary, err := execute(t, root, "analyze", filepath.Join(root, "app.py"), "main", "--save")
	require.NoError(t, err)

	runID := regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`).FindString(summary)
	require.NotEmpty(t, runID, "expected run id in summary: %s", summary)

	listing, _, err := execute(t, root, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, listing, runID)
	assert.Contains(t, listing, "main")

	shown, _, err := execute(t, root, "show", runID, "--format", "mermaid")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(shown, "flowchart LR"))

	_, _, err = execute(t, root, "show", "missing-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	cmd := NewRootCommand(&stdout)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "callctx v"+versionString+"\n", stdout.String())
}

func TestParseInject(t *testing.T) {
	path, marker, err := parseInject("docs/README.md:calls")
	require.NoError(t, err)
	assert.Equal(t, "docs/README.md", path)
	assert.Equal(t, "calls", marker)

	for _, bad := range []string{"README.md", ":calls", "README.md:"} {
		_, _, err := parseInject(bad)
		assert.Error(t, err, bad)
	}
}

func TestObservabilityServer_Health(t *testing.T) {
	up := NewObservabilityServer("127.0.0.1:0", map[string]HealthCheck{
		"ok": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	up.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"up"`)

	down := NewObservabilityServer("127.0.0.1:0", map[string]HealthCheck{
		"history": func(context.Context) error { return errors.New("missing") },
	})
	rec = httptest.NewRecorder()
	down.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":"missing"`)

	rec = httptest.NewRecorder()
	up.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestObservabilityServer_StartStop(t *testing.T) {
	s := NewObservabilityServer("127.0.0.1:0", nil)
	require.NoError(t, s.Start(context.Background()))
	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, s.Stop(context.Background()))
}
