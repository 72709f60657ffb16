package graphdb

import (
	"context"
	"errors"
	"strings"
	"testing"

	domainerrors "callctx/internal/core/errors"
	"callctx/internal/engine/callgraph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *callgraph.Result {
	main := &callgraph.FunctionContext{Signature: "/p/src/app/main.py::main", QualifiedName: "main", FilePath: "/p/src/app/main.py", Line: 1, EndLine: 3, PackageName: "app", IsProjectFunction: true}
	run := &callgraph.FunctionContext{Signature: "/p/src/app/svc.py::Service.run", QualifiedName: "Service.run", ClassName: "Service", FilePath: "/p/src/app/svc.py", Line: 4, EndLine: 6, Depth: 1, PackageName: "app", IsProjectFunction: true}
	util := &callgraph.FunctionContext{Signature: "/p/util.py::helper", QualifiedName: "helper", FilePath: "/p/util.py", Line: 1, EndLine: 2, Depth: 2, IsProjectFunction: true}
	main.AddDependency(run)
	run.AddDependency(util)
	return &callgraph.Result{Seed: main, Contexts: []*callgraph.FunctionContext{main, run, util}}
}

type recordedQuery struct {
	cypher string
	params map[string]any
}

func recordingExporter(fail string) (*Exporter, *[]recordedQuery) {
	var queries []recordedQuery
	e := &Exporter{run: func(_ context.Context, cypher string, params map[string]any) error {
		queries = append(queries, recordedQuery{cypher: cypher, params: params})
		if fail != "" && strings.Contains(cypher, fail) {
			return errors.New("connection reset")
		}
		return nil
	}}
	return e, &queries
}

func TestBatches(t *testing.T) {
	result := sampleResult()

	packages := PackageBatch(result)
	require.Len(t, packages, 1)
	assert.Equal(t, "app", packages[0]["name"])

	functions := FunctionBatch(result)
	require.Len(t, functions, 3)
	assert.Equal(t, "Service.run", functions[1]["name"])
	assert.Equal(t, "Service", functions[1]["class_name"])
	assert.Equal(t, int64(4), functions[1]["line"])

	calls := CallBatch(result, "run-1")
	require.Len(t, calls, 2)
	assert.Equal(t, "/p/src/app/main.py::main", calls[0]["caller"])
	assert.Equal(t, "/p/src/app/svc.py::Service.run", calls[0]["callee"])
	assert.Equal(t, "run-1", calls[1]["run_id"])
}

func TestExport_RunsIndexesThenBatches(t *testing.T) {
	e, queries := recordingExporter("")
	require.NoError(t, e.Export(context.Background(), sampleResult(), "run-1"))

	require.Len(t, *queries, len(indexStatements)+3)
	for i := range indexStatements {
		assert.Contains(t, (*queries)[i].cypher, "CREATE INDEX")
	}
	steps := (*queries)[len(indexStatements):]
	assert.Contains(t, steps[0].cypher, "PyPackage")
	assert.Contains(t, steps[1].cypher, "MERGE (n:PyFunction")
	assert.Contains(t, steps[2].cypher, "CALLS")
	assert.Len(t, steps[2].params["batch"], 2)
}

func TestExport_EmptyResultIsNoop(t *testing.T) {
	e, queries := recordingExporter("")
	require.NoError(t, e.Export(context.Background(), &callgraph.Result{}, "run-1"))
	require.NoError(t, e.Export(context.Background(), nil, "run-1"))
	assert.Empty(t, *queries)
}

func TestExport_SkipsEmptyPackageBatch(t *testing.T) {
	e, queries := recordingExporter("")
	fc := &callgraph.FunctionContext{Signature: "/p/a.py::a", QualifiedName: "a"}
	require.NoError(t, e.Export(context.Background(), &callgraph.Result{Seed: fc, Contexts: []*callgraph.FunctionContext{fc}}, "r"))
	require.Len(t, *queries, len(indexStatements)+1)
	assert.Contains(t, (*queries)[len(indexStatements)].cypher, "MERGE (n:PyFunction")
}

func TestExport_PropagatesFailure(t *testing.T) {
	e, _ := recordingExporter("CALLS")
	err := e.Export(context.Background(), sampleResult(), "run-1")
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeUnavailable))
	assert.Contains(t, err.Error(), "export calls")
}

func TestClose_NilSafe(t *testing.T) {
	var e *Exporter
	assert.NoError(t, e.Close(context.Background()))
	assert.NoError(t, (&Exporter{}).Close(context.Background()))
}
