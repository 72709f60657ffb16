package graphdb

import (
	"context"
	"log/slog"
	"sort"

	domainerrors "callctx/internal/core/errors"
	"callctx/internal/engine/callgraph"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds the connection settings for a Neo4j server.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
}

type cypherRunner func(ctx context.Context, cypher string, params map[string]any) error

// Exporter writes call graphs into Neo4j with batched UNWIND statements.
type Exporter struct {
	driver neo4j.DriverWithContext
	run    cypherRunner
}

// NewExporter connects to Neo4j and verifies the server is reachable.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeValidationError, "create neo4j driver"), "uri", cfg.URI)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeUnavailable, "connect to neo4j"), "uri", cfg.URI)
	}

	var opts []neo4j.ExecuteQueryConfigurationOption
	if cfg.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(cfg.Database))
	}
	e := &Exporter{driver: driver}
	e.run = func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
		return err
	}
	return e, nil
}

func (e *Exporter) Close(ctx context.Context) error {
	if e == nil || e.driver == nil {
		return nil
	}
	return e.driver.Close(ctx)
}

var indexStatements = []string{
	"CREATE INDEX py_function_signature IF NOT EXISTS FOR (n:PyFunction) ON (n.signature)",
	"CREATE INDEX py_package_name IF NOT EXISTS FOR (n:PyPackage) ON (n.name)",
}

// Export upserts packages, functions and CALLS relationships for result.
// Edges carry runID so several runs can share one database.
func (e *Exporter) Export(ctx context.Context, result *callgraph.Result, runID string) error {
	if result == nil || result.Len() == 0 {
		return nil
	}
	for _, q := range indexStatements {
		if err := e.run(ctx, q, nil); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "create neo4j index")
		}
	}

	steps := []struct {
		name   string
		cypher string
		batch  []map[string]any
	}{
		{"packages", `UNWIND $batch AS row
		 MERGE (p:PyPackage {name: row.name})`, PackageBatch(result)},
		{"functions", `UNWIND $batch AS row
		 MERGE (n:PyFunction {signature: row.signature})
		 SET n.name = row.name, n.class_name = row.class_name, n.file = row.file,
		     n.line = row.line, n.end_line = row.end_line, n.package = row.package,
		     n.is_project = row.is_project
		 WITH n, row
		 WHERE row.package <> ''
		 MATCH (p:PyPackage {name: row.package})
		 MERGE (n)-[:IN_PACKAGE]->(p)`, FunctionBatch(result)},
		{"calls", `UNWIND $batch AS row
		 MERGE (caller:PyFunction {signature: row.caller})
		 MERGE (callee:PyFunction {signature: row.callee})
		 MERGE (caller)-[r:CALLS]->(callee)
		 SET r.run_id = row.run_id`, CallBatch(result, runID)},
	}
	for _, step := range steps {
		if len(step.batch) == 0 {
			continue
		}
		slog.Debug("exporting to neo4j", "step", step.name, "rows", len(step.batch))
		if err := e.run(ctx, step.cypher, map[string]any{"batch": step.batch}); err != nil {
			return domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeUnavailable, "export "+step.name), domainerrors.CtxRunID, runID)
		}
	}
	return nil
}

// PackageBatch lists the distinct non-empty package names in sorted order.
func PackageBatch(result *callgraph.Result) []map[string]any {
	seen := make(map[string]struct{})
	for _, fc := range result.Contexts {
		if fc.PackageName != "" {
			seen[fc.PackageName] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	batch := make([]map[string]any, 0, len(names))
	for _, name := range names {
		batch = append(batch, map[string]any{"name": name})
	}
	return batch
}

func FunctionBatch(result *callgraph.Result) []map[string]any {
	batch := make([]map[string]any, 0, len(result.Contexts))
	for _, fc := range result.Contexts {
		batch = append(batch, map[string]any{
			"signature":  fc.Signature,
			"name":       fc.QualifiedName,
			"class_name": fc.ClassName,
			"file":       fc.FilePath,
			"line":       int64(fc.Line),
			"end_line":   int64(fc.EndLine),
			"package":    fc.PackageName,
			"is_project": fc.IsProjectFunction,
		})
	}
	return batch
}

func CallBatch(result *callgraph.Result, runID string) []map[string]any {
	edges := result.Edges()
	batch := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		batch = append(batch, map[string]any{
			"caller": edge.From,
			"callee": edge.To,
			"run_id": runID,
		})
	}
	return batch
}
