package config

import (
	"time"
)

// Config is the on-disk callctx configuration.
type Config struct {
	Analysis      Analysis      `toml:"analysis"`
	Paths         Paths         `toml:"paths"`
	Exclude       Exclude       `toml:"exclude"`
	Cache         Cache         `toml:"cache"`
	Output        Output        `toml:"output"`
	DB            Database      `toml:"db"`
	Neo4j         Neo4j         `toml:"neo4j"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Analysis struct {
	MaxDepth           int    `toml:"max_depth" validate:"gte=0,lte=64"`
	IncludeTests       bool   `toml:"include_tests"`
	IncludeComments    bool   `toml:"include_comments"`
	ProjectWideClasses bool   `toml:"project_wide_classes"`
	Classifier         string `toml:"classifier" validate:"oneof=text grammar"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Cache struct {
	ParsedFiles int `toml:"parsed_files" validate:"gte=1"`
}

type Output struct {
	Format string `toml:"format" validate:"oneof=markdown json yaml dot mermaid"`
	Path   string `toml:"path"`
}

type Database struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Neo4j struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type Watch struct {
	Debounce         time.Duration `toml:"debounce" validate:"gte=0"`
	MaxRunsPerSecond float64       `toml:"max_runs_per_second" validate:"gte=0"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

const (
	DefaultMaxDepth    = 3
	DefaultClassifier  = "grammar"
	DefaultFormat      = "markdown"
	DefaultDBPath      = ".callctx/history.db"
	DefaultCacheSize   = 256
	DefaultDebounce    = 500 * time.Millisecond
	DefaultNeo4jURI    = "neo4j://localhost:7687"
	DefaultNeo4jUser   = "neo4j"
	DefaultProjectRoot = "."
)

// DefaultConfig is used when no config file exists and as the decode base,
// so keys missing from a file keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: Analysis{
			MaxDepth:        DefaultMaxDepth,
			IncludeComments: true,
			Classifier:      DefaultClassifier,
		},
		Paths: Paths{ProjectRoot: DefaultProjectRoot},
		Cache: Cache{ParsedFiles: DefaultCacheSize},
		Output: Output{
			Format: DefaultFormat,
		},
		DB: Database{Path: DefaultDBPath},
		Neo4j: Neo4j{
			URI:  DefaultNeo4jURI,
			User: DefaultNeo4jUser,
		},
		Watch: Watch{Debounce: DefaultDebounce},
	}
}
