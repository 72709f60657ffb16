package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies CALLCTX_[SECTION]_[KEY] environment overrides.
func ApplyEnvOverrides(cfg *Config) {
	setEnvInt(&cfg.Analysis.MaxDepth, "CALLCTX_ANALYSIS_MAX_DEPTH")
	setEnvBool(&cfg.Analysis.IncludeTests, "CALLCTX_ANALYSIS_INCLUDE_TESTS")
	setEnvBool(&cfg.Analysis.IncludeComments, "CALLCTX_ANALYSIS_INCLUDE_COMMENTS")
	setEnvBool(&cfg.Analysis.ProjectWideClasses, "CALLCTX_ANALYSIS_PROJECT_WIDE_CLASSES")
	setEnvString(&cfg.Analysis.Classifier, "CALLCTX_ANALYSIS_CLASSIFIER")

	setEnvString(&cfg.Paths.ProjectRoot, "CALLCTX_PATHS_PROJECT_ROOT")
	setEnvInt(&cfg.Cache.ParsedFiles, "CALLCTX_CACHE_PARSED_FILES")

	setEnvBool(&cfg.DB.Enabled, "CALLCTX_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "CALLCTX_DB_PATH")

	setEnvString(&cfg.Neo4j.URI, "CALLCTX_NEO4J_URI")
	setEnvString(&cfg.Neo4j.User, "CALLCTX_NEO4J_USER")
	setEnvString(&cfg.Neo4j.Password, "CALLCTX_NEO4J_PASSWORD")
	setEnvString(&cfg.Neo4j.Database, "CALLCTX_NEO4J_DATABASE")

	setEnvDuration(&cfg.Watch.Debounce, "CALLCTX_WATCH_DEBOUNCE")

	setEnvString(&cfg.Observability.MetricsAddr, "CALLCTX_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CALLCTX_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
