package config

import (
	"os"
	"strings"

	domainerrors "callctx/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads the TOML file at path on top of DefaultConfig and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeIO, "read config"), domainerrors.CtxPath, path)
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeValidationError, "decode config"), domainerrors.CtxPath, path)
	}

	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to DefaultConfig when path
// is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !os.IsNotExist(err) {
			return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeIO, "stat config"), domainerrors.CtxPath, path)
		}
	}
	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Analysis.Classifier = strings.ToLower(strings.TrimSpace(cfg.Analysis.Classifier))
	if cfg.Analysis.Classifier == "" {
		cfg.Analysis.Classifier = DefaultClassifier
	}
	if strings.TrimSpace(cfg.Paths.ProjectRoot) == "" {
		cfg.Paths.ProjectRoot = DefaultProjectRoot
	}
	if cfg.Cache.ParsedFiles == 0 {
		cfg.Cache.ParsedFiles = DefaultCacheSize
	}
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if cfg.Output.Format == "" {
		cfg.Output.Format = DefaultFormat
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = DefaultDBPath
	}
	if strings.TrimSpace(cfg.Neo4j.URI) == "" {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if strings.TrimSpace(cfg.Neo4j.User) == "" {
		cfg.Neo4j.User = DefaultNeo4jUser
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
}
