package config

import (
	"fmt"
	"net/url"
	"strings"

	domainerrors "callctx/internal/core/errors"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
)

var structValidate = validator.New()

// Validate runs the struct tag rules followed by the cross-field checks.
func Validate(cfg *Config) error {
	if err := structValidate.Struct(cfg); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeValidationError, "invalid config")
	}
	for _, check := range []func(*Config) error{validateExclude, validateOutput, validateDatabase, validateNeo4j} {
		if err := check(cfg); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeValidationError, "invalid config")
		}
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for i, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.dirs[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	path := strings.TrimSpace(cfg.Output.Path)
	if path != "" && strings.HasSuffix(path, "/") {
		return fmt.Errorf("output.path %q must name a file", cfg.Output.Path)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateNeo4j(cfg *Config) error {
	u, err := url.Parse(strings.TrimSpace(cfg.Neo4j.URI))
	if err != nil {
		return fmt.Errorf("neo4j.uri %q: %w", cfg.Neo4j.URI, err)
	}
	switch u.Scheme {
	case "neo4j", "neo4j+s", "neo4j+ssc", "bolt", "bolt+s", "bolt+ssc":
		return nil
	default:
		return fmt.Errorf("neo4j.uri scheme must be neo4j or bolt, got %q", u.Scheme)
	}
}
