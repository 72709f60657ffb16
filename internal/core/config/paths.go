package config

import (
	"path/filepath"
	"strings"
)

// ResolvedPaths holds absolute forms of the path settings.
type ResolvedPaths struct {
	ProjectRoot string
	DBPath      string
	OutputPath  string
}

// ResolvePaths anchors the project root at cwd and the database and output
// paths at the project root.
func ResolvePaths(cfg *Config, cwd string) ResolvedPaths {
	root := ResolveRelative(cwd, cfg.Paths.ProjectRoot)
	resolved := ResolvedPaths{
		ProjectRoot: root,
		DBPath:      ResolveRelative(root, cfg.DB.Path),
	}
	if strings.TrimSpace(cfg.Output.Path) != "" {
		resolved.OutputPath = ResolveRelative(root, cfg.Output.Path)
	}
	return resolved
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
