package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NormalizePatternPath cleans and normalizes paths for matcher/pattern usage.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// RelativeSegments returns the directory segments of filePath relative to root
// when filePath lies inside root, otherwise the segments of the absolute path.
// The file name itself is not included.
func RelativeSegments(root, filePath string) []string {
	dir := filepath.Dir(filePath)
	if root != "" {
		if rel, err := filepath.Rel(root, dir); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			dir = rel
		}
	}
	normalized := NormalizePatternPath(dir)
	if normalized == "" || normalized == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(normalized, "/"), "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}

// WriteStringWithDirs writes string content with parent directories created.
func WriteStringWithDirs(path, content string, perm fs.FileMode) error {
	return WriteFileWithDirs(path, []byte(content), perm)
}
