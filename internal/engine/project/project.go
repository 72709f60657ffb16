package project

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"callctx/internal/core/errors"
	"callctx/internal/engine/parser"
	"callctx/internal/shared/observability"
	"callctx/internal/shared/util"

	"github.com/gobwas/glob"
)

// DefaultExcludedDirs are directory globs that never hold project code.
var DefaultExcludedDirs = []string{"venv", "__pycache__", "site-packages", "dist-packages", ".*"}

const DefaultCacheSize = 256

type Options struct {
	ExcludeDirs  []string
	ExcludeFiles []string
	CacheSize    int
}

// Project resolves module names to files under a root directory and serves
// parsed files from a shared LRU cache.
type Project struct {
	root         string
	parser       *parser.Parser
	cache        *lruCache[string, cachedFile]
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

type cachedFile struct {
	file    *parser.SourceFile
	modTime time.Time
	size    int64
}

func New(root string, p *parser.Parser, opts Options) (*Project, error) {
	if p == nil {
		return nil, errors.New(errors.CodeValidationError, "parser is required")
	}
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "resolve project root")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "stat project root"), errors.CtxPath, abs)
	}
	if !info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "project root is not a directory"), errors.CtxPath, abs)
	}

	dirs, err := compileGlobs(append(append([]string{}, DefaultExcludedDirs...), opts.ExcludeDirs...))
	if err != nil {
		return nil, err
	}
	files, err := compileGlobs(opts.ExcludeFiles)
	if err != nil {
		return nil, err
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}

	return &Project{
		root:         abs,
		parser:       p,
		cache:        newLRUCache[string, cachedFile](size),
		excludeDirs:  dirs,
		excludeFiles: files,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid exclude pattern"), "pattern", pattern)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func (p *Project) Root() string {
	return p.root
}

// Load returns the parsed file at path. Entries are reparsed when the file's
// size or modification time changed since it was cached.
func (p *Project) Load(path string) (*parser.SourceFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "resolve source path"), errors.CtxPath, path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "stat source file"), errors.CtxPath, abs)
	}

	if cached, ok := p.cache.Get(abs); ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		observability.ParsedFileCacheTotal.WithLabelValues("hit").Inc()
		return cached.file, nil
	}
	observability.ParsedFileCacheTotal.WithLabelValues("miss").Inc()

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "read source file"), errors.CtxPath, abs)
	}
	file, err := p.parser.ParseFile(abs, content)
	if err != nil {
		return nil, err
	}
	p.cache.Put(abs, cachedFile{file: file, modTime: info.ModTime(), size: info.Size()})
	return file, nil
}

// Invalidate drops cached parses for the given paths.
func (p *Project) Invalidate(paths ...string) {
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			p.cache.Evict(abs)
		}
	}
}

// Candidates maps a dotted module name to the existing files that may define
// it: {path}.py and {path}/__init__.py. Leading dots make the name relative to
// fromFile's directory, one level up per extra dot.
func (p *Project) Candidates(fromFile, module string) []string {
	module = strings.TrimSpace(module)
	if module == "" {
		return nil
	}

	base := p.root
	rest := module
	if strings.HasPrefix(module, ".") {
		dots := len(module) - len(strings.TrimLeft(module, "."))
		rest = module[dots:]
		base = filepath.Dir(fromFile)
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
	}

	var paths []string
	if rest == "" {
		paths = []string{filepath.Join(base, "__init__.py")}
	} else {
		modulePath := filepath.Join(base, filepath.FromSlash(strings.ReplaceAll(rest, ".", "/")))
		paths = []string{modulePath + ".py", filepath.Join(modulePath, "__init__.py")}
	}

	out := make([]string, 0, len(paths))
	for _, candidate := range paths {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			out = append(out, candidate)
		}
	}
	return out
}

// PythonFiles lists every non-excluded .py file under the root in lexical order.
func (p *Project) PythonFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != p.root && p.matchesDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" || p.matchesFile(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "walk project"), errors.CtxPath, p.root)
	}
	sort.Strings(files)
	return files, nil
}

// IsExcluded reports whether path lies under an excluded directory or matches
// an excluded file pattern. Directory segments are taken relative to the root
// when path is inside it.
func (p *Project) IsExcluded(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, segment := range util.RelativeSegments(p.root, abs) {
		if p.matchesDir(segment) {
			return true
		}
	}
	return p.matchesFile(filepath.Base(abs))
}

func (p *Project) matchesDir(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	for _, g := range p.excludeDirs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (p *Project) matchesFile(name string) bool {
	for _, g := range p.excludeFiles {
		if g.Match(name) {
			return true
		}
	}
	return false
}
