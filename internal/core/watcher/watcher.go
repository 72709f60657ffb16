package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"callctx/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultExtensions are the file types whose changes trigger a rerun.
var DefaultExtensions = []string{".py", ".pyi"}

// Watcher batches Python source changes under a set of roots and hands
// them to a callback once the debounce window has passed without events.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	extFilters   map[string]bool
	onChange     func([]string)
	callbackMu   sync.Mutex

	roots     map[string]bool
	hashes    map[string][sha256.Size]byte
	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
}

func NewWatcher(debounce time.Duration, excludeDirs, excludeFiles []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs, err := compileAll(excludeDirs)
	if err != nil {
		return nil, err
	}
	compiledFiles, err := compileAll(excludeFiles)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
		onChange:     onChange,
		roots:        make(map[string]bool),
		hashes:       make(map[string][sha256.Size]byte),
		pending:      make(map[string]time.Time),
	}
	w.SetExtensions(DefaultExtensions)
	return w, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// SetExtensions replaces the watched file extensions.
func (w *Watcher) SetExtensions(extensions []string) {
	filters := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		filters[normalized] = true
	}
	w.extFilters = filters
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch registers every non-excluded directory under paths and starts the
// event loop.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		clean := filepath.Clean(path)
		w.roots[clean] = true
		if err := w.watchRecursive(clean, true); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

// watchRecursive adds root and its subdirectories. With seed set, the
// current content of each file becomes the baseline for change detection.
func (w *Watcher) watchRecursive(root string, seed bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		if seed && !w.shouldExcludeFile(path) {
			w.recordHash(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name, false); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
				w.forgetHash(event.Name)
				w.scheduleChange(event.Name)
			case event.Op&fsnotify.Write == fsnotify.Write, event.Op&fsnotify.Create == fsnotify.Create:
				if w.contentChanged(event.Name) {
					w.scheduleChange(event.Name)
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func hashFile(path string) ([sha256.Size]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}

func (w *Watcher) recordHash(path string) {
	if sum, ok := hashFile(path); ok {
		w.pendingMu.Lock()
		w.hashes[path] = sum
		w.pendingMu.Unlock()
	}
}

func (w *Watcher) forgetHash(path string) {
	w.pendingMu.Lock()
	delete(w.hashes, path)
	w.pendingMu.Unlock()
}

// contentChanged reports whether path differs from its last seen content.
// Unreadable files count as changed.
func (w *Watcher) contentChanged(path string) bool {
	sum, ok := hashFile(path)
	if !ok {
		return true
	}
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if prev, seen := w.hashes[path]; seen && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(paths)
	}
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	if w.roots[filepath.Clean(path)] {
		return false
	}
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := filepath.Base(path)
	if len(w.extFilters) > 0 && !w.extFilters[strings.ToLower(filepath.Ext(base))] {
		return true
	}
	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		if w.contentChanged(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}
