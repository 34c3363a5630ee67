package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Watcher reloads only LogLevel from the config file on write events,
// adapted from the teacher's HotReloadSystem but narrowed: every other
// field is immutable after boot, so a rewrite of the file cannot smuggle in
// a new MaxTasks or MaxNumPipes at runtime.
type Watcher struct {
	path    string
	level   *slog.LevelVar
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	watching  bool
	done      chan struct{}
	lastLevel string
}

// NewWatcher builds a Watcher over path that keeps level in sync with the
// file's log_level field. level is also the value read at Load time, so
// callers should seed it from the initial Config before calling Watch.
func NewWatcher(path string, level *slog.LevelVar) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{path: path, level: level, watcher: w}, nil
}

// Watch starts watching the config file's directory in the background. It
// is a no-op if already watching.
func (cw *Watcher) Watch() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.watching {
		return nil
	}
	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %s: %w", dir, err)
	}
	cw.watching = true
	cw.done = make(chan struct{})
	go cw.run(cw.done)
	return nil
}

// Stop stops watching and releases the underlying inotify/kqueue handle.
func (cw *Watcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.watching {
		return nil
	}
	cw.watching = false
	close(cw.done)
	return cw.watcher.Close()
}

func (cw *Watcher) run(done chan struct{}) {
	for {
		select {
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if e.Name != cw.path {
				continue
			}
			if e.Op&fsnotify.Write == fsnotify.Write {
				cw.reload()
			}
		case _, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
		case <-done:
			return
		}
	}
}

func (cw *Watcher) reload() {
	data, err := os.ReadFile(cw.path)
	if err != nil {
		return
	}
	cfg := Default()
	cfg.LogLevel = cw.lastLevel
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return
	}
	lvl, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return
	}
	cw.lastLevel = cfg.LogLevel
	cw.level.Set(lvl)
}
