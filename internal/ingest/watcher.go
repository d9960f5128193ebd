package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots []string // directories to watch (recursive)
	// Include holds doublestar patterns relative to the root; empty means DefaultInclude.
	Include     []string
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// StartWatcher emits the path of every included document created or changed
// below the roots. Bursts on one path within Debounce are emitted once. Both
// channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	m, err := NewMatcher(cfg.Include)
	if err != nil {
		return nil, nil, err
	}
	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, abs)
	}
	included := func(path string) bool {
		for _, r := range roots {
			rel, err := filepath.Rel(r, path)
			if err == nil && filepath.IsLocal(rel) && m.Match(rel) {
				return true
			}
		}
		return false
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string, found func(string)) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if found != nil && included(path) {
				found(path)
			}
			return nil
		})
	}
	var collect func(string)
	if cfg.InitialScan {
		collect = func(p string) { initial = append(initial, p) }
	}
	for _, r := range roots {
		if err := addDir(r, collect); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		// pending and timer are owned by this goroutine only.
		pending := map[string]struct{}{}
		var timer *time.Timer
		var fire <-chan time.Time
		arm := func() {
			if timer == nil {
				timer = time.NewTimer(cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(cfg.Debounce)
			}
			fire = timer.C
		}
		// flush skips paths that are gone by now, such as files moved out
		// of the roots or removed right after being written.
		flush := func() bool {
			for p := range pending {
				delete(pending, p)
				if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
					logger.Debug("watcher dropped vanished path", "path", p)
					continue
				}
				if !emit(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						// Files may land in a new directory before its watch exists.
						if !IsHidden(e.Name) {
							err := addDir(e.Name, func(p string) { pending[p] = struct{}{} })
							if err != nil {
								logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
							}
						}
						if len(pending) > 0 {
							if cfg.Debounce <= 0 {
								if !flush() {
									return
								}
							} else {
								arm()
							}
						}
						continue
					}
				}
				// Rename fires for the old name; the new name arrives as Create.
				if !included(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				arm()
			case <-fire:
				fire = nil
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
