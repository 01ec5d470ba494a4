// Package watcher refreshes the engine when files below a directory change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"rag/internal/logger"
	"rag/internal/source/directory"
	"rag/internal/source/loader"
)

// DefaultDebounce is the quiet period before a burst of changes triggers a refresh.
const DefaultDebounce = 500 * time.Millisecond

// Refresher is the part of the engine the watcher drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Watcher struct {
	root       string
	extensions []string
	debounce   time.Duration
	target     Refresher
	fsw        *fsnotify.Watcher
	closeOnce  sync.Once
}

// New watches root and its non-hidden subdirectories. Empty extensions fall
// back to loader.DefaultExtensions.
func New(root string, extensions []string, debounce time.Duration, target Refresher) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if len(extensions) == 0 {
		extensions = loader.DefaultExtensions
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	w := &Watcher{root: root, extensions: extensions, debounce: debounce, target: target, fsw: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && directory.IsHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watcher: watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is done, refreshing after each quiet period.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	deb := NewDebouncer(w.debounce, func() {
		logger.Info("watcher: changes detected, refreshing")
		if err := w.target.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("watcher: refresh failed: %v", err)
		}
	})
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			logger.Debug("watcher: %s", ev)
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn("%v", err)
					}
				}
			}
			deb.Trigger()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				deb.Trigger()
				continue
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// relevant filters out hidden paths, attribute-only changes and unsupported files.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod || directory.IsHidden(filepath.Base(ev.Name)) {
		return false
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		// the path is gone, so a removed directory cannot be told apart from a file
		return true
	}
	if loader.Supported(filepath.Ext(ev.Name), w.extensions) {
		return true
	}
	info, err := os.Stat(ev.Name)
	return err == nil && info.IsDir()
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fsw.Close() })
	return err
}
