// Copyright 2023 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package filewatcher reloads Python sources when files under the watched
// paths change.
package filewatcher

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/logging"
)

// DefaultInterval is the minimum time between two reloads.
const DefaultInterval = 250 * time.Millisecond

// OnReload is invoked after the watched paths have been loaded again. If
// loading failed, result is nil and err is set.
type OnReload func(ctx context.Context, result *loader.Result, d time.Duration, err error)

type FileWatcher struct {
	paths    []string
	filter   loader.Filter
	onReload OnReload
	logger   logging.Logger
	limiter  *rate.Limiter
}

func NewFileWatcher(paths []string, filter loader.Filter, onReload OnReload, logger logging.Logger) *FileWatcher {
	return &FileWatcher{
		paths:    paths,
		filter:   filter,
		onReload: onReload,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(DefaultInterval), 1),
	}
}

// WithInterval sets the minimum time between two reloads. Events arriving in
// between are coalesced into one reload.
func (w *FileWatcher) WithInterval(d time.Duration) *FileWatcher {
	w.limiter = rate.NewLimiter(rate.Every(d), 1)
	return w
}

// Start begins watching the paths in the background. The watcher is closed
// when ctx is done.
func (w *FileWatcher) Start(ctx context.Context) error {
	watcher, err := w.getWatcher(w.paths)
	if err != nil {
		return err
	}
	go w.readWatcher(ctx, watcher)
	return nil
}

func (w *FileWatcher) getWatcher(rootPaths []string) (*fsnotify.Watcher, error) {
	watchPaths, err := getWatchPaths(rootPaths)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, path := range watchPaths {
		w.logger.WithFields(map[string]any{"path": path}).Debug("watching path")
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	return watcher, nil
}

func (w *FileWatcher) readWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithFields(map[string]any{"err": err}).Warn("File watcher error.")
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevant(evt) {
				continue
			}
			w.logger.WithFields(map[string]any{
				"event": evt.String(),
			}).Debug("Registered file event.")

			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			drain(watcher.Events)
			w.processWatcherUpdate(ctx)
		}
	}
}

func relevant(evt fsnotify.Event) bool {
	mask := fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	return evt.Op&mask != 0
}

// drain discards events already queued so a burst of writes results in a
// single reload.
func drain(events <-chan fsnotify.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (w *FileWatcher) processWatcherUpdate(ctx context.Context) {
	t0 := time.Now()
	loaded, err := loader.Filtered(w.paths, w.filter)
	w.onReload(ctx, loaded, time.Since(t0), err)
}

// getWatchPaths returns the directories to watch for the given roots. A root
// that is a file is watched through its parent directory.
func getWatchPaths(rootPaths []string) ([]string, error) {
	unique := map[string]struct{}{}

	for _, root := range rootPaths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}

		result, err := loader.Paths(root, true)
		if err != nil {
			return nil, err
		}

		for _, dir := range loader.Dirs(result) {
			if info.IsDir() && !within(root, dir) {
				continue
			}
			unique[dir] = struct{}{}
		}
		if info.IsDir() {
			unique[filepath.Clean(root)] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(unique)), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
