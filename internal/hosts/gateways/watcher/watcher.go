// Package watcher signals when config.toml or the hosts file changes on disk so the next
// cycle can run early instead of waiting for the interval.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haukened/auto-hosts/internal/hosts/common/log"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher collapses bursts of file events into a single signal on C.
//
// Parent directories are watched rather than the files themselves; editors that save by
// rename would otherwise drop the watch.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	out      chan struct{}
	logger   log.Logger
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last event before signaling. Defaults to 500ms.
	Debounce time.Duration
	Logger   log.Logger
}

// New watches the given files. Paths are made absolute; their directories must exist.
func New(paths []string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fs:       fw,
		files:    make(map[string]struct{}, len(paths)),
		debounce: opts.Debounce,
		out:      make(chan struct{}, 1),
		logger:   opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = log.NewNoopLogger()
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to resolve path %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	return w, nil
}

// C receives one value per debounced burst. Its buffer holds one pending signal.
func (w *Watcher) C() <-chan struct{} {
	return w.out
}

// Run processes events until ctx is done, then releases the OS watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	w.logger.Info(map[string]any{"files": w.watchedFiles()}, "Starting file watcher")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug(map[string]any{"file": ev.Name, "op": ev.Op.String()}, "File change detected")
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(map[string]any{"error": err.Error()}, "File watcher error")

		case <-timer.C:
			w.signal()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	_, ok := w.files[filepath.Clean(ev.Name)]
	return ok
}

// signal never blocks; a pending signal already covers this burst.
func (w *Watcher) signal() {
	select {
	case w.out <- struct{}{}:
	default:
	}
}

func (w *Watcher) watchedFiles() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}
