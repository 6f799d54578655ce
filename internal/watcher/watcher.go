package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// Config holds configuration for a tree watcher.
type Config struct {
	// Root is the directory tree to watch.
	Root string

	// DebounceInterval is how long the tree must be quiet before changed
	// files are inspected.
	DebounceInterval time.Duration

	// Exclude skips matching paths, both directories and files.
	Exclude func(path string) bool

	// OnThreat is called for every changed file that is flagged.
	OnThreat func(f scanner.Finding)

	// OnError is called when watching fails for a path.
	OnError func(err error)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(root string) Config {
	return Config{
		Root:             root,
		DebounceInterval: 500 * time.Millisecond,
		OnError: func(err error) {
			log.Warn().Err(err).Msg("watcher error")
		},
	}
}

// forgetter is implemented by inspectors that cache results per path.
type forgetter interface {
	Forget(path string)
}

// Watcher re-inspects files as they are created or modified under a tree.
type Watcher struct {
	config    Config
	inspector scanner.FileInspector
	watcher   *fsnotify.Watcher
	pending   map[string]struct{}
	inspected int
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// New creates a watcher that inspects files with inspector.
func New(inspector scanner.FileInspector, config Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	return &Watcher{
		config:    config,
		inspector: inspector,
		watcher:   fsWatcher,
		pending:   make(map[string]struct{}),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start adds every directory under the root and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if running {
		return nil
	}

	info, err := os.Stat(w.config.Root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", w.config.Root)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", w.config.Root)
	}

	if err := w.addTree(w.config.Root); err != nil {
		return err
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and releases its resources. It is safe to call
// more than once, and on a watcher that never started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// Done is closed when the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Inspected returns how many files have been inspected so far.
func (w *Watcher) Inspected() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inspected
}

func (w *Watcher) excluded(path string) bool {
	return w.config.Exclude != nil && w.config.Exclude(path)
}

// addTree watches dir and its subdirectories. Files already present are
// queued so that a directory moved into the tree is inspected.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.reportError(errors.Wrapf(err, "failed to walk %s", path))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != dir && w.excluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return errors.Wrapf(err, "failed to watch %s", path)
			}
			return nil
		}
		if path != dir && d.Type().IsRegular() && dir != w.config.Root {
			w.queue(path)
		}
		return nil
	})
}

func (w *Watcher) queue(path string) {
	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
}

func (w *Watcher) reportError(err error) {
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
}

// watchLoop is the main event loop for the watcher.
func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	resetDebounce := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.NewTimer(w.config.DebounceInterval)
		debounceCh = debounceTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.excluded(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if f, ok := w.inspector.(forgetter); ok {
					f.Forget(event.Name)
				}
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					if err := w.addTree(event.Name); err != nil {
						w.reportError(err)
					}
					resetDebounce()
				}
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}

			w.queue(event.Name)
			resetDebounce()

		case <-debounceCh:
			debounceCh = nil
			w.flush()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// flush inspects every queued path in name order.
func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	for _, path := range paths {
		f := w.inspector.Inspect(path)

		w.mu.Lock()
		w.inspected++
		w.mu.Unlock()

		if !f.IsThreat() {
			continue
		}
		log.Info().Str("path", f.Path).Strs("reasons", f.Reasons).Msg("threat detected")
		if w.config.OnThreat != nil {
			w.config.OnThreat(f)
		}
	}
}
