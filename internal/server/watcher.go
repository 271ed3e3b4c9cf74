package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yildizm/nginx-config-viewer/internal/logger"
)

// Watcher reports changes to a single file. It watches the file's
// directory as well as the file so that editors which write a temp file
// and rename it over the target are noticed.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce *debouncer
	log      *logger.Logger
}

// NewWatcher starts watching path. onChange runs once per burst of
// events, after delay has passed without a new one.
func NewWatcher(path string, delay time.Duration, onChange func(), log *logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Discard()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	// The file may not exist yet; the directory watch catches its creation.
	if err := fsw.Add(absPath); err != nil {
		log.DebugWithFields("Not watching file directly", []logger.Field{
			logger.Path(absPath),
			logger.Error(err),
		})
	}

	return &Watcher{
		path:     absPath,
		fsw:      fsw,
		debounce: newDebouncer(delay, onChange),
		log:      log,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run processes file system events until ctx is done or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.debounce.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !IsEventFor(event, w.path) {
				continue
			}
			w.log.DebugWithFields("File event", []logger.Field{
				logger.Path(event.Name),
				logger.F("op", event.Op.String()),
			})
			w.debounce.trigger()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WarnWithFields("Watch error", []logger.Field{logger.Error(err)})
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// IsEventFor reports whether ev concerns target. Any event on a file with
// the same base name counts, which covers rename-over-target saves.
func IsEventFor(ev fsnotify.Event, target string) bool {
	if ev.Name == target && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)) {
		return true
	}
	return filepath.Base(ev.Name) == filepath.Base(target)
}

// debouncer runs fn once delay has passed since the last trigger.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
