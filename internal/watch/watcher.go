// Package watch keeps the stored metric config in sync with a JSON file on
// disk so the config can be edited with any text editor.
package watch

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tally/internal/models"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// ConfigApplier validates and stores raw metric config JSON.
type ConfigApplier interface {
	SaveConfig(ctx context.Context, rawConfig string) (models.AppSettings, error)
}

// EventCallback is called after each apply attempt.
// kind is "applied" or "rejected"; err is set for rejections.
type EventCallback func(kind string, err error)

// Options tunes a watcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
	OnEvent  EventCallback
}

// Watch applies the file at path once and then again after every change,
// until ctx is cancelled. The parent directory is watched rather than the
// file, so editors that save by rename are handled. Invalid content is
// logged and leaves the stored config untouched.
func Watch(ctx context.Context, path string, applier ConfigApplier, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("file", abs))

	a := &applyState{path: abs, applier: applier, logger: logger, cb: opts.OnEvent}
	a.apply(ctx)

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(opts.Debounce)
			debounceCh = debounce.C
		} else {
			debounce.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			a.apply(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

type applyState struct {
	path    string
	applier ConfigApplier
	logger  *slog.Logger
	cb      EventCallback
	last    [sha256.Size]byte
}

// apply reads the file and stores it if its content changed since the last
// successful apply.
func (a *applyState) apply(ctx context.Context) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("watcher: read failed", slog.String("file", a.path), slog.String("error", err.Error()))
		}
		return
	}
	sum := sha256.Sum256(data)
	if sum == a.last {
		return
	}

	if _, err := a.applier.SaveConfig(ctx, string(data)); err != nil {
		a.logger.Warn("watcher: config rejected", slog.String("file", a.path), slog.String("error", err.Error()))
		if a.cb != nil {
			a.cb("rejected", err)
		}
		return
	}
	a.last = sum
	a.logger.Info("watcher: config applied", slog.String("file", a.path))
	if a.cb != nil {
		a.cb("applied", nil)
	}
}
