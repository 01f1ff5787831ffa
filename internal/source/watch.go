package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before a reload.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and hands the result to onChange.
// A failed reload is reported with a nil slice so the caller can keep the
// current item set. Watch returns once the watcher is set up; it stops when
// ctx is done.
func Watch(ctx context.Context, path string, format Format, debounce time.Duration, onChange func([]Item, error)) error {
	resolved, err := expandPath(path)
	if err != nil {
		return err
	}
	if format == "" {
		format = FormatFromPath(resolved)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files with rename.
	if err := fsw.Add(filepath.Dir(resolved)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(resolved), err)
	}

	d := &debouncer{delay: debounce}
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		onChange(LoadFile(resolved, format))
	}

	go func() {
		defer func() { _ = fsw.Close() }()
		defer d.cancel()

		target := filepath.Base(resolved)
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					d.trigger(reload)
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				onChange(nil, fmt.Errorf("watch %s: %w", resolved, err))
			}
		}
	}()

	return nil
}

// debouncer runs only the last of a burst of triggers.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
