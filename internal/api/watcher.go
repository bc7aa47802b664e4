package api

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/xrefgraph/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last relevant
// change before reloading. A build rewrites several files in quick
// succession; they are folded into one reload.
const DefaultDebounce = 250 * time.Millisecond

// watcher reloads artifacts when files in the served directory change.
type watcher struct {
	fs       *fsnotify.Watcher
	relevant func(name string) bool
	onChange func()
	debounce time.Duration
}

func newWatcher(dir string, relevant func(string) bool, onChange func()) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Atomic writes rename into place, so the directory is watched rather
	// than the files themselves.
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &watcher{fs: fw, relevant: relevant, onChange: onChange, debounce: DefaultDebounce}, nil
}

// run delivers debounced change notifications until ctx is done.
func (w *watcher) run(ctx context.Context) {
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !w.relevant(ev.Name) {
				continue
			}
			logging.Debug("artifact changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.onChange()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn("file watcher error", "error", err)
		}
	}
}
