package main

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses bursts of writes (the collector appends one line per
// launch) into a single reload after the file settles.
const watchDebounce = 500 * time.Millisecond

// resultsWatcher watches the directory holding the results file and fires a
// debounced callback when that file is written or recreated. The directory is
// watched rather than the file itself so rename-then-create writers stay visible.
type resultsWatcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}

	mu       sync.Mutex
	debounce *time.Timer
	stopped  bool
}

func newResultsWatcher(path string, onChange func()) (*resultsWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &resultsWatcher{fsw: fsw, done: make(chan struct{})}
	go w.loop(filepath.Base(path), onChange)
	return w, nil
}

func (w *resultsWatcher) loop(base string, onChange func()) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.schedule(onChange)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			fmt.Printf("[viewer] watch error: %v\n", err)
		case <-w.done:
			return
		}
	}
}

// schedule resets the debounce timer; only the last write of a burst fires.
func (w *resultsWatcher) schedule(onChange func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(watchDebounce, onChange)
}

func (w *resultsWatcher) stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	w.fsw.Close()
}
