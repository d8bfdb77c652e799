package library

import (
	"context"
	"time"

	"acid-looper/debug"
)

// Watcher polls the patch directory on a fixed interval and publishes
// scan diffs. Playback timing lives elsewhere; this task only has to
// keep up with a once-per-second poll.
type Watcher struct {
	lib      *Library
	interval time.Duration
	events   chan Event
	onChange func()
}

// NewWatcher creates a watcher over lib. Interval defaults to one second.
func NewWatcher(lib *Library, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		lib:      lib,
		interval: interval,
		events:   make(chan Event, 16),
	}
}

// Events returns the channel of scan diffs (consumed by the UI).
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// SetOnChange registers a callback fired once per scan that found
// changes. The engine hangs its reload ping here.
func (w *Watcher) SetOnChange(fn func()) {
	w.onChange = fn
}

// Run starts the polling loop (blocking - run in goroutine).
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	events, err := w.lib.Scan()
	if err != nil {
		debug.Log("scan", "scan failed: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}

	for _, ev := range events {
		select {
		case w.events <- ev:
		default:
			// UI is behind; it re-reads the library on the next event anyway
		}
	}
	if w.onChange != nil {
		w.onChange()
	}
}
