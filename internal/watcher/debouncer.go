package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long the debouncer waits for a quiet period
// before emitting a batch. Editors save in bursts.
const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer coalesces rapid file events so one editing burst triggers one
// reindex. Events for the same path within the window merge:
//
//	CREATE + MODIFY = CREATE
//	CREATE + DELETE = nothing
//	MODIFY + DELETE = DELETE
//	DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window time.Duration
	out    chan []FileEvent

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window:  window,
		out:     make(chan []FileEvent, 10),
		pending: make(map[string]*pendingEvent),
	}
}

// Batches delivers coalesced event batches.
func (d *Debouncer) Batches() <-chan []FileEvent {
	return d.out
}

// Add folds an event into the pending batch and (re)arms the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		merged := coalesce(existing, event)
		if merged == nil {
			delete(d.pending, event.Path)
		} else {
			existing.event = *merged
		}
	} else {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges a new event into the pending one; nil means the pair
// cancelled out.
func coalesce(existing *pendingEvent, next FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return &next
		}
	}
	return &next
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	events := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)
	d.mu.Unlock()

	select {
	case d.out <- events:
	default:
		// Consumer is behind; drop rather than block the event loop. The
		// next incremental reindex re-diffs the whole vault anyway.
	}
}

// Stop discards pending events and stops future emissions.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
	close(d.out)
}
