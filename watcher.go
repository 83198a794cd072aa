package prowl

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prowl/pkg/models"
)

// stopJoinTimeout bounds how long Stop waits for the worker goroutine.
// Stream reads and limiter waits are themselves bounded by the poll
// interval, so the worker observes cancellation within one window.
const stopJoinTimeout = 10 * time.Second

// Watcher tracks one job in the background and delivers events to
// registered listeners. Listeners run synchronously on the watcher's
// worker goroutine, so they must not block indefinitely. Register all
// listeners before calling Start.
type Watcher struct {
	session    *watchSession
	dispatcher *dispatcher
	logger     arbor.ILogger
	timeout    time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// AddListener registers a callback for one event kind. Listeners for the
// same kind are invoked in registration order.
func (w *Watcher) AddListener(kind EventKind, fn ListenerFunc) {
	w.dispatcher.addListener(kind, fn)
}

// OnDocument registers a per-document callback.
func (w *Watcher) OnDocument(fn func(models.Document)) {
	w.dispatcher.addListener(EventDocument, func(event Event) {
		if event.Document != nil {
			fn(*event.Document)
		}
	})
}

// OnSnapshot registers a whole-snapshot callback. It receives every
// progress snapshot and, last, the terminal snapshot.
func (w *Watcher) OnSnapshot(fn SnapshotFunc) {
	w.dispatcher.addSnapshotListener(fn)
}

// Start spawns the background worker. Calling Start again while running is
// a no-op. The overall timeout, when configured, is measured from here.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running || w.stopped {
		return
	}
	w.running = true

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.session.setDeadline(w.timeout)

	if w.logger != nil {
		w.logger.Debug().
			Str("job_id", w.session.jobID).
			Str("session_id", w.session.id).
			Str("kind", string(w.session.kind)).
			Msg("Watcher started")
	}

	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	for {
		event, ok := w.session.next(ctx)
		if !ok {
			return
		}
		w.dispatcher.dispatch(event)
	}
}

// Stop signals cancellation and waits for the worker with a bounded join.
// Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		if w.logger != nil {
			w.logger.Warn().
				Str("job_id", w.session.jobID).
				Msg("Watcher worker did not stop within join timeout")
		}
	}
}

// Done returns a channel closed when the worker exits: terminal snapshot
// delivered, Stop called, or deadline elapsed.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}
