package prowl

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prowl/pkg/models"
	"golang.org/x/time/rate"
)

// ListenerFunc receives fine-grained watcher events.
type ListenerFunc func(Event)

// SnapshotFunc receives whole job snapshots: every progress snapshot plus
// the terminal one.
type SnapshotFunc func(models.JobSnapshot)

// dispatcher holds consumer callbacks and invokes them as events arrive.
// Both addressing styles are supported: per-kind listener lists for raw
// per-document callbacks, and a snapshot listener list for consumers that
// want whole snapshots. Listeners run synchronously on the watcher's
// goroutine and in registration order; a panicking listener is logged and
// skipped, never allowed to stop delivery to others or abort the watcher.
type dispatcher struct {
	listeners         map[EventKind][]ListenerFunc
	snapshotListeners []SnapshotFunc
	progressThrottler *rate.Limiter
	logger            arbor.ILogger
}

func newDispatcher(logger arbor.ILogger) *dispatcher {
	return &dispatcher{
		listeners: make(map[EventKind][]ListenerFunc),
		logger:    logger,
	}
}

func (d *dispatcher) addListener(kind EventKind, fn ListenerFunc) {
	if fn == nil {
		return
	}
	d.listeners[kind] = append(d.listeners[kind], fn)
}

func (d *dispatcher) addSnapshotListener(fn SnapshotFunc) {
	if fn == nil {
		return
	}
	d.snapshotListeners = append(d.snapshotListeners, fn)
}

// setProgressThrottle rate-limits EventSnapshot delivery. Terminal and
// document events are never throttled.
func (d *dispatcher) setProgressThrottle(minInterval time.Duration) {
	if minInterval > 0 {
		d.progressThrottler = rate.NewLimiter(rate.Every(minInterval), 1)
	}
}

func (d *dispatcher) dispatch(event Event) {
	if event.Kind == EventSnapshot && d.progressThrottler != nil {
		if !d.progressThrottler.Allow() {
			if d.logger != nil {
				d.logger.Debug().
					Str("event_kind", string(event.Kind)).
					Msg("Progress snapshot throttled")
			}
			return
		}
	}

	for _, fn := range d.listeners[event.Kind] {
		d.invoke(event.Kind, func() { fn(event) })
	}

	// Snapshot-carrying events also go to the whole-snapshot listeners.
	if event.Snapshot != nil {
		for _, fn := range d.snapshotListeners {
			snapshot := *event.Snapshot
			d.invoke(event.Kind, func() { fn(snapshot) })
		}
	}
}

// invoke runs one listener, recovering panics at the dispatch boundary.
func (d *dispatcher) invoke(kind EventKind, call func()) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Error().
					Str("event_kind", string(kind)).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Listener panicked - continuing delivery")
			}
		}
	}()
	call()
}
