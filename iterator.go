package prowl

import (
	"context"
	"time"

	"github.com/ternarybob/prowl/pkg/models"
)

// SnapshotIterator is the pull-style alternative to Watcher: the consumer's
// own goroutine drives it, no background worker is created, and every
// network wait happens inside Next. Only one goroutine may drive an
// iterator at a time.
//
// Iteration yields cumulative job snapshots. The last snapshot yielded is
// terminal; if the deadline elapses or the context is cancelled first,
// iteration simply ends without one and the caller should re-check job
// status directly.
type SnapshotIterator struct {
	session  *watchSession
	timeout  time.Duration
	started  bool
	closed   bool
	terminal bool
	err      error
}

// Next blocks until the next snapshot is available. It returns false when
// the session is over. Work begins lazily on the first call.
func (it *SnapshotIterator) Next(ctx context.Context) (models.JobSnapshot, bool) {
	if it.closed {
		return models.JobSnapshot{}, false
	}
	if !it.started {
		it.started = true
		it.session.setDeadline(it.timeout)
	}

	for {
		event, ok := it.session.next(ctx)
		if !ok {
			it.closed = true
			if !it.terminal {
				if ctxErr := ctx.Err(); ctxErr != nil {
					it.err = ctxErr
				} else {
					it.err = context.DeadlineExceeded
				}
			}
			return models.JobSnapshot{}, false
		}

		// Document events are folded into the cumulative snapshots;
		// the iterator surface is snapshots only.
		if event.Snapshot != nil {
			if event.Snapshot.Status.IsTerminal() {
				it.terminal = true
			}
			return *event.Snapshot, true
		}
	}
}

// Err reports why iteration ended early: the context error, or
// context.DeadlineExceeded when the watch deadline elapsed. It is nil
// after a terminal snapshot or an explicit Close.
func (it *SnapshotIterator) Err() error {
	return it.err
}

// Close abandons the session. Safe to call multiple times; Next returns
// false afterwards.
func (it *SnapshotIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.session.shutdown()
}
