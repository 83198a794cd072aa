package prowl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/prowl/pkg/models"
)

func newTestIterator(t *testing.T, fetcher statusFetcher, dial streamDialer, timeout time.Duration) *SnapshotIterator {
	t.Helper()
	return &SnapshotIterator{
		session: testSession(t, fetcher, dial),
		timeout: timeout,
	}
}

func collectSnapshots(t *testing.T, it *SnapshotIterator) []models.JobSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var snapshots []models.JobSnapshot
	for {
		snapshot, ok := it.Next(ctx)
		if !ok {
			require.NoError(t, ctx.Err(), "iterator did not end before the test deadline")
			return snapshots
		}
		snapshots = append(snapshots, snapshot)
	}
}

func TestIterator_YieldsProgressThenTerminal(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []*models.JobSnapshot{
		{Status: models.JobStatusScraping, Completed: 1, Total: 5},
		{Status: models.JobStatusScraping, Completed: 3, Total: 5},
		{Status: models.JobStatusCompleted, Completed: 5, Total: 5},
	}}
	it := newTestIterator(t, fetcher, dialFailure(), 0)

	snapshots := collectSnapshots(t, it)

	require.Len(t, snapshots, 3)
	assert.Equal(t, models.JobStatusScraping, snapshots[0].Status)
	assert.Equal(t, models.JobStatusCompleted, snapshots[2].Status)
	assert.Equal(t, 5, snapshots[2].Completed)
	assert.NoError(t, it.Err())
}

func TestIterator_FoldsDocumentsIntoSnapshots(t *testing.T) {
	conn := newScriptedConn(
		`{"type":"document","data":{"markdown":"# a"}}`,
		`{"type":"done","data":{"status":"completed","completed":2,"total":2,"data":[{"markdown":"# a"},{"markdown":"# b"}]}}`,
	)
	it := newTestIterator(t, &fakeFetcher{}, dialTo(conn), 0)

	snapshots := collectSnapshots(t, it)

	require.Len(t, snapshots, 1, "document events are folded, only snapshots surface")
	assert.Equal(t, models.JobStatusCompleted, snapshots[0].Status)
	assert.Len(t, snapshots[0].Documents, 2)
}

func TestIterator_FailedJobYieldsFailedSnapshotLast(t *testing.T) {
	conn := newScriptedConn(`{"type":"error","error":"render timeout"}`)
	it := newTestIterator(t, &fakeFetcher{}, dialTo(conn), 0)

	snapshots := collectSnapshots(t, it)

	require.Len(t, snapshots, 1)
	assert.Equal(t, models.JobStatusFailed, snapshots[0].Status)
}

func TestIterator_DeadlineEndsIteration(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []*models.JobSnapshot{
		{Status: models.JobStatusScraping, Completed: 1, Total: 10},
	}}
	it := newTestIterator(t, fetcher, dialFailure(), 200*time.Millisecond)

	snapshots := collectSnapshots(t, it)

	for _, snapshot := range snapshots {
		assert.False(t, snapshot.Status.IsTerminal())
	}
	assert.ErrorIs(t, it.Err(), context.DeadlineExceeded)
}

func TestIterator_CloseIsIdempotent(t *testing.T) {
	conn := newScriptedConn()
	it := newTestIterator(t, &fakeFetcher{}, dialTo(conn), 0)

	it.Close()
	it.Close()

	_, ok := it.Next(context.Background())
	assert.False(t, ok)
}

func TestIterator_ContextCancelStopsIteration(t *testing.T) {
	conn := newScriptedConn()
	it := newTestIterator(t, &fakeFetcher{}, dialTo(conn), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := it.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, it.Err(), context.Canceled)
}
