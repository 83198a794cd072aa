// Package status implements the one-shot job status fetch used both as the
// polling fallback inside a watch session and as the initial sync before
// streaming begins.
package status

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prowl/internal/normalize"
	"github.com/ternarybob/prowl/internal/transport"
	"github.com/ternarybob/prowl/pkg/models"
)

// Fetcher asks the service for the current status of a job. One Fetch call
// is one network round trip; for paginated results it returns only the
// first page and surfaces the pagination token on the snapshot.
type Fetcher struct {
	transport *transport.Client
	logger    arbor.ILogger
}

// NewFetcher creates a status fetcher on top of the shared transport.
func NewFetcher(t *transport.Client, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		transport: t,
		logger:    logger,
	}
}

// Fetch retrieves the current job snapshot.
func (f *Fetcher) Fetch(ctx context.Context, jobID string, kind models.WatchKind) (*models.JobSnapshot, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	prefix, err := kind.PathPrefix()
	if err != nil {
		return nil, err
	}

	var resp models.StatusResponse
	path := fmt.Sprintf("/v1/%s/%s", prefix, jobID)
	if err := f.transport.GetJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		message := resp.Error
		if message == "" {
			message = "status check reported failure"
		}
		return nil, &transport.RemoteError{
			StatusCode: 200,
			Endpoint:   path,
			Message:    message,
		}
	}

	snapshot := SnapshotFromResponse(&resp)

	if f.logger != nil {
		f.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(snapshot.Status)).
			Int("completed", snapshot.Completed).
			Int("total", snapshot.Total).
			Msg("Fetched job status")
	}

	return snapshot, nil
}

// SnapshotFromResponse converts a raw status response into a snapshot,
// normalizing every document record it carries.
func SnapshotFromResponse(resp *models.StatusResponse) *models.JobSnapshot {
	snapshot := &models.JobSnapshot{
		Status:      models.JobStatus(resp.Status),
		Completed:   resp.Completed,
		Total:       resp.Total,
		CreditsUsed: resp.CreditsUsed,
		ExpiresAt:   resp.ExpiresAtTime(),
		Next:        resp.Next,
	}

	if len(resp.Data) > 0 {
		snapshot.Documents = make([]models.Document, 0, len(resp.Data))
		for _, raw := range resp.Data {
			snapshot.Documents = append(snapshot.Documents, normalize.Document(raw))
		}
	}

	return snapshot
}
