package prowl

import (
	"encoding/json"

	"github.com/ternarybob/prowl/internal/normalize"
	"github.com/ternarybob/prowl/internal/status"
	"github.com/ternarybob/prowl/pkg/models"
)

// EventKind identifies the consumer-facing event types a watcher emits.
type EventKind string

const (
	// EventDocument fires once per document as it is retrieved.
	EventDocument EventKind = "document"
	// EventSnapshot fires for non-terminal progress snapshots.
	EventSnapshot EventKind = "snapshot"
	// EventDone fires at most once, when the job completes.
	EventDone EventKind = "done"
	// EventError fires at most once, when the job fails or is cancelled.
	EventError EventKind = "error"
)

// Event is delivered to registered listeners. Exactly one of Document or
// Snapshot is set, depending on Kind; Err carries the remote failure
// message for EventError.
type Event struct {
	Kind     EventKind
	Document *models.Document
	Snapshot *models.JobSnapshot
	Err      string
}

// messageKind is the closed set of inbound stream message types. Frames are
// decoded once at the boundary and matched on this tag everywhere else.
type messageKind int

const (
	msgUnknown messageKind = iota
	msgDone
	msgError
	msgCatchup
	msgDocument
	msgGenericStatus
)

// streamMessage is one decoded inbound frame.
type streamMessage struct {
	kind    messageKind
	errText string
	data    json.RawMessage
}

// decodeStreamMessage classifies a raw frame. The second result is false
// for frames that fail to parse as JSON objects; those are dropped
// silently and the stream continues.
func decodeStreamMessage(raw []byte) (streamMessage, bool) {
	var envelope struct {
		Type  string          `json:"type"`
		Error string          `json:"error"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return streamMessage{}, false
	}

	switch envelope.Type {
	case "done":
		return streamMessage{kind: msgDone, data: envelope.Data}, true
	case "error":
		return streamMessage{kind: msgError, errText: envelope.Error, data: envelope.Data}, true
	case "catchup":
		return streamMessage{kind: msgCatchup, data: envelope.Data}, true
	case "document":
		return streamMessage{kind: msgDocument, data: envelope.Data}, true
	}

	// Untyped messages that carry a status field are generic progress or
	// terminal snapshots; anything else is ignored.
	if hasStatusField(envelope.Data) {
		return streamMessage{kind: msgGenericStatus, data: envelope.Data}, true
	}
	if hasStatusField(raw) {
		return streamMessage{kind: msgGenericStatus, data: raw}, true
	}
	return streamMessage{kind: msgUnknown}, true
}

func hasStatusField(data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Status != ""
}

// decodeStatusPayload parses a status-shaped message payload. Done, catchup
// and generic status messages all share this shape.
func decodeStatusPayload(data json.RawMessage) (*models.StatusResponse, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var resp models.StatusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// decodeDocumentPayload parses a single raw document record.
func decodeDocumentPayload(data json.RawMessage) (map[string]any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false
	}
	return record, true
}

// Shared with both watcher styles; the normalizer and snapshot building
// are plain functions, not methods on either watcher.
func normalizeDocument(raw map[string]any) models.Document {
	return normalize.Document(raw)
}

func snapshotFromStatusResponse(resp *models.StatusResponse) *models.JobSnapshot {
	return status.SnapshotFromResponse(resp)
}
