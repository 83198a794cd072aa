package prowl

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prowl/pkg/models"
	"golang.org/x/time/rate"
)

// statusFetcher is the session's view of the one-shot status endpoint.
type statusFetcher interface {
	Fetch(ctx context.Context, jobID string, kind models.WatchKind) (*models.JobSnapshot, error)
}

// streamConn is a persistent message stream. ReadMessage blocks until a
// frame arrives, the deadline passes, or the stream fails.
type streamConn interface {
	ReadMessage(deadline time.Time) ([]byte, error)
	Close() error
}

// streamDialer opens the streaming connection for a job.
type streamDialer func(ctx context.Context, jobID string, kind models.WatchKind) (streamConn, error)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateStreaming
	statePolling
	stateTerminal
)

// watchSession tracks one job id from start to terminal state. All mutable
// state is written only by the execution context driving next; listeners
// only ever see fully-formed snapshot values.
type watchSession struct {
	id           string
	jobID        string
	kind         models.WatchKind
	fetcher      statusFetcher
	dial         streamDialer
	logger       arbor.ILogger
	pollInterval time.Duration
	deadline     time.Time // zero = no deadline

	state       sessionState
	conn        streamConn
	pollLimiter *rate.Limiter

	documents   []models.Document
	lastStatus  models.JobStatus
	completed   int
	total       int
	creditsUsed int
	expiresAt   *time.Time
	nextToken   string

	doneSent bool
	failSent bool

	pending []Event
}

func newWatchSession(id, jobID string, kind models.WatchKind, fetcher statusFetcher, dial streamDialer, pollInterval time.Duration, logger arbor.ILogger) *watchSession {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &watchSession{
		id:           id,
		jobID:        jobID,
		kind:         kind,
		fetcher:      fetcher,
		dial:         dial,
		logger:       logger,
		pollInterval: pollInterval,
		state:        stateConnecting,
		lastStatus:   models.JobStatusQueued,
		// Burst of one so the first poll after entering fallback fires
		// immediately and later polls are spaced by the interval.
		pollLimiter: rate.NewLimiter(rate.Every(pollInterval), 1),
	}
}

// setDeadline fixes the overall watch deadline, measured from start.
func (s *watchSession) setDeadline(timeout time.Duration) {
	if timeout > 0 {
		s.deadline = time.Now().Add(timeout)
	}
}

func (s *watchSession) isTerminal() bool {
	return s.state == stateTerminal
}

func (s *watchSession) expired() bool {
	return !s.deadline.IsZero() && !time.Now().Before(s.deadline)
}

// next returns the next consumer event, blocking on stream reads or
// fallback fetches as needed. It returns false once the session is over:
// after the terminal event has been handed out, or when the context is
// cancelled or the deadline elapses without a terminal status.
func (s *watchSession) next(ctx context.Context) (Event, bool) {
	for {
		if len(s.pending) > 0 {
			event := s.pending[0]
			s.pending = s.pending[1:]
			return event, true
		}

		if s.state == stateTerminal {
			return Event{}, false
		}

		if ctx.Err() != nil || s.expired() {
			s.shutdown()
			return Event{}, false
		}

		switch s.state {
		case stateConnecting:
			s.connect(ctx)
		case stateStreaming:
			s.readStream(ctx)
		case statePolling:
			s.poll(ctx)
		}
	}
}

// shutdown abandons the session without a terminal snapshot (stop or
// deadline). The stream is closed; no further events will be produced.
func (s *watchSession) shutdown() {
	s.closeConn()
	s.state = stateTerminal
	s.pending = nil
}

func (s *watchSession) closeConn() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *watchSession) connect(ctx context.Context) {
	conn, err := s.dial(ctx, s.jobID, s.kind)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn().
				Err(err).
				Str("job_id", s.jobID).
				Str("session_id", s.id).
				Msg("Stream connection failed - falling back to polling")
		}
		s.state = statePolling
		return
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("job_id", s.jobID).
			Str("session_id", s.id).
			Msg("Stream connected")
	}
	s.conn = conn
	s.state = stateStreaming
}

// readStream waits for one frame. The wait is bounded by the lesser of the
// poll interval and the remaining time to deadline; an elapsed window with
// no frame is the quiet period, answered with a one-shot status fetch while
// the stream stays open.
func (s *watchSession) readStream(ctx context.Context) {
	window := s.pollInterval
	if !s.deadline.IsZero() {
		if remaining := time.Until(s.deadline); remaining < window {
			window = remaining
		}
	}
	if window <= 0 {
		return // deadline check in next() ends the session
	}

	data, err := s.conn.ReadMessage(time.Now().Add(window))
	if err != nil {
		if isTimeout(err) {
			s.quietFetch(ctx)
			return
		}

		if s.logger != nil {
			s.logger.Warn().
				Err(err).
				Str("job_id", s.jobID).
				Msg("Stream closed - polling until terminal status")
		}
		s.closeConn()
		s.state = statePolling
		return
	}

	message, ok := decodeStreamMessage(data)
	if !ok {
		return // malformed frame, dropped
	}
	s.handleMessage(message)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// quietFetch makes forward progress visible when the push channel is
// silent. Fetch errors here are ignored; the stream is still open.
func (s *watchSession) quietFetch(ctx context.Context) {
	snapshot, err := s.fetcher.Fetch(ctx, s.jobID, s.kind)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug().
				Err(err).
				Str("job_id", s.jobID).
				Msg("Quiet-period status fetch failed")
		}
		return
	}
	s.ingestSnapshot(snapshot)
}

// poll performs one paced status fetch. Fetch failures are retried on the
// next cycle until the deadline; the caller observes no error, only a gap
// in delivery.
func (s *watchSession) poll(ctx context.Context) {
	waitCtx := ctx
	if !s.deadline.IsZero() {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithDeadline(ctx, s.deadline)
		defer cancel()
	}
	if err := s.pollLimiter.Wait(waitCtx); err != nil {
		return // cancelled or deadline, next() ends the session
	}

	snapshot, err := s.fetcher.Fetch(ctx, s.jobID, s.kind)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn().
				Err(err).
				Str("job_id", s.jobID).
				Msg("Status poll failed")
		}
		return
	}
	s.ingestSnapshot(snapshot)
}

func (s *watchSession) handleMessage(message streamMessage) {
	switch message.kind {
	case msgError:
		s.emitTerminal(models.JobStatusFailed, message.errText)

	case msgCatchup:
		// Catch-up replays state accumulated before the stream opened:
		// documents and counters only, never a terminal transition.
		resp, ok := decodeStatusPayload(message.data)
		if !ok {
			return
		}
		snapshot := snapshotFromStatusResponse(resp)
		s.absorbCounters(snapshot)
		s.syncDocuments(snapshot.Documents)
		if snapshot.Status != "" {
			s.lastStatus = snapshot.Status
		}

	case msgDocument:
		record, ok := decodeDocumentPayload(message.data)
		if !ok {
			return
		}
		s.appendDocument(normalizeDocument(record))

	case msgDone:
		if resp, ok := decodeStatusPayload(message.data); ok {
			snapshot := snapshotFromStatusResponse(resp)
			s.absorbCounters(snapshot)
			s.syncDocuments(snapshot.Documents)
		}
		s.emitTerminal(models.JobStatusCompleted, "")

	case msgGenericStatus:
		resp, ok := decodeStatusPayload(message.data)
		if !ok {
			return
		}
		s.ingestSnapshot(snapshotFromStatusResponse(resp))
	}
}

// ingestSnapshot merges a fetched or streamed snapshot into the session:
// new documents first (one event each), then either a progress snapshot
// event or the terminal transition.
func (s *watchSession) ingestSnapshot(snapshot *models.JobSnapshot) {
	s.absorbCounters(snapshot)
	s.syncDocuments(snapshot.Documents)

	if snapshot.Status.IsTerminal() {
		s.emitTerminal(snapshot.Status, "")
		return
	}

	if snapshot.Status != "" {
		s.lastStatus = snapshot.Status
	}
	current := s.snapshot()
	s.pending = append(s.pending, Event{Kind: EventSnapshot, Snapshot: &current})
}

// absorbCounters folds progress counters into the session. Completed is
// clamped so it never decreases within a session.
func (s *watchSession) absorbCounters(snapshot *models.JobSnapshot) {
	if snapshot.Completed > s.completed {
		s.completed = snapshot.Completed
	}
	if snapshot.Total > 0 {
		s.total = snapshot.Total
	}
	if snapshot.CreditsUsed > 0 {
		s.creditsUsed = snapshot.CreditsUsed
	}
	if snapshot.ExpiresAt != nil {
		s.expiresAt = snapshot.ExpiresAt
	}
	s.nextToken = snapshot.Next
}

// appendDocument adds one newly streamed document to the buffer and queues
// its document event.
func (s *watchSession) appendDocument(doc models.Document) {
	s.documents = append(s.documents, doc)
	queued := doc
	s.pending = append(s.pending, Event{Kind: EventDocument, Document: &queued})
}

// syncDocuments reconciles a cumulative document list (status fetches,
// catch-up and done payloads carry every document so far) against the
// buffer: only the tail beyond what is already held is appended, one event
// per new entry. The buffer never shrinks.
func (s *watchSession) syncDocuments(docs []models.Document) {
	if len(docs) <= len(s.documents) {
		return
	}
	for _, doc := range docs[len(s.documents):] {
		s.appendDocument(doc)
	}
}

// emitTerminal fires the latch-guarded terminal event and moves the
// session to its terminal state. Document events already queued are
// delivered first; nothing is delivered afterwards.
func (s *watchSession) emitTerminal(terminal models.JobStatus, errText string) {
	s.lastStatus = terminal
	snapshot := s.snapshot()

	switch terminal {
	case models.JobStatusCompleted:
		if !s.doneSent {
			s.doneSent = true
			s.pending = append(s.pending, Event{Kind: EventDone, Snapshot: &snapshot})
		}
	case models.JobStatusFailed, models.JobStatusCancelled:
		if !s.failSent {
			s.failSent = true
			if errText == "" && terminal == models.JobStatusCancelled {
				errText = "job cancelled"
			}
			s.pending = append(s.pending, Event{Kind: EventError, Snapshot: &snapshot, Err: errText})
		}
	}

	if s.logger != nil {
		s.logger.Info().
			Str("job_id", s.jobID).
			Str("session_id", s.id).
			Str("status", string(terminal)).
			Int("documents", len(s.documents)).
			Msg("Watch session reached terminal status")
	}

	s.closeConn()
	s.state = stateTerminal
}

// snapshot builds an immutable cumulative snapshot of the session.
func (s *watchSession) snapshot() models.JobSnapshot {
	docs := make([]models.Document, len(s.documents))
	copy(docs, s.documents)

	completed := s.completed
	if completed < len(docs) {
		completed = len(docs)
	}

	return models.JobSnapshot{
		Status:      s.lastStatus,
		Completed:   completed,
		Total:       s.total,
		CreditsUsed: s.creditsUsed,
		ExpiresAt:   s.expiresAt,
		Next:        s.nextToken,
		Documents:   docs,
	}
}
