// Package audit records authorization decisions and retrieval calls in an
// append-only trail. Recording is fire-and-forget: it never blocks the
// request path and never fails the primary request.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"coachscope.org/internal/ids"
	"coachscope.org/internal/obs"
)

// Event names written to the trail.
const (
	EventResolveOK              = "identity.resolve"
	EventResolveDenied          = "identity.resolve_denied"
	EventSearch                 = "retrieval.search"
	EventScopeViolationPrevent  = "retrieval.scope_violation_prevented"
	EventCredentialIssued       = "identity.credential_issued"
	EventCredentialRevoked      = "identity.credential_revoked"
	EventDataItemIngested       = "ingest.data_item"
	EventCoachClientLinkChanged = "identity.link_changed"
)

// Record is one immutable audit entry. Entries are never updated or deleted.
type Record struct {
	ID          string
	OccurredAt  time.Time
	Event       string
	ActorKind   string
	ActorID     string
	RequestID   string
	Reason      string
	Query       string
	Filters     map[string]any
	ResultCount int
}

// Store appends immutable audit entries.
type Store interface {
	Append(ctx context.Context, rec *Record) error
}

// Sink receives a copy of every written record, in addition to the store.
// Used for live tails; delivery guarantees are the sink's concern.
type Sink interface {
	Publish(rec Record)
}

// Recorder buffers records and writes them from a background goroutine. A
// full queue drops the record (counted in metrics) rather than blocking the
// request. Every record is also emitted as a structured JSON log line so the
// trail survives a store outage.
type Recorder struct {
	store Store
	sink  Sink
	queue chan Record
	now   func() time.Time

	// mu orders Record sends against Close; a send must never hit a closed
	// queue.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Record, n)
		}
	}
}

// WithSink mirrors written records to a live sink.
func WithSink(s Sink) RecorderOption {
	return func(r *Recorder) {
		r.sink = s
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder and starts its writer goroutine. A nil
// store is allowed: records are then only logged.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan Record, 1024),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Record enqueues one entry. The context is only used to pick up the request
// ID; enqueueing itself never blocks and the write happens on a background
// context, so a cancelled request still gets its partial trail flushed.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if strings.TrimSpace(rec.Event) == "" {
		return
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = r.now().UTC()
	}
	if rec.RequestID == "" {
		rec.RequestID = RequestIDFromContext(ctx)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		// A request racing shutdown loses its record, same as a full queue.
		obs.ObserveAuditDrop()
		return
	}
	select {
	case r.queue <- rec:
	default:
		obs.ObserveAuditDrop()
	}
}

// Close stops the writer after draining queued records, bounded by ctx.
// Records arriving after Close are dropped, never a panic.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *Recorder) write(rec Record) {
	logEntry := map[string]any{
		"ts":           rec.OccurredAt.Format(time.RFC3339Nano),
		"type":         "audit",
		"event":        rec.Event,
		"actor_kind":   rec.ActorKind,
		"result_count": rec.ResultCount,
	}
	if rec.ActorID != "" {
		logEntry["actor_id"] = rec.ActorID
	}
	if rec.RequestID != "" {
		logEntry["request_id"] = rec.RequestID
	}
	if rec.Reason != "" {
		logEntry["reason"] = rec.Reason
	}
	if rec.Query != "" {
		logEntry["query"] = rec.Query
	}
	if len(rec.Filters) > 0 {
		logEntry["filters"] = rec.Filters
	}
	obs.LogJSON(logEntry)

	if r.sink != nil {
		r.sink.Publish(rec)
	}

	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Append(ctx, &rec); err != nil {
		obs.LogJSON(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit append failed",
			"event": rec.Event,
			"error": err.Error(),
		})
	}
}
