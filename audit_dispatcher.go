package goIdentity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// auditRecord is what an identity flow reports. The dispatcher turns it into an
// [AuditEvent], stamping the time, the client address and the user agent.
type auditRecord struct {
	eventType string
	success   bool
	userID    string
	provider  string
	err       error
	// metadata is only evaluated for records that are queued.
	metadata func() map[string]string
}

// auditDispatcher hands identity events to the sink from one goroutine. With DropIfFull
// a slow sink loses events instead of adding latency to logins.
type auditDispatcher struct {
	cfg  AuditConfig
	sink AuditSink
	now  func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan AuditEvent
	drained chan struct{}

	// abandoned is set when a shutdown deadline passes; queued events are then counted
	// as dropped instead of reaching the sink.
	abandoned atomic.Bool
	dropped   atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, now func() time.Time) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if now == nil {
		now = time.Now
	}

	d := &auditDispatcher{
		cfg:     cfg,
		sink:    sink,
		now:     now,
		queue:   make(chan AuditEvent, cfg.BufferSize),
		drained: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.drained)
	for event := range d.queue {
		if d.abandoned.Load() {
			d.dropped.Add(1)
			continue
		}
		d.sink.Emit(context.Background(), event)
	}
}

// Record queues rec. Records arriving after Close are ignored.
func (d *auditDispatcher) Record(ctx context.Context, rec auditRecord) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	event := d.event(ctx, rec)

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

func (d *auditDispatcher) event(ctx context.Context, rec auditRecord) AuditEvent {
	var metadata map[string]string
	if rec.metadata != nil {
		metadata = rec.metadata()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: d.now().UTC(),
		EventType: rec.eventType,
		UserID:    rec.userID,
		Provider:  rec.provider,
		IP:        clientIPFromContext(ctx),
		Success:   rec.success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}
	return event
}

// Close stops accepting records and waits for the queue to reach the sink. When ctx ends
// first, the rest of the queue is dropped and the context error is returned. Close may be
// called more than once.
func (d *auditDispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		d.abandoned.Store(true)
		return fmt.Errorf("audit drain: %w", ctx.Err())
	}
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
