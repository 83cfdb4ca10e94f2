package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const saveTimeout = 5 * time.Second

type AuditStats struct {
	Queued    int64 `json:"queued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// AsyncAuditLogger persists audit events from a buffered queue on a single
// worker. Events that cannot be stored after MaxRetries attempts are written
// to slog instead.
type AsyncAuditLogger struct {
	store      AuditStore
	queue      chan AuditEvent
	done       chan struct{}
	maxRetries int
	backoff    time.Duration

	queued    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewAsyncAuditLogger(store AuditStore, bufferSize, maxRetries int, backoff time.Duration) *AsyncAuditLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &AsyncAuditLogger{
		store:      store,
		queue:      make(chan AuditEvent, bufferSize),
		done:       make(chan struct{}),
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

func (l *AsyncAuditLogger) Start() {
	l.startOnce.Do(func() {
		l.wg.Add(1)
		go l.run()
	})
}

// Log enqueues an event without blocking. A full queue falls back to slog.
func (l *AsyncAuditLogger) Log(eventType, transactionID string, payload map[string]any) {
	event := AuditEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		TransactionID: transactionID,
		CreatedAt:     time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Error("audit payload not serializable", "event_type", eventType, "transaction_id", transactionID, "error", err)
		} else {
			event.Payload = raw
		}
	}

	select {
	case l.queue <- event:
		l.queued.Add(1)
	default:
		l.dropped.Add(1)
		l.fallback(event, "queue full")
	}
}

func (l *AsyncAuditLogger) Stats() AuditStats {
	return AuditStats{
		Queued:    l.queued.Load(),
		Processed: l.processed.Load(),
		Failed:    l.failed.Load(),
		Dropped:   l.dropped.Load(),
		Pending:   len(l.queue),
	}
}

// Stop drains the queue and waits for the worker to exit.
func (l *AsyncAuditLogger) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
}

func (l *AsyncAuditLogger) run() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.queue:
			l.persist(event)
		case <-l.done:
			for {
				select {
				case event := <-l.queue:
					l.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (l *AsyncAuditLogger) persist(event AuditEvent) {
	var err error
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err = l.store.SaveAuditEvent(ctx, &event)
		cancel()
		if err == nil {
			l.processed.Add(1)
			return
		}
		if attempt < l.maxRetries-1 {
			time.Sleep(l.backoff * time.Duration(attempt+1))
		}
	}
	l.failed.Add(1)
	l.fallback(event, err.Error())
}

func (l *AsyncAuditLogger) fallback(event AuditEvent, reason string) {
	slog.Warn("audit event not persisted",
		"reason", reason,
		"event_type", event.EventType,
		"transaction_id", event.TransactionID,
		"payload", string(event.Payload),
	)
}
