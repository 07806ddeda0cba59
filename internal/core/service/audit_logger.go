package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

const auditWriteTimeout = 5 * time.Second

// AuditLogger records entity changes best-effort: entries are queued on a
// buffered channel and written by a background worker, so a slow or failing
// audit write never blocks or fails the operation that produced it. A full
// queue drops the entry with a warning.
type AuditLogger struct {
	store port.Store
	log   *logrus.Entry

	queue     chan domain.AuditLog
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewAuditLogger(store port.Store, log *logrus.Entry, queueSize int) *AuditLogger {
	a := &AuditLogger{
		store: store,
		log:   log,
		queue: make(chan domain.AuditLog, queueSize),
	}

	a.wg.Add(1)
	go a.worker()

	return a
}

func (a *AuditLogger) worker() {
	defer a.wg.Done()

	for entry := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		if err := a.store.InsertAuditLog(ctx, entry); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"entity_type": entry.EntityType,
				"entity_id":   entry.EntityID,
			}).Warn("audit write failed")
		}
		cancel()
	}
}

// Record queues one audit entry. Old and new values are marshalled here so
// the caller's structs are captured before they go out of scope.
func (a *AuditLogger) Record(action domain.AuditAction, entityType, entityID string, oldValue, newValue any) {
	entry := domain.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  marshalValue(oldValue),
		NewValues:  marshalValue(newValue),
	}

	select {
	case a.queue <- entry:
	default:
		a.log.WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
		}).Warn("audit queue full, entry dropped")
	}
}

// Close stops accepting entries and waits for the worker to drain the queue.
// Safe to call more than once.
func (a *AuditLogger) Close() {
	a.closeOnce.Do(func() { close(a.queue) })
	a.wg.Wait()
}

func marshalValue(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
