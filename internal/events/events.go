// Package events announces ledger activity to downstream consumers. The
// ledger is the record of truth; a failed publish never undoes a posting.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	AccrualPosted     = "accrual.posted"
	AccrualReversed   = "accrual.reversed"
	PaymentAllocated  = "payment.allocated"
	CreditApplied     = "credit.applied"
	DepositForfeited  = "deposit.forfeited"
	ManualEntryPosted = "entry.posted"
)

type Event struct {
	Type       string    `json:"type"`
	StudentID  string    `json:"student_id,omitempty"`
	EntryIDs   []string  `json:"entry_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the log. It is the default when no broker
// is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info("event",
		zap.String("type", event.Type),
		zap.String("student_id", event.StudentID),
		zap.Strings("entry_ids", event.EntryIDs),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Emit publishes and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn("publish event failed", zap.String("type", event.Type), zap.Error(err))
	}
}
