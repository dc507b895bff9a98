package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tariffwatch/internal/model"
	"tariffwatch/pkg/mailer"
)

// baseRetryDelay doubles on every failed attempt: 5m, 10m, 20m with the
// default max_retries.
const baseRetryDelay = 5 * time.Minute

const defaultPriority = 5

// staleClaimAge bounds how long a processing claim is trusted. A worker
// that dies between claiming and recording the outcome releases its
// messages after this long.
const staleClaimAge = 15 * time.Minute

type messageStore interface {
	Enqueue(msg *model.OutboundMessage) (int64, error)
	GetDuePending(limit int) ([]model.OutboundMessage, error)
	GetDueRetries(limit int) ([]model.OutboundMessage, error)
	ClaimMessage(id int64, fromStatus string) (bool, error)
	MarkSent(id int64, providerMessageID string) error
	MarkFailed(id int64, lastError string, nextRetryAt *time.Time) error
	RequeueStale(cutoff time.Time) (int64, error)
	Cancel(id int64) (bool, error)
}

// Report summarizes one processing pass.
type Report struct {
	Requeued     int `json:"requeued"`
	Claimed      int `json:"claimed"`
	Sent         int `json:"sent"`
	Retried      int `json:"retried"`
	DeadLettered int `json:"dead_lettered"`
}

type Processor struct {
	store  messageStore
	mailer mailer.Mailer
}

func New(store messageStore, m mailer.Mailer) *Processor {
	return &Processor{store: store, mailer: m}
}

// Enqueue validates and inserts a message for later delivery.
func (p *Processor) Enqueue(msg *model.OutboundMessage) (int64, error) {
	if msg.Recipient == "" {
		return 0, fmt.Errorf("message recipient is required")
	}
	if msg.Subject == "" {
		return 0, fmt.Errorf("message subject is required")
	}
	if msg.HTMLBody == "" && msg.TextBody == "" {
		return 0, fmt.Errorf("message body is required")
	}
	switch msg.Category {
	case model.CategoryDigest, model.CategoryCrisisAlert, model.CategoryOperational:
	default:
		return 0, fmt.Errorf("unknown message category %q", msg.Category)
	}
	if msg.Priority == 0 {
		msg.Priority = defaultPriority
	}
	return p.store.Enqueue(msg)
}

// ProcessPending delivers due first-attempt messages, most urgent first.
// Messages stranded in processing by a crashed worker are returned to
// pending first so they are picked up in the same pass.
func (p *Processor) ProcessPending(ctx context.Context, limit int) (*Report, error) {
	requeued, err := p.store.RequeueStale(time.Now().Add(-staleClaimAge))
	if err != nil {
		slog.Error("failed to requeue stale messages", "error", err)
	} else if requeued > 0 {
		slog.Warn("requeued stale processing messages", "count", requeued)
	}

	due, err := p.store.GetDuePending(limit)
	if err != nil {
		return nil, err
	}
	report := p.deliver(ctx, due, model.MessageStatusPending)
	report.Requeued = int(requeued)
	return report, nil
}

// ProcessRetries delivers failed messages whose backoff has elapsed.
func (p *Processor) ProcessRetries(ctx context.Context, limit int) (*Report, error) {
	due, err := p.store.GetDueRetries(limit)
	if err != nil {
		return nil, err
	}
	return p.deliver(ctx, due, model.MessageStatusFailed), nil
}

func (p *Processor) deliver(ctx context.Context, due []model.OutboundMessage, fromStatus string) *Report {
	report := &Report{}

	for _, msg := range due {
		claimed, err := p.store.ClaimMessage(msg.ID, fromStatus)
		if err != nil {
			slog.Error("failed to claim message", "message_id", msg.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		report.Claimed++

		providerID, err := p.mailer.Send(ctx, mailer.Email{
			To:      msg.Recipient,
			Subject: msg.Subject,
			HTML:    msg.HTMLBody,
			Text:    msg.TextBody,
		})
		if err != nil {
			p.recordFailure(msg, err, report)
			continue
		}

		if err := p.store.MarkSent(msg.ID, providerID); err != nil {
			slog.Error("failed to mark message sent", "message_id", msg.ID, "error", err)
			continue
		}
		report.Sent++
	}

	slog.Info("queue pass finished",
		"from_status", fromStatus,
		"claimed", report.Claimed,
		"sent", report.Sent,
		"retried", report.Retried,
		"dead_lettered", report.DeadLettered)

	return report
}

// recordFailure schedules the next attempt with exponential backoff, or
// dead-letters the message once its retries are spent.
func (p *Processor) recordFailure(msg model.OutboundMessage, sendErr error, report *Report) {
	var nextRetryAt *time.Time
	if msg.RetryCount+1 < msg.MaxRetries {
		next := time.Now().Add(baseRetryDelay * (1 << msg.RetryCount))
		nextRetryAt = &next
		report.Retried++
	} else {
		report.DeadLettered++
		slog.Warn("message dead-lettered",
			"message_id", msg.ID,
			"recipient", msg.Recipient,
			"error", sendErr)
	}

	if err := p.store.MarkFailed(msg.ID, sendErr.Error(), nextRetryAt); err != nil {
		slog.Error("failed to record message failure", "message_id", msg.ID, "error", err)
	}
}

// Cancel withdraws a message that has not been delivered. Only pending and
// failed messages can be cancelled.
func (p *Processor) Cancel(id int64) (bool, error) {
	return p.store.Cancel(id)
}
