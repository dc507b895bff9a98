package model

import "time"

const (
	MessageStatusPending    = "pending"
	MessageStatusProcessing = "processing"
	MessageStatusSent       = "sent"
	MessageStatusFailed     = "failed"
	MessageStatusCancelled  = "cancelled"

	CategoryDigest      = "digest"
	CategoryCrisisAlert = "crisis_alert"
	CategoryOperational = "operational"

	DefaultMaxRetries = 3
)

type OutboundMessage struct {
	ID                int64
	Recipient         string
	Subject           string
	HTMLBody          string
	TextBody          string
	Category          string
	Priority          int
	ScheduledAt       time.Time
	Status            string
	RetryCount        int
	MaxRetries        int
	NextRetryAt       *time.Time
	ProviderMessageID string
	LastError         string
	CreatedAt         time.Time
}

// DigestSentLog records which subscriber received which bundle.
type DigestSentLog struct {
	ID           int64
	BatchID      string
	SubscriberID int64
	MessageID    int64
	ChangeIDs    []int64
	SentAt       time.Time
}
