package repository

import (
	"database/sql"
	"time"

	"tariffwatch/internal/model"

	"github.com/lib/pq"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Enqueue(msg *model.OutboundMessage) (int64, error) {
	if msg.MaxRetries == 0 {
		msg.MaxRetries = model.DefaultMaxRetries
	}
	if msg.ScheduledAt.IsZero() {
		msg.ScheduledAt = time.Now()
	}

	var id int64
	err := r.db.QueryRow(`
		INSERT INTO outbound_messages (recipient, subject, html_body, text_body,
			category, priority, scheduled_at, status, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 0, $8)
		RETURNING id
	`, msg.Recipient, msg.Subject, msg.HTMLBody, msg.TextBody,
		msg.Category, msg.Priority, msg.ScheduledAt, msg.MaxRetries).Scan(&id)

	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetDuePending returns pending messages whose scheduled time has arrived,
// most urgent first.
func (r *MessageRepository) GetDuePending(limit int) ([]model.OutboundMessage, error) {
	return r.queryMessages(`
		SELECT id, recipient, subject, html_body, text_body, category, priority,
			scheduled_at, status, retry_count, max_retries, next_retry_at,
			provider_message_id, last_error, created_at
		FROM outbound_messages
		WHERE status = 'pending' AND scheduled_at <= NOW()
		ORDER BY priority ASC, scheduled_at ASC
		LIMIT $1
	`, limit)
}

// GetDueRetries returns failed messages whose backoff has elapsed and that
// still have retries left.
func (r *MessageRepository) GetDueRetries(limit int) ([]model.OutboundMessage, error) {
	return r.queryMessages(`
		SELECT id, recipient, subject, html_body, text_body, category, priority,
			scheduled_at, status, retry_count, max_retries, next_retry_at,
			provider_message_id, last_error, created_at
		FROM outbound_messages
		WHERE status = 'failed' AND next_retry_at IS NOT NULL
			AND next_retry_at <= NOW() AND retry_count < max_retries
		ORDER BY priority ASC, scheduled_at ASC
		LIMIT $1
	`, limit)
}

func (r *MessageRepository) queryMessages(query string, args ...interface{}) ([]model.OutboundMessage, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.OutboundMessage
	for rows.Next() {
		var m model.OutboundMessage
		var nextRetryAt sql.NullTime
		var providerID, lastError sql.NullString
		err := rows.Scan(&m.ID, &m.Recipient, &m.Subject, &m.HTMLBody, &m.TextBody,
			&m.Category, &m.Priority, &m.ScheduledAt, &m.Status, &m.RetryCount,
			&m.MaxRetries, &nextRetryAt, &providerID, &lastError, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		if nextRetryAt.Valid {
			m.NextRetryAt = &nextRetryAt.Time
		}
		m.ProviderMessageID = providerID.String
		m.LastError = lastError.String
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// ClaimMessage moves a message from the expected status to processing.
// Returns false when another worker already claimed it.
func (r *MessageRepository) ClaimMessage(id int64, fromStatus string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE outbound_messages
		SET status = 'processing', claimed_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, fromStatus)

	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *MessageRepository) MarkSent(id int64, providerMessageID string) error {
	_, err := r.db.Exec(`
		UPDATE outbound_messages
		SET status = 'sent', provider_message_id = $2, last_error = NULL,
			next_retry_at = NULL
		WHERE id = $1
	`, id, providerMessageID)

	return err
}

// MarkFailed records a delivery failure. A nil nextRetryAt parks the message
// as permanently failed.
func (r *MessageRepository) MarkFailed(id int64, lastError string, nextRetryAt *time.Time) error {
	_, err := r.db.Exec(`
		UPDATE outbound_messages
		SET status = 'failed', retry_count = retry_count + 1,
			last_error = $2, next_retry_at = $3
		WHERE id = $1
	`, id, lastError, nextRetryAt)

	return err
}

// RequeueStale returns messages stuck in processing since before the cutoff
// to pending. A worker that crashed between claiming and recording the
// outcome leaves its claim behind; this is the recovery path.
func (r *MessageRepository) RequeueStale(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE outbound_messages
		SET status = 'pending', claimed_at = NULL
		WHERE status = 'processing' AND claimed_at IS NOT NULL AND claimed_at < $1
	`, cutoff)

	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Cancel withdraws a message that has not been handed to the provider yet.
func (r *MessageRepository) Cancel(id int64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE outbound_messages
		SET status = 'cancelled', next_retry_at = NULL
		WHERE id = $1 AND status IN ('pending', 'failed')
	`, id)

	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *MessageRepository) GetQueueStats() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*)
		FROM outbound_messages
		GROUP BY status
	`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *MessageRepository) SaveDigestLog(log *model.DigestSentLog) error {
	_, err := r.db.Exec(`
		INSERT INTO digest_sent_log (batch_id, subscriber_id, message_id, change_ids)
		VALUES ($1, $2, $3, $4)
	`, log.BatchID, log.SubscriberID, log.MessageID, pq.Array(log.ChangeIDs))

	return err
}
