package repository

import (
	"database/sql"
	"time"

	"tariffwatch/internal/model"

	"github.com/lib/pq"
)

type FeedRepository struct {
	db *sql.DB
}

func NewFeedRepository(db *sql.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

func (r *FeedRepository) GetActiveFeeds() ([]model.Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, key, url, description, country, category, priority,
			keywords, exclusion_keywords, poll_interval_hours, active,
			last_checked_at, last_success_at, last_item_at, consecutive_failures
		FROM feeds
		WHERE active = true
		ORDER BY key
	`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []model.Feed
	for rows.Next() {
		var f model.Feed
		var lastChecked, lastSuccess, lastItem sql.NullTime
		err := rows.Scan(&f.ID, &f.Key, &f.URL, &f.Description, &f.Country, &f.Category,
			&f.Priority, pq.Array(&f.Keywords), pq.Array(&f.ExclusionKeywords),
			&f.PollIntervalHours, &f.Active, &lastChecked, &lastSuccess, &lastItem,
			&f.ConsecutiveFailures)
		if err != nil {
			return nil, err
		}
		f.LastCheckedAt = lastChecked.Time
		f.LastSuccessAt = lastSuccess.Time
		f.LastItemAt = lastItem.Time
		feeds = append(feeds, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return feeds, nil
}

// UpsertFeed creates or refreshes a configured feed. Poll bookkeeping
// columns are left untouched on conflict.
func (r *FeedRepository) UpsertFeed(feed *model.Feed) error {
	return r.db.QueryRow(`
		INSERT INTO feeds(key, url, description, country, category, priority,
			keywords, exclusion_keywords, poll_interval_hours, active)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE
		SET url = EXCLUDED.url,
			description = EXCLUDED.description,
			country = EXCLUDED.country,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			keywords = EXCLUDED.keywords,
			exclusion_keywords = EXCLUDED.exclusion_keywords,
			poll_interval_hours = EXCLUDED.poll_interval_hours,
			active = EXCLUDED.active
		RETURNING id
	`, feed.Key, feed.URL, feed.Description, feed.Country, feed.Category, feed.Priority,
		pq.Array(feed.Keywords), pq.Array(feed.ExclusionKeywords),
		feed.PollIntervalHours, feed.Active).Scan(&feed.ID)
}

func (r *FeedRepository) RecordPollSuccess(feedID int64, lastItemAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_checked_at = NOW(),
			last_success_at = NOW(),
			last_item_at = GREATEST(COALESCE(last_item_at, 'epoch'), $2),
			consecutive_failures = 0
		WHERE id = $1
	`, feedID, lastItemAt)
	return err
}

func (r *FeedRepository) RecordPollFailure(feedID int64) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_checked_at = NOW(),
			consecutive_failures = consecutive_failures + 1
		WHERE id = $1
	`, feedID)
	return err
}

// ItemExists reports whether the (feed, external id) pair was already ingested.
func (r *FeedRepository) ItemExists(feedID int64, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM feed_items WHERE feed_id = $1 AND external_id = $2
		)
	`, feedID, externalID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// SaveItem inserts a feed item if the (feed, external id) pair is new.
// Returns false on a duplicate, which is an expected no-op.
func (r *FeedRepository) SaveItem(item *model.FeedItem) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO feed_items(feed_id, external_id, title, description, url,
			published_at, relevance_score, matched_keywords, status)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (feed_id, external_id) DO NOTHING
		RETURNING id
	`, item.FeedID, item.ExternalID, item.Title, item.Description, item.URL,
		item.PublishedAt, item.RelevanceScore, pq.Array(item.MatchedKeywords),
		item.Status).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	item.ID = id
	return true, nil
}

func (r *FeedRepository) GetItemByID(id int64) (*model.FeedItem, error) {
	var item model.FeedItem
	var payload sql.NullString
	err := r.db.QueryRow(`
		SELECT id, feed_id, external_id, title, description, url, published_at,
			relevance_score, matched_keywords, status, parsed_payload, fetched_at
		FROM feed_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.FeedID, &item.ExternalID, &item.Title, &item.Description,
		&item.URL, &item.PublishedAt, &item.RelevanceScore, pq.Array(&item.MatchedKeywords),
		&item.Status, &payload, &item.FetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	item.ParsedPayload = payload.String
	return &item, nil
}

// GetUnparsedItems returns items inside the lookback window that have not
// been through extraction yet.
func (r *FeedRepository) GetUnparsedItems(since time.Time, limit int) ([]model.FeedItem, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, external_id, title, description, url, published_at,
			relevance_score, matched_keywords, status, fetched_at
		FROM feed_items
		WHERE status <> $1 AND fetched_at >= $2
		ORDER BY fetched_at ASC
		LIMIT $3
	`, model.ItemStatusParsed, since, limit)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.FeedItem
	for rows.Next() {
		var item model.FeedItem
		err := rows.Scan(&item.ID, &item.FeedID, &item.ExternalID, &item.Title,
			&item.Description, &item.URL, &item.PublishedAt, &item.RelevanceScore,
			pq.Array(&item.MatchedKeywords), &item.Status, &item.FetchedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// SetParsedPayload stores the extraction result and flips the item to
// parsed. The payload is written at most once; re-running the detector
// over an already parsed item is a no-op.
func (r *FeedRepository) SetParsedPayload(id int64, payload string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE feed_items
		SET parsed_payload = $2, status = $3
		WHERE id = $1 AND status <> $3
	`, id, payload, model.ItemStatusParsed)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
