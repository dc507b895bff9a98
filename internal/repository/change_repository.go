package repository

import (
	"database/sql"
	"time"

	"tariffwatch/internal/model"

	"github.com/lib/pq"
)

type ChangeRepository struct {
	db *sql.DB
}

func NewChangeRepository(db *sql.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

func (r *ChangeRepository) SaveChange(record *model.PendingChangeRecord) error {
	return r.db.QueryRow(`
		INSERT INTO pending_change_records(hs_code, category, old_rate, new_rate,
			effective_date, confidence, affected_count, source_item_id, summary, processed)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING id
	`, record.HSCode, string(record.Category), record.OldRate, record.NewRate,
		record.EffectiveDate, record.Confidence, record.AffectedCount,
		record.SourceItemID, record.Summary).Scan(&record.ID)
}

func (r *ChangeRepository) GetUnprocessedSince(since time.Time) ([]model.PendingChangeRecord, error) {
	return r.queryChanges(`
		SELECT id, hs_code, category, old_rate, new_rate, effective_date,
			confidence, affected_count, source_item_id, summary, processed, created_at
		FROM pending_change_records
		WHERE processed = false AND created_at >= $1
		ORDER BY created_at ASC
	`, since)
}

func (r *ChangeRepository) GetUnprocessedWithConfidence(minConfidence float64) ([]model.PendingChangeRecord, error) {
	return r.queryChanges(`
		SELECT id, hs_code, category, old_rate, new_rate, effective_date,
			confidence, affected_count, source_item_id, summary, processed, created_at
		FROM pending_change_records
		WHERE processed = false AND confidence >= $1
		ORDER BY created_at ASC
	`, minConfidence)
}

func (r *ChangeRepository) ListChanges(processed *bool, limit, offset int) ([]model.PendingChangeRecord, error) {
	if processed == nil {
		return r.queryChanges(`
			SELECT id, hs_code, category, old_rate, new_rate, effective_date,
				confidence, affected_count, source_item_id, summary, processed, created_at
			FROM pending_change_records
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	return r.queryChanges(`
		SELECT id, hs_code, category, old_rate, new_rate, effective_date,
			confidence, affected_count, source_item_id, summary, processed, created_at
		FROM pending_change_records
		WHERE processed = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, *processed, limit, offset)
}

func (r *ChangeRepository) queryChanges(query string, args ...any) ([]model.PendingChangeRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.PendingChangeRecord
	for rows.Next() {
		var rec model.PendingChangeRecord
		var category string
		var effective sql.NullTime
		err := rows.Scan(&rec.ID, &rec.HSCode, &category, &rec.OldRate, &rec.NewRate,
			&effective, &rec.Confidence, &rec.AffectedCount, &rec.SourceItemID,
			&rec.Summary, &rec.Processed, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		rec.Category = model.TariffCategory(category)
		rec.EffectiveDate = effective.Time
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// MarkProcessed flips the processed flag if and only if it is still false.
// Returns false when another run already claimed the record.
func (r *ChangeRepository) MarkProcessed(id int64) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE pending_change_records
		SET processed = true
		WHERE id = $1 AND processed = false
	`, id)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// MarkProcessedBatch flips every still-unprocessed record in ids.
func (r *ChangeRepository) MarkProcessedBatch(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(`
		UPDATE pending_change_records
		SET processed = true
		WHERE id = ANY($1) AND processed = false
	`, pq.Array(ids))
	return err
}

// GetCurrentRate reads the cached rate for a product code and category.
// Absent entries read as 0, the documented default for never-seen codes.
func (r *ChangeRepository) GetCurrentRate(hsCode string, category model.TariffCategory) (float64, error) {
	var rate float64
	err := r.db.QueryRow(`
		SELECT rate FROM rate_cache
		WHERE hs_code = $1 AND category = $2
	`, model.NormalizeHSCode(hsCode), string(category)).Scan(&rate)

	if err == sql.ErrNoRows {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	return rate, nil
}

func (r *ChangeRepository) UpsertRate(entry *model.RateCacheEntry) error {
	return r.db.QueryRow(`
		INSERT INTO rate_cache(hs_code, category, rate, source, verified, last_updated)
		VALUES($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (hs_code, category) DO UPDATE
		SET rate = EXCLUDED.rate,
			source = EXCLUDED.source,
			verified = EXCLUDED.verified,
			last_updated = NOW()
		RETURNING id
	`, model.NormalizeHSCode(entry.HSCode), string(entry.Category), entry.Rate,
		entry.Source, entry.Verified).Scan(&entry.ID)
}
