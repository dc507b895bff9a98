package repository

import (
	"database/sql"

	"tariffwatch/internal/model"

	"github.com/lib/pq"
)

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) SaveAlert(alert *model.CrisisAlert) error {
	return r.db.QueryRow(`
		INSERT INTO crisis_alerts(feed_item_id, severity, title, summary,
			recommended_actions, active)
		VALUES($1, $2, $3, $4, $5, true)
		RETURNING id
	`, alert.FeedItemID, alert.Severity, alert.Title, alert.Summary,
		pq.Array(alert.RecommendedActions)).Scan(&alert.ID)
}

func (r *AlertRepository) GetActiveAlerts(limit, offset int) ([]model.CrisisAlert, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_item_id, severity, title, summary, recommended_actions,
			active, created_at
		FROM crisis_alerts
		WHERE active = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.CrisisAlert
	for rows.Next() {
		var a model.CrisisAlert
		err := rows.Scan(&a.ID, &a.FeedItemID, &a.Severity, &a.Title, &a.Summary,
			pq.Array(&a.RecommendedActions), &a.Active, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

func (r *AlertRepository) SetAlertActive(id int64, active bool) error {
	_, err := r.db.Exec(`
		UPDATE crisis_alerts SET active = $2 WHERE id = $1
	`, id, active)
	return err
}
