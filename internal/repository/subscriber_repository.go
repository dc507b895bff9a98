package repository

import (
	"database/sql"
	"encoding/json"

	"tariffwatch/internal/model"

	"github.com/lib/pq"
)

// SubscriberRepository reads import profiles owned by account management.
// This pipeline never writes to the subscribers table.
type SubscriberRepository struct {
	db *sql.DB
}

func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) GetAllProfiles() ([]model.Subscriber, error) {
	rows, err := r.db.Query(`
		SELECT id, email, company_name, industry, product_codes,
			sourcing_countries, destination_country, tier,
			notifications_enabled, preferences
		FROM subscribers
		ORDER BY id
	`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscribers []model.Subscriber
	for rows.Next() {
		var s model.Subscriber
		var prefsJSON []byte
		err := rows.Scan(&s.ID, &s.Email, &s.CompanyName, &s.Industry,
			pq.Array(&s.ProductCodes), pq.Array(&s.SourcingCountries),
			&s.DestinationCountry, &s.Tier, &s.NotificationsEnabled, &prefsJSON)
		if err != nil {
			return nil, err
		}
		if len(prefsJSON) > 0 {
			if err := json.Unmarshal(prefsJSON, &s.Preferences); err != nil {
				return nil, err
			}
		}
		subscribers = append(subscribers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subscribers, nil
}
