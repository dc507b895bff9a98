package model

import "time"

const (
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

// Subscriber is the import profile plus notification preferences. Owned by
// account management; read-only in this pipeline.
type Subscriber struct {
	ID                   int64
	Email                string
	CompanyName          string
	Industry             string
	ProductCodes         []string
	SourcingCountries    []string
	DestinationCountry   string
	Tier                 string
	NotificationsEnabled bool
	Preferences          map[string]bool
	CreatedAt            time.Time
}

// WantsCategory reports whether the subscriber opted in to notifications
// for the given tariff category.
func (s Subscriber) WantsCategory(category TariffCategory) bool {
	return s.NotificationsEnabled && s.Preferences[string(category)]
}

// HasAnyPreference reports whether at least one preference flag is set.
func (s Subscriber) HasAnyPreference() bool {
	for _, enabled := range s.Preferences {
		if enabled {
			return true
		}
	}
	return false
}
