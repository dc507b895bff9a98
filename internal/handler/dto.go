package handler

type AlertResponse struct {
	ID                 int64    `json:"id"`
	FeedItemID         int64    `json:"feed_item_id"`
	Severity           string   `json:"severity"`
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	RecommendedActions []string `json:"recommended_actions"`
	CreatedAt          string   `json:"created_at"`
}

type AlertsResponse struct {
	Alerts []AlertResponse `json:"alerts"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type ChangeResponse struct {
	ID            int64   `json:"id"`
	HSCode        string  `json:"hs_code"`
	Category      string  `json:"category"`
	OldRate       float64 `json:"old_rate"`
	NewRate       float64 `json:"new_rate"`
	EffectiveDate string  `json:"effective_date,omitempty"`
	Confidence    float64 `json:"confidence"`
	AffectedCount int     `json:"affected_count"`
	Summary       string  `json:"summary"`
	Processed     bool    `json:"processed"`
	CreatedAt     string  `json:"created_at"`
}

type ChangesResponse struct {
	Changes []ChangeResponse `json:"changes"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type FeedStatusResponse struct {
	ID                  int64  `json:"id"`
	Key                 string `json:"key"`
	URL                 string `json:"url"`
	Country             string `json:"country"`
	Priority            string `json:"priority"`
	LastCheckedAt       string `json:"last_checked_at,omitempty"`
	LastSuccessAt       string `json:"last_success_at,omitempty"`
	LastItemAt          string `json:"last_item_at,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

type FeedsResponse struct {
	Feeds []FeedStatusResponse `json:"feeds"`
}

type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
	Depth  int64          `json:"extract_queue_depth"`
}
