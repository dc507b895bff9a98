package model

import "time"

const (
	ItemStatusNew    = "new"
	ItemStatusScored = "scored"
	ItemStatusParsed = "parsed"

	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"

	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

type Feed struct {
	ID                  int64
	Key                 string
	URL                 string
	Description         string
	Country             string
	Category            string
	Priority            string
	Keywords            []string
	ExclusionKeywords   []string
	PollIntervalHours   int
	Active              bool
	LastCheckedAt       time.Time
	LastSuccessAt       time.Time
	LastItemAt          time.Time
	ConsecutiveFailures int
	CreatedAt           time.Time
}

type FeedItem struct {
	ID              int64
	FeedID          int64
	ExternalID      string
	Title           string
	Description     string
	URL             string
	PublishedAt     time.Time
	RelevanceScore  int
	MatchedKeywords []string
	Status          string
	ParsedPayload   string
	FetchedAt       time.Time
}

type CrisisAlert struct {
	ID                 int64
	FeedItemID         int64
	Severity           string
	Title              string
	Summary            string
	RecommendedActions []string
	Active             bool
	CreatedAt          time.Time
}
