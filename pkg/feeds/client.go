package feeds

import (
	"context"
	"time"
)

// Item is one raw entry pulled from a source before scoring/persistence.
type Item struct {
	ExternalID  string
	Title       string
	Description string
	URL         string
	PublishedAt time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]Item, error)
}
