package feeds

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const userAgent = "tariffwatch/1.0 (trade policy monitoring)"

type RSSFetcher struct {
	parser     *gofeed.Parser
	httpClient *http.Client
}

func NewRSSFetcher(client *http.Client) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &RSSFetcher{parser: parser, httpClient: client}
}

func (f *RSSFetcher) Fetch(ctx context.Context, url string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rss request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss fetch: unexpected status %s", resp.Status)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rss parse: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := Item{
			Title:       entry.Title,
			Description: CleanDescription(entry.Description),
			URL:         entry.Link,
			ExternalID:  externalID(entry),
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.PublishedAt = *entry.UpdatedParsed
		}
		items = append(items, item)
	}

	return items, nil
}

// externalID prefers the feed GUID, falls back to the link, and hashes
// either so the id is stable and bounded regardless of source format.
func externalID(entry *gofeed.Item) string {
	raw := entry.GUID
	if raw == "" {
		raw = entry.Link
	}
	if raw == "" {
		raw = entry.Title
	}
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)[:16]
}
