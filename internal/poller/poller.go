package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tariffwatch/internal/model"
	"tariffwatch/pkg/feeds"
	"tariffwatch/pkg/llm"
)

const maxConcurrentFeeds = 5

type feedStore interface {
	GetActiveFeeds() ([]model.Feed, error)
	RecordPollSuccess(feedID int64, lastItemAt time.Time) error
	RecordPollFailure(feedID int64) error
	ItemExists(feedID int64, externalID string) (bool, error)
	SaveItem(item *model.FeedItem) (bool, error)
}

type alertStore interface {
	SaveAlert(alert *model.CrisisAlert) error
}

type subscriberStore interface {
	GetAllProfiles() ([]model.Subscriber, error)
}

type messageStore interface {
	Enqueue(msg *model.OutboundMessage) (int64, error)
}

// Summary aggregates one polling run across all feeds.
type Summary struct {
	FeedsAttempted int           `json:"feeds_attempted"`
	FeedsSucceeded int           `json:"feeds_succeeded"`
	FeedsFailed    int           `json:"feeds_failed"`
	ItemsSeen      int           `json:"items_seen"`
	ItemsSaved     int           `json:"items_saved"`
	AlertsCreated  int           `json:"alerts_created"`
	Duration       time.Duration `json:"duration"`
	Feeds          []FeedOutcome `json:"feeds"`
}

// FeedOutcome records how a single feed fared during one polling run.
type FeedOutcome struct {
	Feed       string        `json:"feed"`
	Success    bool          `json:"success"`
	ItemsSeen  int           `json:"items_seen"`
	ItemsSaved int           `json:"items_saved"`
	Latency    time.Duration `json:"latency"`
}

type Poller struct {
	store    feedStore
	alerts   alertStore
	subs     subscriberStore
	messages messageStore
	fetcher  feeds.Fetcher
	scorer   llm.Scorer
	pushItem func(itemID int64) error
}

// New wires a poller. scorer may be nil, in which case every item is scored
// by the keyword fallback. pushItem hands persisted item ids to the change
// detector queue; a nil pushItem disables the handoff.
func New(store feedStore, alerts alertStore, subs subscriberStore, messages messageStore, fetcher feeds.Fetcher, scorer llm.Scorer, pushItem func(int64) error) *Poller {
	return &Poller{
		store:    store,
		alerts:   alerts,
		subs:     subs,
		messages: messages,
		fetcher:  fetcher,
		scorer:   scorer,
		pushItem: pushItem,
	}
}

// PollAll fetches every active feed concurrently. One feed's failure never
// aborts the others; each outcome is recorded on the feed row.
func (p *Poller) PollAll(ctx context.Context) (*Summary, error) {
	start := time.Now()

	activeFeeds, err := p.store.GetActiveFeeds()
	if err != nil {
		return nil, err
	}

	profiles, err := p.subs.GetAllProfiles()
	if err != nil {
		slog.Warn("failed to load subscriber profiles, fast-path alerts disabled", "error", err)
		profiles = nil
	}

	summary := &Summary{FeedsAttempted: len(activeFeeds)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentFeeds)

	for _, feed := range activeFeeds {
		wg.Add(1)
		sem <- struct{}{}
		go func(feed model.Feed) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := p.pollFeed(ctx, feed, profiles)

			outcome := FeedOutcome{
				Feed:       feed.Key,
				Success:    err == nil,
				ItemsSeen:  result.seen,
				ItemsSaved: result.saved,
				Latency:    result.latency,
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Feeds = append(summary.Feeds, outcome)
			if err != nil {
				summary.FeedsFailed++
				slog.Error("feed poll failed", "feed", feed.Key, "latency", result.latency, "error", err)
				return
			}
			summary.FeedsSucceeded++
			summary.ItemsSeen += result.seen
			summary.ItemsSaved += result.saved
			summary.AlertsCreated += result.alerts
			slog.Info("feed polled",
				"feed", feed.Key,
				"items_seen", result.seen,
				"items_saved", result.saved,
				"latency", result.latency)
		}(feed)
	}

	wg.Wait()
	summary.Duration = time.Since(start)

	slog.Info("poll run finished",
		"attempted", summary.FeedsAttempted,
		"succeeded", summary.FeedsSucceeded,
		"failed", summary.FeedsFailed,
		"items_saved", summary.ItemsSaved,
		"alerts", summary.AlertsCreated,
		"duration", summary.Duration)

	return summary, nil
}

type feedResult struct {
	seen    int
	saved   int
	alerts  int
	latency time.Duration
}

func (p *Poller) pollFeed(ctx context.Context, feed model.Feed, profiles []model.Subscriber) (result feedResult, err error) {
	start := time.Now()
	defer func() { result.latency = time.Since(start) }()

	items, err := p.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		if recErr := p.store.RecordPollFailure(feed.ID); recErr != nil {
			slog.Error("failed to record poll failure", "feed", feed.Key, "error", recErr)
		}
		return result, err
	}

	latestItem := feed.LastItemAt

	for _, item := range items {
		result.seen++

		// Skip items ingested on a previous run before scoring so duplicates
		// never cost a completion call.
		exists, err := p.store.ItemExists(feed.ID, item.ExternalID)
		if err != nil {
			slog.Error("failed to check item existence", "feed", feed.Key, "url", item.URL, "error", err)
			continue
		}
		if exists {
			continue
		}

		description := feeds.CleanDescription(item.Description)
		score, matched := p.scoreItem(ctx, feed, item.Title, description)

		if score < relevanceThreshold && feed.Priority != model.PriorityCritical {
			continue
		}

		feedItem := &model.FeedItem{
			FeedID:          feed.ID,
			ExternalID:      item.ExternalID,
			Title:           item.Title,
			Description:     description,
			URL:             item.URL,
			PublishedAt:     item.PublishedAt,
			RelevanceScore:  score,
			MatchedKeywords: matched,
			Status:          model.ItemStatusScored,
		}

		inserted, err := p.store.SaveItem(feedItem)
		if err != nil {
			slog.Error("failed to save feed item", "feed", feed.Key, "url", item.URL, "error", err)
			continue
		}
		if !inserted {
			continue
		}
		result.saved++

		if item.PublishedAt.After(latestItem) {
			latestItem = item.PublishedAt
		}

		if p.pushItem != nil {
			if err := p.pushItem(feedItem.ID); err != nil {
				slog.Error("failed to enqueue item for extraction", "item_id", feedItem.ID, "error", err)
			}
		}

		if score >= relevanceThreshold {
			if p.raiseAlert(feed, feedItem, score, matched, profiles) {
				result.alerts++
			}
		}
	}

	if err := p.store.RecordPollSuccess(feed.ID, latestItem); err != nil {
		slog.Error("failed to record poll success", "feed", feed.Key, "error", err)
	}

	return result, nil
}

// scoreItem asks the completion service first and falls back to keyword
// scoring on any provider or parse error.
func (p *Poller) scoreItem(ctx context.Context, feed model.Feed, title, description string) (int, []string) {
	if p.scorer != nil {
		result, err := p.scorer.ScoreItem(ctx, llm.ScoreInput{Title: title, Description: description})
		if err == nil {
			return result.Score, result.Keywords
		}
		slog.Warn("completion scoring failed, using keyword fallback", "feed", feed.Key, "error", err)
	}
	return fallbackScore(feed, title, description)
}
