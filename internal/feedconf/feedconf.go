package feedconf

import (
	"fmt"
	"log/slog"
	"os"

	"tariffwatch/internal/model"

	"gopkg.in/yaml.v3"
)

const defaultPollIntervalHours = 4

type feedSpec struct {
	Key               string   `yaml:"key"`
	URL               string   `yaml:"url"`
	Description       string   `yaml:"description"`
	Country           string   `yaml:"country"`
	Category          string   `yaml:"category"`
	Priority          string   `yaml:"priority"`
	PollIntervalHours int      `yaml:"poll_interval_hours"`
	Keywords          []string `yaml:"keywords"`
	ExclusionKeywords []string `yaml:"exclusion_keywords"`
	Active            *bool    `yaml:"active"`
}

type configFile struct {
	Feeds []feedSpec `yaml:"feeds"`
}

var validPriorities = map[string]bool{
	model.PriorityCritical: true,
	model.PriorityHigh:     true,
	model.PriorityMedium:   true,
	model.PriorityLow:      true,
}

// Load reads the feed seed file. Every feed needs a unique key, a URL and a
// known priority; a feed missing those fails the whole load so a bad deploy
// is caught at sync time, not at poll time.
func Load(path string) ([]model.Feed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed config: %w", err)
	}

	var cfg configFile
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse feed config: %w", err)
	}
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("feed config %s declares no feeds", path)
	}

	seen := make(map[string]bool, len(cfg.Feeds))
	feeds := make([]model.Feed, 0, len(cfg.Feeds))
	for i, spec := range cfg.Feeds {
		if spec.Key == "" {
			return nil, fmt.Errorf("feed %d: key is required", i)
		}
		if seen[spec.Key] {
			return nil, fmt.Errorf("feed %q: duplicate key", spec.Key)
		}
		seen[spec.Key] = true
		if spec.URL == "" {
			return nil, fmt.Errorf("feed %q: url is required", spec.Key)
		}
		if !validPriorities[spec.Priority] {
			return nil, fmt.Errorf("feed %q: unknown priority %q", spec.Key, spec.Priority)
		}

		interval := spec.PollIntervalHours
		if interval <= 0 {
			interval = defaultPollIntervalHours
		}
		active := true
		if spec.Active != nil {
			active = *spec.Active
		}

		feeds = append(feeds, model.Feed{
			Key:               spec.Key,
			URL:               spec.URL,
			Description:       spec.Description,
			Country:           spec.Country,
			Category:          spec.Category,
			Priority:          spec.Priority,
			Keywords:          spec.Keywords,
			ExclusionKeywords: spec.ExclusionKeywords,
			PollIntervalHours: interval,
			Active:            active,
		})
	}

	return feeds, nil
}

type feedStore interface {
	UpsertFeed(feed *model.Feed) error
}

// Sync upserts every seed feed, keyed by the stable feed key. Poll
// bookkeeping on existing rows is preserved.
func Sync(store feedStore, feeds []model.Feed) (int, error) {
	synced := 0
	for i := range feeds {
		if err := store.UpsertFeed(&feeds[i]); err != nil {
			return synced, fmt.Errorf("upsert feed %q: %w", feeds[i].Key, err)
		}
		synced++
	}
	slog.Info("feed config synced", "feeds", synced)
	return synced, nil
}
