package poller

import (
	"strings"

	"tariffwatch/internal/model"
)

// relevanceThreshold is the minimum score an item needs before it enters
// the change-detection path.
const relevanceThreshold = 3

// highImpactKeywords always score double regardless of the feed's own
// keyword list. Matching is case-insensitive substring.
var highImpactKeywords = []string{
	"section 301",
	"section 232",
	"trade war",
	"tariff",
	"retaliatory",
	"embargo",
	"antidumping",
	"countervailing",
	"safeguard measure",
	"quota restriction",
}

// fallbackScore is the deterministic keyword scorer used when no completion
// service is configured or its response cannot be used. Any exclusion
// keyword zeroes the item.
func fallbackScore(feed model.Feed, title, description string) (int, []string) {
	text := strings.ToLower(title + " " + description)

	for _, keyword := range feed.ExclusionKeywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			return 0, nil
		}
	}

	score := 0
	var matched []string
	seen := make(map[string]bool)

	scoreKeyword := func(keyword string, weight int) {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k == "" || seen[k] {
			return
		}
		if strings.Contains(text, k) {
			seen[k] = true
			matched = append(matched, k)
			score += weight
		}
	}

	for _, keyword := range highImpactKeywords {
		scoreKeyword(keyword, 2)
	}
	for _, keyword := range feed.Keywords {
		scoreKeyword(keyword, 1)
	}

	return score, matched
}
