package poller

import (
	"fmt"
	"log/slog"
	"strings"

	"tariffwatch/internal/match"
	"tariffwatch/internal/model"
)

// criticalKeywords force critical severity regardless of score. Subset of
// the trigger list the feed configs are built around.
var criticalKeywords = []string{
	"trade war",
	"emergency tariff",
	"retaliatory tariff",
	"effective immediately",
	"border tax",
	"suspension of benefits",
	"withdrawal from agreement",
}

var recommendedActions = map[string][]string{
	model.SeverityCritical: {
		"Review sourcing exposure for the affected origin immediately",
		"Contact your customs broker about in-transit shipments",
		"Model landed-cost impact before the effective date",
	},
	model.SeverityHigh: {
		"Check whether your tracked product codes fall in scope",
		"Monitor the docket for the final rate determination",
	},
	model.SeverityMedium: {
		"No immediate action needed; included in your next digest",
	},
}

// raiseAlert persists a crisis alert for a relevant item and, for high or
// critical severity, enqueues fast-path notifications ahead of the daily
// digest. Returns whether an alert was created.
func (p *Poller) raiseAlert(feed model.Feed, item *model.FeedItem, score int, matched []string, profiles []model.Subscriber) bool {
	severity := severityFor(score, feed.Priority, item.Title+" "+item.Description)

	alert := &model.CrisisAlert{
		FeedItemID:         item.ID,
		Severity:           severity,
		Title:              item.Title,
		Summary:            item.Description,
		RecommendedActions: recommendedActions[severity],
		Active:             true,
	}

	if err := p.alerts.SaveAlert(alert); err != nil {
		slog.Error("failed to save crisis alert", "feed", feed.Key, "error", err)
		return false
	}

	if severity == model.SeverityHigh || severity == model.SeverityCritical {
		p.fastPathNotify(alert, matched, profiles)
	}

	return true
}

// severityFor maps a scored item to an alert severity. Any critical trigger
// phrase in the item text wins outright; a strong score or a high-priority
// source raises the floor to high.
func severityFor(score int, feedPriority string, text string) string {
	lower := strings.ToLower(text)
	for _, trigger := range criticalKeywords {
		if strings.Contains(lower, trigger) {
			return model.SeverityCritical
		}
	}
	if score >= 5 || feedPriority == model.PriorityHigh || feedPriority == model.PriorityCritical {
		return model.SeverityHigh
	}
	return model.SeverityMedium
}

// alertCategory infers the tariff category an alert speaks to from its
// matched keywords. Anything without an explicit section marker is treated
// as a reciprocal action.
func alertCategory(matched []string) model.TariffCategory {
	for _, keyword := range matched {
		k := strings.ToLower(keyword)
		if strings.Contains(k, "section 301") {
			return model.Section301
		}
		if strings.Contains(k, "section 232") {
			return model.Section232
		}
	}
	return model.Reciprocal
}

// fastPathNotify enqueues one message per affected subscriber. Critical
// alerts go to every notifiable profile; high alerts only to profiles the
// shared matcher resolves for the alert's category. Starter-tier accounts
// get digests only.
func (p *Poller) fastPathNotify(alert *model.CrisisAlert, matched []string, profiles []model.Subscriber) {
	category := alertCategory(matched)

	var recipients []model.Subscriber
	if alert.Severity == model.SeverityCritical {
		recipients = profiles
	} else {
		affected := match.ResolveAffectedSubscribers(category, "", profiles)
		affectedSet := make(map[int64]bool, len(affected))
		for _, id := range affected {
			affectedSet[id] = true
		}
		for _, sub := range profiles {
			if affectedSet[sub.ID] {
				recipients = append(recipients, sub)
			}
		}
	}

	sent := 0
	for _, sub := range recipients {
		if !sub.NotificationsEnabled || !sub.HasAnyPreference() {
			continue
		}
		if sub.Tier == model.TierStarter {
			continue
		}

		msg := &model.OutboundMessage{
			Recipient: sub.Email,
			Subject:   fmt.Sprintf("Trade alert: %s", alert.Title),
			HTMLBody:  renderAlertHTML(alert),
			TextBody:  renderAlertText(alert),
			Category:  model.CategoryCrisisAlert,
			Priority:  alertPriority(alert.Severity),
		}
		if _, err := p.messages.Enqueue(msg); err != nil {
			slog.Error("failed to enqueue crisis alert", "recipient", sub.Email, "error", err)
			continue
		}
		sent++
	}

	slog.Info("crisis alert fast path",
		"severity", alert.Severity,
		"category", category,
		"notified", sent)
}

func alertPriority(severity string) int {
	if severity == model.SeverityCritical {
		return 1
	}
	return 2
}

func renderAlertHTML(alert *model.CrisisAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>", alert.Title)
	fmt.Fprintf(&b, "<p><strong>Severity:</strong> %s</p>", alert.Severity)
	if alert.Summary != "" {
		fmt.Fprintf(&b, "<p>%s</p>", alert.Summary)
	}
	if len(alert.RecommendedActions) > 0 {
		b.WriteString("<ul>")
		for _, action := range alert.RecommendedActions {
			fmt.Fprintf(&b, "<li>%s</li>", action)
		}
		b.WriteString("</ul>")
	}
	return b.String()
}

func renderAlertText(alert *model.CrisisAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nSeverity: %s\n", alert.Title, alert.Severity)
	if alert.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", alert.Summary)
	}
	for _, action := range alert.RecommendedActions {
		fmt.Fprintf(&b, "- %s\n", action)
	}
	return b.String()
}
