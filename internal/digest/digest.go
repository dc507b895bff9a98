package digest

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tariffwatch/internal/match"
	"tariffwatch/internal/model"

	"github.com/google/uuid"
)

// Window is how far back a pending change stays digest-eligible. Records
// are batch-marked processed after one run, so no change appears in two
// daily digests.
const Window = 24 * time.Hour

type changeStore interface {
	GetUnprocessedSince(since time.Time) ([]model.PendingChangeRecord, error)
	MarkProcessedBatch(ids []int64) error
}

type subscriberStore interface {
	GetAllProfiles() ([]model.Subscriber, error)
}

type messageStore interface {
	Enqueue(msg *model.OutboundMessage) (int64, error)
	SaveDigestLog(log *model.DigestSentLog) error
}

type Report struct {
	BatchID         string        `json:"batch_id"`
	ChangesIncluded int           `json:"changes_included"`
	DigestsSent     int           `json:"digests_sent"`
	Errors          []string      `json:"errors,omitempty"`
	Duration        time.Duration `json:"duration"`
}

type Aggregator struct {
	changes  changeStore
	subs     subscriberStore
	messages messageStore
}

func New(changes changeStore, subs subscriberStore, messages messageStore) *Aggregator {
	return &Aggregator{changes: changes, subs: subs, messages: messages}
}

// Run bundles the last day's pending changes into one digest per affected
// subscriber. Membership is recomputed against the current profile with the
// same matcher the detector used, then filtered by the per-category opt-in,
// so a profile edit between detection and digest time is honored.
func (a *Aggregator) Run() (*Report, error) {
	start := time.Now()
	report := &Report{BatchID: uuid.NewString()}

	records, err := a.changes.GetUnprocessedSince(time.Now().Add(-Window))
	if err != nil {
		return nil, err
	}
	report.ChangesIncluded = len(records)
	if len(records) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	profiles, err := a.subs.GetAllProfiles()
	if err != nil {
		return nil, err
	}

	affected := make(map[int64]map[int64]bool, len(records))
	for _, record := range records {
		ids := match.ResolveAffectedSubscribers(record.Category, record.HSCode, profiles)
		set := make(map[int64]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		affected[record.ID] = set
	}

	for _, sub := range profiles {
		if !sub.NotificationsEnabled || !sub.HasAnyPreference() {
			continue
		}

		var matching []model.PendingChangeRecord
		for _, record := range records {
			if !sub.WantsCategory(record.Category) {
				continue
			}
			if affected[record.ID][sub.ID] {
				matching = append(matching, record)
			}
		}
		if len(matching) == 0 {
			continue
		}

		msg := &model.OutboundMessage{
			Recipient: sub.Email,
			Subject:   digestSubject(matching),
			HTMLBody:  renderDigestHTML(sub, matching),
			TextBody:  renderDigestText(sub, matching),
			Category:  model.CategoryDigest,
			Priority:  1,
		}
		messageID, err := a.messages.Enqueue(msg)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("subscriber %d: enqueue: %v", sub.ID, err))
			continue
		}

		changeIDs := make([]int64, len(matching))
		for i, record := range matching {
			changeIDs[i] = record.ID
		}
		if err := a.messages.SaveDigestLog(&model.DigestSentLog{
			BatchID:      report.BatchID,
			SubscriberID: sub.ID,
			MessageID:    messageID,
			ChangeIDs:    changeIDs,
		}); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("subscriber %d: digest log: %v", sub.ID, err))
		}
		report.DigestsSent++
	}

	// Every selected record leaves the digest pool, matched or not.
	allIDs := make([]int64, len(records))
	for i, record := range records {
		allIDs[i] = record.ID
	}
	if err := a.changes.MarkProcessedBatch(allIDs); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("mark processed batch: %v", err))
	}

	report.Duration = time.Since(start)

	slog.Info("digest run finished",
		"batch_id", report.BatchID,
		"changes", report.ChangesIncluded,
		"digests", report.DigestsSent,
		"errors", len(report.Errors),
		"duration", report.Duration)

	return report, nil
}

func digestSubject(records []model.PendingChangeRecord) string {
	if len(records) == 1 {
		return "Tariff update: 1 rate change affecting your imports"
	}
	return fmt.Sprintf("Tariff update: %d rate changes affecting your imports", len(records))
}

func renderDigestHTML(sub model.Subscriber, records []model.PendingChangeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Daily tariff digest for %s</h2>", sub.CompanyName)
	b.WriteString("<table><tr><th>Category</th><th>HS code</th><th>Old</th><th>New</th><th>Effective</th></tr>")
	for _, record := range records {
		effective := "on publication"
		if !record.EffectiveDate.IsZero() {
			effective = record.EffectiveDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%.2f%%</td><td>%.2f%%</td><td>%s</td></tr>",
			model.CategoryRules[record.Category].Label, record.HSCode,
			record.OldRate, record.NewRate, effective)
	}
	b.WriteString("</table>")
	for _, record := range records {
		if record.Summary != "" {
			fmt.Fprintf(&b, "<p>%s</p>", record.Summary)
		}
	}
	return b.String()
}

func renderDigestText(sub model.Subscriber, records []model.PendingChangeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily tariff digest for %s\n\n", sub.CompanyName)
	for _, record := range records {
		fmt.Fprintf(&b, "- %s %s: %.2f%% -> %.2f%%\n",
			model.CategoryRules[record.Category].Label, record.HSCode,
			record.OldRate, record.NewRate)
	}
	return b.String()
}
