package governor

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tariffwatch/internal/model"
)

// AutoApplyThreshold is the minimum extraction confidence for a pending
// change to reach the rate cache without human review.
const AutoApplyThreshold = 0.90

// RateSourceAutoApply marks cache rows written by this job so reviewers can
// tell them from manually verified entries.
const RateSourceAutoApply = "auto_apply"

type changeStore interface {
	GetUnprocessedWithConfidence(minConfidence float64) ([]model.PendingChangeRecord, error)
	UpsertRate(entry *model.RateCacheEntry) error
	MarkProcessed(id int64) (bool, error)
}

type messageStore interface {
	Enqueue(msg *model.OutboundMessage) (int64, error)
}

// AppliedChange is one audit line in the run report.
type AppliedChange struct {
	HSCode   string               `json:"hs_code"`
	Category model.TariffCategory `json:"category"`
	OldRate  float64              `json:"old_rate"`
	NewRate  float64              `json:"new_rate"`
}

type Report struct {
	Applied  int             `json:"applied"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors,omitempty"`
	Changes  []AppliedChange `json:"changes,omitempty"`
	Duration time.Duration   `json:"duration"`
}

type Governor struct {
	changes  changeStore
	messages messageStore
	opsEmail string
}

// New wires the auto-apply governor. opsEmail receives the run summary; an
// empty address disables the summary email.
func New(changes changeStore, messages messageStore, opsEmail string) *Governor {
	return &Governor{changes: changes, messages: messages, opsEmail: opsEmail}
}

// Run applies every high-confidence pending change to the rate cache and
// marks it processed. The processed flag is the claim: a row another run
// already flipped is skipped, so concurrent runs apply each change once.
func (g *Governor) Run() (*Report, error) {
	start := time.Now()
	report := &Report{}

	records, err := g.changes.GetUnprocessedWithConfidence(AutoApplyThreshold)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		entry := &model.RateCacheEntry{
			HSCode:   record.HSCode,
			Category: record.Category,
			Rate:     record.NewRate,
			Source:   RateSourceAutoApply,
			Verified: false,
		}
		if err := g.changes.UpsertRate(entry); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("change %d: upsert %s: %v", record.ID, record.HSCode, err))
			continue
		}

		claimed, err := g.changes.MarkProcessed(record.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("change %d: mark processed: %v", record.ID, err))
			continue
		}
		if !claimed {
			// Another run already applied this one; the cache upsert above
			// wrote the same rate, so nothing to undo.
			report.Skipped++
			continue
		}

		report.Applied++
		report.Changes = append(report.Changes, AppliedChange{
			HSCode:   record.HSCode,
			Category: record.Category,
			OldRate:  record.OldRate,
			NewRate:  record.NewRate,
		})
	}

	report.Duration = time.Since(start)

	slog.Info("auto-apply run finished",
		"applied", report.Applied,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
		"duration", report.Duration)

	g.sendSummary(report)

	return report, nil
}

func (g *Governor) sendSummary(report *Report) {
	if g.opsEmail == "" {
		slog.Warn("no ops email configured, skipping auto-apply summary")
		return
	}

	msg := &model.OutboundMessage{
		Recipient: g.opsEmail,
		Subject:   fmt.Sprintf("Auto-apply run: %d applied, %d skipped, %d errors", report.Applied, report.Skipped, len(report.Errors)),
		HTMLBody:  renderSummaryHTML(report),
		TextBody:  renderSummaryText(report),
		Category:  model.CategoryOperational,
		Priority:  3,
	}
	if _, err := g.messages.Enqueue(msg); err != nil {
		slog.Error("failed to enqueue auto-apply summary", "error", err)
	}
}

func renderSummaryHTML(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Auto-apply summary</h2><p>Applied: %d, skipped: %d, errors: %d</p>",
		report.Applied, report.Skipped, len(report.Errors))
	if len(report.Changes) > 0 {
		b.WriteString("<ul>")
		for _, change := range report.Changes {
			fmt.Fprintf(&b, "<li>%s %s: %.2f%% &rarr; %.2f%%</li>",
				change.Category, change.HSCode, change.OldRate, change.NewRate)
		}
		b.WriteString("</ul>")
	}
	if len(report.Errors) > 0 {
		b.WriteString("<h3>Errors</h3><ul>")
		for _, e := range report.Errors {
			fmt.Fprintf(&b, "<li>%s</li>", e)
		}
		b.WriteString("</ul>")
	}
	return b.String()
}

func renderSummaryText(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Auto-apply summary\nApplied: %d, skipped: %d, errors: %d\n",
		report.Applied, report.Skipped, len(report.Errors))
	for _, change := range report.Changes {
		fmt.Fprintf(&b, "- %s %s: %.2f%% -> %.2f%%\n",
			change.Category, change.HSCode, change.OldRate, change.NewRate)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(&b, "! %s\n", e)
	}
	return b.String()
}
