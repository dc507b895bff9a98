package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tariffwatch/internal/match"
	"tariffwatch/internal/model"
	"tariffwatch/pkg/llm"
)

const windowScanLimit = 200

type itemStore interface {
	GetItemByID(id int64) (*model.FeedItem, error)
	GetUnparsedItems(since time.Time, limit int) ([]model.FeedItem, error)
	SetParsedPayload(id int64, payload string) (bool, error)
}

type changeStore interface {
	SaveChange(record *model.PendingChangeRecord) error
	GetCurrentRate(hsCode string, category model.TariffCategory) (float64, error)
}

type subscriberStore interface {
	GetAllProfiles() ([]model.Subscriber, error)
}

// Report summarizes one detection run. Errors are per-item notes; they never
// abort the run.
type Report struct {
	ItemsExamined   int           `json:"items_examined"`
	ChangesDetected int           `json:"changes_detected"`
	Errors          []string      `json:"errors,omitempty"`
	Duration        time.Duration `json:"duration"`
}

type Detector struct {
	items     itemStore
	changes   changeStore
	subs      subscriberStore
	extractor llm.Extractor
	popItem   func() (int64, error)
}

// New wires a detector. popItem drains the extract handoff queue; (0, nil)
// means empty. A nil popItem skips the queue and relies on the window scan.
func New(items itemStore, changes changeStore, subs subscriberStore, extractor llm.Extractor, popItem func() (int64, error)) *Detector {
	return &Detector{
		items:     items,
		changes:   changes,
		subs:      subs,
		extractor: extractor,
		popItem:   popItem,
	}
}

// DetectFromRecentItems drains the handoff queue, then window-scans for
// items the queue missed, and extracts rate changes from each exactly once.
func (d *Detector) DetectFromRecentItems(ctx context.Context, window time.Duration) (*Report, error) {
	start := time.Now()
	report := &Report{}

	profiles, err := d.subs.GetAllProfiles()
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var ids []int64

	if d.popItem != nil {
		for {
			id, err := d.popItem()
			if err != nil {
				report.addError(fmt.Sprintf("queue drain: %v", err))
				break
			}
			if id == 0 {
				break
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	recent, err := d.items.GetUnparsedItems(time.Now().Add(-window), windowScanLimit)
	if err != nil {
		return nil, err
	}
	for _, item := range recent {
		if !seen[item.ID] {
			seen[item.ID] = true
			ids = append(ids, item.ID)
		}
	}

	for _, id := range ids {
		item, err := d.items.GetItemByID(id)
		if err != nil {
			report.addError(fmt.Sprintf("item %d: %v", id, err))
			continue
		}
		if item == nil || item.Status == model.ItemStatusParsed {
			continue
		}

		report.ItemsExamined++
		report.ChangesDetected += d.processItem(ctx, item, profiles, report)
	}

	report.Duration = time.Since(start)

	slog.Info("detection run finished",
		"examined", report.ItemsExamined,
		"changes", report.ChangesDetected,
		"errors", len(report.Errors),
		"duration", report.Duration)

	return report, nil
}

// processItem extracts candidates from one item and records every real rate
// delta. The parsed payload is claimed before any record is written so a
// concurrent run cannot double-record the same item.
func (d *Detector) processItem(ctx context.Context, item *model.FeedItem, profiles []model.Subscriber, report *Report) int {
	result, err := d.extractor.ExtractChanges(ctx, item.Title+"\n\n"+item.Description)
	if err != nil {
		report.addError(fmt.Sprintf("item %d: extraction: %v", item.ID, err))
		result = &llm.ExtractResult{}
	}

	payload, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		payload = []byte("{}")
	}

	claimed, err := d.items.SetParsedPayload(item.ID, string(payload))
	if err != nil {
		report.addError(fmt.Sprintf("item %d: mark parsed: %v", item.ID, err))
		return 0
	}
	if !claimed {
		return 0
	}

	if !result.HasTariffChanges {
		return 0
	}

	detected := 0
	for _, candidate := range result.Changes {
		category := model.TariffCategory(candidate.Category)
		if !category.Valid() {
			report.addError(fmt.Sprintf("item %d: unknown category %q", item.ID, candidate.Category))
			continue
		}

		code := model.NormalizeHSCode(candidate.HSCode)
		if code == "" {
			continue
		}

		current, err := d.changes.GetCurrentRate(code, category)
		if err != nil {
			report.addError(fmt.Sprintf("item %d: rate lookup %s: %v", item.ID, code, err))
			continue
		}
		if candidate.NewRate == current {
			continue
		}

		record := &model.PendingChangeRecord{
			HSCode:        code,
			Category:      category,
			OldRate:       current,
			NewRate:       candidate.NewRate,
			EffectiveDate: parseEffectiveDate(candidate.EffectiveDate),
			Confidence:    result.Confidence,
			AffectedCount: len(match.ResolveAffectedSubscribers(category, code, profiles)),
			SourceItemID:  item.ID,
			Summary:       result.Summary,
		}

		if err := d.changes.SaveChange(record); err != nil {
			report.addError(fmt.Sprintf("item %d: save change %s: %v", item.ID, code, err))
			continue
		}
		detected++
	}

	return detected
}

// parseEffectiveDate accepts the date shapes the extraction prompt allows.
// Unparseable dates fall back to zero, meaning "effective on publication".
func parseEffectiveDate(raw string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r *Report) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}
