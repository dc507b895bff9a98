package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"tariffwatch/internal/model"
	"tariffwatch/pkg/llm"

	"github.com/go-playground/assert/v2"
)

type fakeItemStore struct {
	items    map[int64]*model.FeedItem
	unparsed []model.FeedItem
	parsed   map[int64]string
}

func (s *fakeItemStore) GetItemByID(id int64) (*model.FeedItem, error) {
	return s.items[id], nil
}

func (s *fakeItemStore) GetUnparsedItems(since time.Time, limit int) ([]model.FeedItem, error) {
	return s.unparsed, nil
}

func (s *fakeItemStore) SetParsedPayload(id int64, payload string) (bool, error) {
	if s.parsed == nil {
		s.parsed = map[int64]string{}
	}
	if _, done := s.parsed[id]; done {
		return false, nil
	}
	s.parsed[id] = payload
	return true, nil
}

type fakeChangeStore struct {
	rates map[string]float64
	saved []*model.PendingChangeRecord
}

func rateKey(code string, category model.TariffCategory) string {
	return code + "|" + string(category)
}

func (s *fakeChangeStore) GetCurrentRate(code string, category model.TariffCategory) (float64, error) {
	return s.rates[rateKey(code, category)], nil
}

func (s *fakeChangeStore) SaveChange(record *model.PendingChangeRecord) error {
	s.saved = append(s.saved, record)
	return nil
}

type fakeSubscriberStore struct {
	profiles []model.Subscriber
}

func (s *fakeSubscriberStore) GetAllProfiles() ([]model.Subscriber, error) {
	return s.profiles, nil
}

type fakeExtractor struct {
	byText func(text string) *llm.ExtractResult
	calls  int
}

func (f *fakeExtractor) ExtractChanges(ctx context.Context, text string) (*llm.ExtractResult, error) {
	f.calls++
	if f.byText != nil {
		return f.byText(text), nil
	}
	return nil, errors.New("no result configured")
}

func scoredItem(id int64, title string) *model.FeedItem {
	return &model.FeedItem{
		ID:     id,
		Title:  title,
		Status: model.ItemStatusScored,
	}
}

func extractorFor(result *llm.ExtractResult) *fakeExtractor {
	return &fakeExtractor{byText: func(string) *llm.ExtractResult { return result }}
}

func queueOf(ids ...int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		if i >= len(ids) {
			return 0, nil
		}
		id := ids[i]
		i++
		return id, nil
	}
}

func TestDetectRecordsRateDelta(t *testing.T) {
	items := &fakeItemStore{items: map[int64]*model.FeedItem{
		7: scoredItem(7, "Section 301 duty on electronics raised to 25 percent"),
	}}
	changes := &fakeChangeStore{}
	subs := &fakeSubscriberStore{profiles: []model.Subscriber{
		{ID: 1, Industry: "electronics", NotificationsEnabled: true},
	}}
	extractor := extractorFor(&llm.ExtractResult{
		HasTariffChanges: true,
		Confidence:       0.95,
		Summary:          "Duty on HS 8542 raised from 0 to 25 percent",
		Changes: []llm.CandidateChange{
			{Category: "section_301", HSCode: "8542.31", NewRate: 25},
		},
	})

	d := New(items, changes, subs, extractor, queueOf(7))
	report, err := d.DetectFromRecentItems(context.Background(), 24*time.Hour)

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ItemsExamined, 1)
	assert.Equal(t, report.ChangesDetected, 1)
	assert.Equal(t, len(changes.saved), 1)

	record := changes.saved[0]
	assert.Equal(t, record.HSCode, "854231")
	assert.Equal(t, record.Category, model.Section301)
	assert.Equal(t, record.OldRate, 0.0)
	assert.Equal(t, record.NewRate, 25.0)
	assert.Equal(t, record.Confidence, 0.95)
	assert.Equal(t, record.AffectedCount, 1)
	assert.Equal(t, record.SourceItemID, int64(7))
}

func TestDetectSkipsUnchangedRate(t *testing.T) {
	items := &fakeItemStore{items: map[int64]*model.FeedItem{
		7: scoredItem(7, "Reminder: existing Section 301 rates remain in force"),
	}}
	changes := &fakeChangeStore{rates: map[string]float64{
		rateKey("854231", model.Section301): 25,
	}}
	extractor := extractorFor(&llm.ExtractResult{
		HasTariffChanges: true,
		Confidence:       0.9,
		Changes: []llm.CandidateChange{
			{Category: "section_301", HSCode: "8542.31", NewRate: 25},
		},
	})

	d := New(items, changes, &fakeSubscriberStore{}, extractor, queueOf(7))
	report, err := d.DetectFromRecentItems(context.Background(), 24*time.Hour)

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ChangesDetected, 0)
	assert.Equal(t, len(changes.saved), 0)
	// Item is still marked parsed so it is not re-examined next run.
	assert.Equal(t, items.parsed[7] != "", true)
}

func TestDetectExtractionFailureMarksParsed(t *testing.T) {
	items := &fakeItemStore{items: map[int64]*model.FeedItem{
		3: scoredItem(3, "Notice text the model could not follow"),
	}}
	changes := &fakeChangeStore{}
	extractor := &fakeExtractor{}

	d := New(items, changes, &fakeSubscriberStore{}, extractor, queueOf(3))
	report, err := d.DetectFromRecentItems(context.Background(), 24*time.Hour)

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ChangesDetected, 0)
	assert.Equal(t, len(report.Errors), 1)
	assert.Equal(t, items.parsed[3] != "", true)
}

func TestDetectDedupsQueueAndWindowScan(t *testing.T) {
	item := scoredItem(5, "Section 232 aluminum duty adjusted")
	items := &fakeItemStore{
		items:    map[int64]*model.FeedItem{5: item},
		unparsed: []model.FeedItem{*item},
	}
	changes := &fakeChangeStore{}
	extractor := extractorFor(&llm.ExtractResult{
		HasTariffChanges: true,
		Confidence:       0.8,
		Changes: []llm.CandidateChange{
			{Category: "section_232", HSCode: "7601", NewRate: 10},
		},
	})

	d := New(items, changes, &fakeSubscriberStore{}, extractor, queueOf(5))
	report, err := d.DetectFromRecentItems(context.Background(), 24*time.Hour)

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ItemsExamined, 1)
	assert.Equal(t, extractor.calls, 1)
	assert.Equal(t, len(changes.saved), 1)
}

func TestDetectInvalidCategoryReported(t *testing.T) {
	items := &fakeItemStore{items: map[int64]*model.FeedItem{
		9: scoredItem(9, "Ambiguous notice"),
	}}
	changes := &fakeChangeStore{}
	extractor := extractorFor(&llm.ExtractResult{
		HasTariffChanges: true,
		Confidence:       0.9,
		Changes: []llm.CandidateChange{
			{Category: "section_999", HSCode: "8542", NewRate: 12},
		},
	})

	d := New(items, changes, &fakeSubscriberStore{}, extractor, queueOf(9))
	report, err := d.DetectFromRecentItems(context.Background(), 24*time.Hour)

	assert.Equal(t, err, nil)
	assert.Equal(t, len(changes.saved), 0)
	assert.Equal(t, len(report.Errors), 1)
}

func TestDetectSkipsAlreadyParsedItems(t *testing.T) {
	items := &fakeItemStore{items: map[int64]*model.FeedItem{
		4: {ID: 4, Title: "Old notice", Status: model.ItemStatusParsed},
	}}
	extractor := &fakeExtractor{}

	d := New(items, &fakeChangeStore{}, &fakeSubscriberStore{}, extractor, queueOf(4))
	report, err := d.DetectFromRecentItems(context.Background(), 24*time.Hour)

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ItemsExamined, 0)
	assert.Equal(t, extractor.calls, 0)
}
