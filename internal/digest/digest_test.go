package digest

import (
	"strings"
	"testing"
	"time"

	"tariffwatch/internal/model"

	"github.com/go-playground/assert/v2"
)

type fakeChangeStore struct {
	records []model.PendingChangeRecord
	marked  []int64
}

func (s *fakeChangeStore) GetUnprocessedSince(since time.Time) ([]model.PendingChangeRecord, error) {
	return s.records, nil
}

func (s *fakeChangeStore) MarkProcessedBatch(ids []int64) error {
	s.marked = append(s.marked, ids...)
	return nil
}

type fakeSubscriberStore struct {
	profiles []model.Subscriber
}

func (s *fakeSubscriberStore) GetAllProfiles() ([]model.Subscriber, error) {
	return s.profiles, nil
}

type fakeMessageStore struct {
	enqueued []*model.OutboundMessage
	logs     []*model.DigestSentLog
}

func (s *fakeMessageStore) Enqueue(msg *model.OutboundMessage) (int64, error) {
	s.enqueued = append(s.enqueued, msg)
	return int64(len(s.enqueued)), nil
}

func (s *fakeMessageStore) SaveDigestLog(log *model.DigestSentLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func electronicsChange() model.PendingChangeRecord {
	return model.PendingChangeRecord{
		ID:       10,
		HSCode:   "854231",
		Category: model.Section301,
		OldRate:  0,
		NewRate:  25,
		Summary:  "Section 301 duty on semiconductor devices raised to 25 percent",
	}
}

func TestRunSendsOneDigestPerAffectedSubscriber(t *testing.T) {
	changes := &fakeChangeStore{records: []model.PendingChangeRecord{electronicsChange()}}
	subs := &fakeSubscriberStore{profiles: []model.Subscriber{
		{
			ID: 1, Email: "buyer@example.com", CompanyName: "Phoenix Electronics",
			Industry: "electronics", NotificationsEnabled: true,
			Preferences: map[string]bool{"section_301": true},
		},
		{
			ID: 2, Email: "optout@example.com", CompanyName: "Maple Mfg",
			Industry: "electronics", NotificationsEnabled: true,
			Preferences: map[string]bool{"section_301": false, "section_232": true},
		},
		{
			ID: 3, Email: "muted@example.com", CompanyName: "Quiet Co",
			Industry: "electronics", NotificationsEnabled: false,
			Preferences: map[string]bool{"section_301": true},
		},
	}}
	messages := &fakeMessageStore{}

	a := New(changes, subs, messages)
	report, err := a.Run()

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ChangesIncluded, 1)
	assert.Equal(t, report.DigestsSent, 1)
	assert.Equal(t, len(messages.enqueued), 1)

	msg := messages.enqueued[0]
	assert.Equal(t, msg.Recipient, "buyer@example.com")
	assert.Equal(t, msg.Category, model.CategoryDigest)
	assert.Equal(t, msg.Priority, 1)
	assert.Equal(t, strings.Contains(msg.TextBody, "854231"), true)

	assert.Equal(t, len(messages.logs), 1)
	assert.Equal(t, messages.logs[0].BatchID, report.BatchID)
	assert.Equal(t, messages.logs[0].SubscriberID, int64(1))
	assert.Equal(t, messages.logs[0].ChangeIDs, []int64{10})
}

func TestRunMarksEveryRecordProcessed(t *testing.T) {
	// No subscriber matches wood products here; the record still leaves
	// the digest pool after the run.
	unmatched := model.PendingChangeRecord{ID: 11, HSCode: "4407", Category: model.Reciprocal, NewRate: 8}
	changes := &fakeChangeStore{records: []model.PendingChangeRecord{electronicsChange(), unmatched}}
	subs := &fakeSubscriberStore{profiles: []model.Subscriber{
		{
			ID: 1, Email: "buyer@example.com", Industry: "electronics",
			NotificationsEnabled: true,
			Preferences:          map[string]bool{"section_301": true},
		},
	}}
	messages := &fakeMessageStore{}

	a := New(changes, subs, messages)
	report, err := a.Run()

	assert.Equal(t, err, nil)
	assert.Equal(t, report.DigestsSent, 1)
	assert.Equal(t, changes.marked, []int64{10, 11})
}

func TestRunEmptyWindow(t *testing.T) {
	changes := &fakeChangeStore{}
	messages := &fakeMessageStore{}

	a := New(changes, &fakeSubscriberStore{}, messages)
	report, err := a.Run()

	assert.Equal(t, err, nil)
	assert.Equal(t, report.ChangesIncluded, 0)
	assert.Equal(t, report.DigestsSent, 0)
	assert.Equal(t, len(changes.marked), 0)
}

func TestRunMembershipIsDeterministic(t *testing.T) {
	profiles := []model.Subscriber{
		{
			ID: 1, Email: "a@example.com", Industry: "electronics",
			NotificationsEnabled: true,
			Preferences:          map[string]bool{"section_301": true},
		},
		{
			ID: 2, Email: "b@example.com",
			SourcingCountries:    []string{"CN"},
			NotificationsEnabled: true,
			Preferences:          map[string]bool{"section_301": true},
		},
	}

	recipientsOf := func() []string {
		changes := &fakeChangeStore{records: []model.PendingChangeRecord{electronicsChange()}}
		messages := &fakeMessageStore{}
		a := New(changes, &fakeSubscriberStore{profiles: profiles}, messages)
		_, err := a.Run()
		assert.Equal(t, err, nil)
		var out []string
		for _, msg := range messages.enqueued {
			out = append(out, msg.Recipient)
		}
		return out
	}

	first := recipientsOf()
	second := recipientsOf()
	assert.Equal(t, first, []string{"a@example.com", "b@example.com"})
	assert.Equal(t, first, second)
}
