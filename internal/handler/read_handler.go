package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tariffwatch/internal/model"

	"github.com/gin-gonic/gin"
)

type AlertStore interface {
	GetActiveAlerts(limit, offset int) ([]model.CrisisAlert, error)
	SetAlertActive(id int64, active bool) error
}

type ChangeStore interface {
	ListChanges(processed *bool, limit, offset int) ([]model.PendingChangeRecord, error)
}

type FeedStore interface {
	GetActiveFeeds() ([]model.Feed, error)
}

type QueueStatsStore interface {
	GetQueueStats() (map[string]int, error)
}

// QueueDepth reports the extract handoff queue length; nil when redis is
// not configured.
type QueueDepth func() (int64, error)

type ReadHandler struct {
	alerts     AlertStore
	changes    ChangeStore
	feeds      FeedStore
	queueStats QueueStatsStore
	queueDepth QueueDepth
}

func NewReadHandler(alerts AlertStore, changes ChangeStore, feeds FeedStore, queueStats QueueStatsStore, queueDepth QueueDepth) *ReadHandler {
	return &ReadHandler{
		alerts:     alerts,
		changes:    changes,
		feeds:      feeds,
		queueStats: queueStats,
		queueDepth: queueDepth,
	}
}

func (h *ReadHandler) GetAlerts(c *gin.Context) {
	limit := getQueryLimit(c)
	offset := getQueryOffset(c)

	alerts, err := h.alerts.GetActiveAlerts(limit, offset)
	if err != nil {
		slog.Error("error fetching alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := AlertsResponse{Limit: limit, Offset: offset}
	for _, alert := range alerts {
		res.Alerts = append(res.Alerts, AlertResponse{
			ID:                 alert.ID,
			FeedItemID:         alert.FeedItemID,
			Severity:           alert.Severity,
			Title:              alert.Title,
			Summary:            alert.Summary,
			RecommendedActions: alert.RecommendedActions,
			CreatedAt:          alert.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, res)
}

// DeactivateAlert retires an alert from the active list once the situation
// is resolved. Alerts are never deleted.
func (h *ReadHandler) DeactivateAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := h.alerts.SetAlertActive(id, false); err != nil {
		slog.Error("error deactivating alert", "alert_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}

func (h *ReadHandler) GetChanges(c *gin.Context) {
	limit := getQueryLimit(c)
	offset := getQueryOffset(c)

	var processed *bool
	if raw := c.Query("processed"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid processed filter"})
			return
		}
		processed = &value
	}

	changes, err := h.changes.ListChanges(processed, limit, offset)
	if err != nil {
		slog.Error("error fetching changes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := ChangesResponse{Limit: limit, Offset: offset}
	for _, change := range changes {
		item := ChangeResponse{
			ID:            change.ID,
			HSCode:        change.HSCode,
			Category:      string(change.Category),
			OldRate:       change.OldRate,
			NewRate:       change.NewRate,
			Confidence:    change.Confidence,
			AffectedCount: change.AffectedCount,
			Summary:       change.Summary,
			Processed:     change.Processed,
			CreatedAt:     change.CreatedAt.Format(time.RFC3339),
		}
		if !change.EffectiveDate.IsZero() {
			item.EffectiveDate = change.EffectiveDate.Format("2006-01-02")
		}
		res.Changes = append(res.Changes, item)
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReadHandler) GetFeeds(c *gin.Context) {
	feeds, err := h.feeds.GetActiveFeeds()
	if err != nil {
		slog.Error("error fetching feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := FeedsResponse{}
	for _, feed := range feeds {
		item := FeedStatusResponse{
			ID:                  feed.ID,
			Key:                 feed.Key,
			URL:                 feed.URL,
			Country:             feed.Country,
			Priority:            feed.Priority,
			ConsecutiveFailures: feed.ConsecutiveFailures,
		}
		if !feed.LastCheckedAt.IsZero() {
			item.LastCheckedAt = feed.LastCheckedAt.Format(time.RFC3339)
		}
		if !feed.LastSuccessAt.IsZero() {
			item.LastSuccessAt = feed.LastSuccessAt.Format(time.RFC3339)
		}
		if !feed.LastItemAt.IsZero() {
			item.LastItemAt = feed.LastItemAt.Format(time.RFC3339)
		}
		res.Feeds = append(res.Feeds, item)
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReadHandler) GetQueueStats(c *gin.Context) {
	counts, err := h.queueStats.GetQueueStats()
	if err != nil {
		slog.Error("error fetching queue stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := QueueStatsResponse{Counts: counts}
	if h.queueDepth != nil {
		depth, err := h.queueDepth()
		if err != nil {
			slog.Warn("error fetching extract queue depth", "error", err)
		} else {
			res.Depth = depth
		}
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReadHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func getQueryLimit(c *gin.Context) int {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)

	limit := getQueryInt("limit", defaultLimit, c)
	if limit < 1 {
		slog.Warn("invalid query parameter, using default", "param", "limit", "value", limit, "default", defaultLimit)
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func getQueryOffset(c *gin.Context) int {
	offset := getQueryInt("offset", 0, c)
	if offset < 0 {
		slog.Warn("invalid query parameter, using default", "param", "offset", "value", offset, "default", 0)
		return 0
	}
	return offset
}

func getQueryInt(name string, fallback int, c *gin.Context) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid query parameter, using default", "param", name, "value", raw, "default", fallback)
		return fallback
	}
	return value
}
