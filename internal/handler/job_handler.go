package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tariffwatch/internal/detector"
	"tariffwatch/internal/digest"
	"tariffwatch/internal/governor"
	"tariffwatch/internal/poller"
	"tariffwatch/internal/queue"

	"github.com/gin-gonic/gin"
)

type FeedPoller interface {
	PollAll(ctx context.Context) (*poller.Summary, error)
}

type ChangeDetector interface {
	DetectFromRecentItems(ctx context.Context, window time.Duration) (*detector.Report, error)
}

type AutoApplier interface {
	Run() (*governor.Report, error)
}

type DigestRunner interface {
	Run() (*digest.Report, error)
}

type QueueRunner interface {
	ProcessPending(ctx context.Context, limit int) (*queue.Report, error)
	ProcessRetries(ctx context.Context, limit int) (*queue.Report, error)
}

// FeedSyncer loads the seed config and upserts it, returning the number of
// feeds written.
type FeedSyncer func() (int, error)

// JobHandler exposes the scheduled pipeline stages as HTTP triggers. Any
// nil dependency means that stage is not configured (missing provider key
// or mail key) and its trigger answers 503 without side effects.
type JobHandler struct {
	poller    FeedPoller
	detector  ChangeDetector
	governor  AutoApplier
	digest    DigestRunner
	queue     QueueRunner
	syncFeeds FeedSyncer
}

func NewJobHandler(p FeedPoller, d ChangeDetector, g AutoApplier, dg DigestRunner, q QueueRunner, sync FeedSyncer) *JobHandler {
	return &JobHandler{poller: p, detector: d, governor: g, digest: dg, queue: q, syncFeeds: sync}
}

func notConfigured(c *gin.Context, stage string) {
	slog.Error("job trigger for unconfigured stage", "stage", stage)
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": stage + " is not configured"})
}

func (h *JobHandler) PollFeeds(c *gin.Context) {
	if h.poller == nil {
		notConfigured(c, "feed polling")
		return
	}

	summary, err := h.poller.PollAll(c.Request.Context())
	if err != nil {
		slog.Error("poll run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Poll run failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *JobHandler) DetectChanges(c *gin.Context) {
	if h.detector == nil {
		notConfigured(c, "change detection")
		return
	}

	window := 24 * time.Hour
	if hours := getQueryInt("window_hours", 24, c); hours > 0 {
		window = time.Duration(hours) * time.Hour
	}

	report, err := h.detector.DetectFromRecentItems(c.Request.Context(), window)
	if err != nil {
		slog.Error("detection run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Detection run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *JobHandler) AutoApply(c *gin.Context) {
	if h.governor == nil {
		notConfigured(c, "auto apply")
		return
	}

	report, err := h.governor.Run()
	if err != nil {
		slog.Error("auto-apply run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Auto-apply run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *JobHandler) SendDigests(c *gin.Context) {
	if h.digest == nil {
		notConfigured(c, "digest delivery")
		return
	}

	report, err := h.digest.Run()
	if err != nil {
		slog.Error("digest run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Digest run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *JobHandler) ProcessQueue(c *gin.Context) {
	if h.queue == nil {
		notConfigured(c, "queue processing")
		return
	}

	limit := getQueryInt("limit", 50, c)
	if limit < 1 {
		limit = 50
	}

	ctx := c.Request.Context()
	pending, err := h.queue.ProcessPending(ctx, limit)
	if err != nil {
		slog.Error("queue pending pass failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue processing failed"})
		return
	}
	retries, err := h.queue.ProcessRetries(ctx, limit)
	if err != nil {
		slog.Error("queue retry pass failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "retries": retries})
}

func (h *JobHandler) SyncFeeds(c *gin.Context) {
	if h.syncFeeds == nil {
		notConfigured(c, "feed sync")
		return
	}

	synced, err := h.syncFeeds()
	if err != nil {
		slog.Error("feed sync failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Feed sync failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced})
}
