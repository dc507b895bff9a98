package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"tariffwatch/db"
	"tariffwatch/internal/detector"
	"tariffwatch/internal/digest"
	"tariffwatch/internal/feedconf"
	"tariffwatch/internal/governor"
	"tariffwatch/internal/handler"
	"tariffwatch/internal/poller"
	"tariffwatch/internal/queue"
	"tariffwatch/internal/repository"
	"tariffwatch/pkg/feeds"
	"tariffwatch/pkg/llm"
	"tariffwatch/pkg/mailer"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {

	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	err := db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

	redisReady := true
	if err := db.ConnectRedis(); err != nil {
		slog.Warn("redis unavailable, extract handoff disabled", "error", err)
		redisReady = false
	} else {
		defer db.CloseRedis()
	}

	feedRepo := repository.NewFeedRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)
	changeRepo := repository.NewChangeRepository(db.DB)
	subscriberRepo := repository.NewSubscriberRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)

	var scorer llm.Scorer
	var extractor llm.Extractor
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client := llm.NewOpenAIClient(key)
		scorer = client
		extractor = client
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		client := llm.NewAnthropicClient(key)
		scorer = client
		extractor = client
	} else {
		slog.Warn("no completion provider key set, scoring falls back to keywords and change detection is disabled")
	}

	var pushItem func(int64) error
	var popItem func() (int64, error)
	var queueDepth handler.QueueDepth
	if redisReady {
		pushItem = func(id int64) error {
			return db.PushToQueue(db.ExtractQueueKey, strconv.FormatInt(id, 10))
		}
		popItem = func() (int64, error) {
			raw, err := db.PopFromQueue(db.ExtractQueueKey)
			if err != nil || raw == "" {
				return 0, err
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				slog.Error("invalid item id in extract queue", "value", raw, "error", err)
				return 0, nil
			}
			return id, nil
		}
		queueDepth = func() (int64, error) {
			return db.GetQueueLength(db.ExtractQueueKey)
		}
	}

	fetcher := feeds.NewRSSFetcher(&http.Client{Timeout: 30 * time.Second})
	feedPoller := poller.New(feedRepo, alertRepo, subscriberRepo, messageRepo, fetcher, scorer, pushItem)

	var changeDetector handler.ChangeDetector
	if extractor != nil {
		changeDetector = detector.New(feedRepo, changeRepo, subscriberRepo, extractor, popItem)
	}

	autoApplier := governor.New(changeRepo, messageRepo, os.Getenv("OPS_EMAIL"))
	digestRunner := digest.New(changeRepo, subscriberRepo, messageRepo)

	var queueRunner handler.QueueRunner
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		from := os.Getenv("MAIL_FROM")
		queueRunner = queue.New(messageRepo, mailer.NewResendClient(key, from))
	} else {
		slog.Warn("no mail provider key set, queue processing is disabled")
	}

	feedConfigPath := os.Getenv("FEED_CONFIG_PATH")
	if feedConfigPath == "" {
		feedConfigPath = "config/feeds.yaml"
	}
	syncFeeds := func() (int, error) {
		seed, err := feedconf.Load(feedConfigPath)
		if err != nil {
			return 0, err
		}
		return feedconf.Sync(feedRepo, seed)
	}

	jobHandler := handler.NewJobHandler(feedPoller, changeDetector, autoApplier, digestRunner, queueRunner, syncFeeds)
	readHandler := handler.NewReadHandler(alertRepo, changeRepo, feedRepo, messageRepo, queueDepth)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}

	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	jobs := r.Group("/jobs", handler.JobAuth(os.Getenv("JOB_TOKEN")))
	jobs.POST("/poll-feeds", jobHandler.PollFeeds)
	jobs.POST("/detect-changes", jobHandler.DetectChanges)
	jobs.POST("/auto-apply", jobHandler.AutoApply)
	jobs.POST("/send-digests", jobHandler.SendDigests)
	jobs.POST("/process-queue", jobHandler.ProcessQueue)
	jobs.POST("/sync-feeds", jobHandler.SyncFeeds)

	r.GET("/alerts", readHandler.GetAlerts)
	r.POST("/alerts/:id/deactivate", handler.JobAuth(os.Getenv("JOB_TOKEN")), readHandler.DeactivateAlert)
	r.GET("/changes", readHandler.GetChanges)
	r.GET("/feeds", readHandler.GetFeeds)
	r.GET("/queue/stats", readHandler.GetQueueStats)
	r.GET("/health", readHandler.GetHealth)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	err = r.Run(":" + port)
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
