package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/agent"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/metrics"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/services"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/storage"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/tabular"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

func NewServer(cfg *config.Config, st *store.Store, storageSvc *storage.Service, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // slide templates can be a few MB
	})

	staleAfter := jobs.StaleAfter(cfg)

	// Long-lived domain services shared across requests.
	agentClient := agent.NewClient(cfg.Agent)
	tabClient := tabular.NewClient(cfg.Tabular)

	triggerSvc := services.NewTriggerService(st, agentClient, staleAfter, logger)

	// A nil tabular client must stay a nil interface value inside the
	// status service.
	var tabSource services.TabularSource
	if tabClient != nil {
		tabSource = tabClient
	}
	statusSvc := services.NewStatusService(st, tabSource, staleAfter, logger)

	var uploader services.Uploader
	if storageSvc != nil {
		uploader = storageSvc
	}
	webhookSvc := services.NewWebhookService(cfg.Webhook, cfg.Agent, st, uploader, logger)

	// Inject config, store, and services into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		c.Locals("triggerService", triggerSvc)
		c.Locals("statusService", statusSvc)
		c.Locals("webhookService", webhookSvc)
		if storageSvc != nil {
			c.Locals("storage", storageSvc)
		}
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if logger != nil {
			c.Locals("logger", logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Redis client for rate limiting and health checks
	var rdb *redis.Client
	if cfg.Auth.Enabled && cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check DB and Redis connectivity.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := st.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		storageStatus := "disabled"
		if storageSvc != nil {
			storageStatus = "configured"
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status":  status,
			"db":      dbStatus,
			"redis":   redisStatus,
			"storage": storageStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	// Agent callbacks authenticate with HMAC signatures, not API keys.
	app.Post("/webhooks/lindy", webhookHandler)

	authMw := authMiddleware(cfg, st)
	var rateMw fiber.Handler
	if rdb != nil {
		rateMw = rateLimitMiddleware(cfg, rdb)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1", authMw, rateMw)
	registerV1Routes(v1)

	admin := app.Group("/admin", authMw, adminOnlyMiddleware)
	registerAdminRoutes(admin)

	return &Server{
		app:    app,
		config: cfg,
		store:  st,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

func registerV1Routes(group fiber.Router) {
	group.Post("/presales-report/trigger", triggerReportHandler)
	group.Post("/slides/trigger", triggerSlidesHandler)
	group.Get("/presales-report/status", reportStatusHandler)
	group.Get("/slides/status", slidesStatusHandler)
	group.Get("/events", eventsListHandler)
	group.Post("/events/sync", eventsSyncHandler)
	group.Get("/events/:id", eventDetailHandler)
	group.Post("/files", fileUploadHandler)
	group.Get("/files", filesListHandler)
}

func registerAdminRoutes(group fiber.Router) {
	group.Get("/usage", usageSummaryHandler)
}
