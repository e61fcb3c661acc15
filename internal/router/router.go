package router

import (
	"context"
	"net/http"
	"time"

	"hively/config"
	"hively/internal/events"
	"hively/internal/handler"
	"hively/internal/middleware"
	"hively/internal/provider"
	"hively/internal/queue"
	"hively/internal/repository"
	"hively/internal/service"
	"hively/internal/worker"
	"hively/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App bundles the wired engine with the pieces main needs for shutdown.
type App struct {
	Engine *gin.Engine
	Queue  *queue.Queue
	Bus    *events.Bus
}

func Setup(cfg *config.Config, db *gorm.DB, logger *zap.SugaredLogger) *App {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Delivery pipeline
	emailProvider := provider.NewEmailProvider(cfg.SendGrid, logger)
	pushProvider := provider.NewPushProvider(context.Background(), cfg.Firebase, logger)
	q := queue.New(cfg.Queue.Concurrency, logger)
	hub := ws.NewHub()
	notifSvc := service.NewNotificationService(notificationRepo, q, hub)
	deliveryWorker := worker.New(notificationRepo, emailProvider, pushProvider, logger)
	q.Process(deliveryWorker.Handle)

	// Domain event bridge
	bus := events.NewBus(logger)
	events.NewBridge(userRepo, notifSvc, logger).Register(bus)

	// Handlers
	notificationHandler := handler.NewNotificationHandler(notifSvc, bus)
	gateway := ws.NewGateway(hub, notifSvc, logger)

	api := r.Group("/api/v1")
	{
		notifications := api.Group("/notifications")
		{
			notifications.POST("", notificationHandler.Create)
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/events", notificationHandler.IngestEvent)
		}
	}
	r.GET("/ws/notifications", gateway.Handle())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &App{Engine: r, Queue: q, Bus: bus}
}
