package main

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"taskhive/configs"
	v1 "taskhive/internal/api/v1"
	"taskhive/internal/api/v1/handlers"
	"taskhive/internal/config"
	"taskhive/internal/middleware"
	"taskhive/internal/repository"
	hub "taskhive/internal/websocket"
	"taskhive/pkg/database"
	"taskhive/pkg/logger"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)
	config.ChatKey = cfg.ChatCryptKey

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	logger.SystemLogger.Info("Database Connected")

	repository.CreateTableIfNotExists(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	// Broadcast hub: one room per team, torn down at shutdown.
	config.Hub = hub.NewHub()
	config.Hub.OnChatMessage = handlers.HandleChatMessage
	go config.Hub.Run()
	defer config.Hub.Stop()

	// Nightly recount of the derived statistics rows. The overdue sweep
	// itself stays lazy (read/mutation triggered).
	cr := cron.New()
	cr.AddFunc("0 3 * * *", func() {
		n, err := repository.RebuildAllStats(config.DB)
		if err != nil {
			logger.ErrorLogger.Error("Nightly stats rebuild failed", zap.Error(err))
			return
		}
		logger.SystemLogger.Info("Nightly stats rebuild done", zap.Int("users", n))
	})
	cr.Start()
	defer cr.Stop()

	app := fiber.New()

	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app)

	// WebSocket endpoint for the realtime channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := &hub.Client{ID: uuid.NewString(), Conn: c}
		config.Hub.ServeClient(client)
	}))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
