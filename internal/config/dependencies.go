package config

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	"taskhive/internal/websocket"
)

var (
	// Process-scoped dependencies shared across the application.
	// Initialized at startup, torn down at shutdown.
	DB          *sql.DB
	SecretKey   = []byte("secret")
	ChatKey     = "TaskhiveChatAtRestKey!"
	Validate    = validator.New()
	Ctx         = context.Background()
	RedisClient *redis.Client
	Hub         *websocket.Hub
)
