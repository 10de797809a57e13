package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskhive/internal/config"
	"taskhive/internal/models"
	"taskhive/internal/repository"
	"taskhive/pkg/logger"
)

// GetUserStats returns the caller's five-bucket status counts, zero-valued
// when no summary row exists yet. The row is served from Redis when cached;
// every mutation side effect invalidates that entry.
func GetUserStats(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	cacheKey := repository.StatsCacheKey(email)
	if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil {
		var stats models.UserStats
		if err = json.Unmarshal([]byte(cached), &stats); err == nil {
			return c.JSON(stats)
		}
	}

	stats, err := repository.GetStats(config.DB, email)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user stats", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching user stats",
			"success": false,
			"status":  500,
		})
	}

	if statsJSON, err := json.Marshal(stats); err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, statsJSON, time.Hour)
	}

	// Buckets are the top-level response body; the chart consumes it directly.
	return c.JSON(stats)
}

// RebuildStats recounts every user's statistics row from the tasks table.
// Recovery endpoint for when the derived cache has drifted.
func RebuildStats(c *fiber.Ctx) error {
	rebuilt, err := repository.RebuildAllStats(config.DB)
	if err != nil {
		logger.ErrorLogger.Error("Error rebuilding stats", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error rebuilding stats",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Stats rebuilt", zap.Int("users", rebuilt))
	return c.JSON(fiber.Map{
		"message": "Stats rebuilt",
		"success": true,
		"status":  200,
		"rebuilt": rebuilt,
	})
}
