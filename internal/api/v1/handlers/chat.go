package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskhive/internal/config"
	"taskhive/internal/models"
	"taskhive/pkg/crypto"
	"taskhive/pkg/logger"
)

// Chat and activity-feed handlers. Chat bodies are AES-encrypted at rest;
// the wire always carries plaintext.

// GetChatHistory returns a team's recent chat oldest-first. The window is the
// newest 100 rows so a reconnecting client always sees what it missed.
func GetChatHistory(c *fiber.Ctx) error {
	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	rows, err := config.DB.Query(
		`SELECT sender_email, message, sent_at FROM (
		     SELECT sender_email, message, sent_at FROM team_chat
		     WHERE team_id = $1 ORDER BY sent_at DESC LIMIT 100
		 ) recent ORDER BY sent_at ASC`,
		teamID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching chat history", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching chat history",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.SenderEmail, &msg.Message, &msg.SentAt); err != nil {
			logger.ErrorLogger.Error("Error scanning chat history", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning chat history",
				"success": false,
				"status":  500,
			})
		}
		plaintext, err := crypto.Decrypt(msg.Message, config.ChatKey)
		if err != nil {
			logger.ErrorLogger.Error("Error decrypting chat message", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching chat history",
				"success": false,
				"status":  500,
			})
		}
		msg.Message = plaintext
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over chat history", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over chat history",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Chat history fetched",
		"success":  true,
		"status":   200,
		"messages": messages,
	})
}

// GetActivityLog returns a team's latest activity entries, newest first,
// bounded to the last 50.
func GetActivityLog(c *fiber.Ctx) error {
	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	rows, err := config.DB.Query(
		`SELECT actor_email, action, target, destination, created_at
		 FROM team_activity_log WHERE team_id = $1
		 ORDER BY created_at DESC LIMIT 50`,
		teamID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching activity log", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching activity log",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	logs := []models.ActivityEntry{}
	for rows.Next() {
		var entry models.ActivityEntry
		if err := rows.Scan(&entry.ActorEmail, &entry.Action, &entry.Target, &entry.Destination, &entry.CreatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning activity log", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning activity log",
				"success": false,
				"status":  500,
			})
		}
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over activity log", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over activity log",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Activity log fetched",
		"success": true,
		"status":  200,
		"logs":    logs,
	})
}

// HandleChatMessage persists an inbound chat message and, only on success,
// broadcasts it to the team's room. A failed insert suppresses the broadcast
// so subscribers never see state that was not stored.
func HandleChatMessage(teamID int, email, message string) {
	if teamID == 0 || email == "" || strings.TrimSpace(message) == "" {
		return
	}

	encrypted, err := crypto.Encrypt(message, config.ChatKey)
	if err != nil {
		logger.ErrorLogger.Error("Error encrypting chat message", zap.Error(err))
		return
	}

	var sentAt time.Time
	err = config.DB.QueryRow(
		`INSERT INTO team_chat (team_id, sender_email, message)
		 VALUES ($1, $2, $3) RETURNING sent_at`,
		teamID, email, encrypted,
	).Scan(&sentAt)
	if err != nil {
		logger.ErrorLogger.Error("Error persisting chat message", zap.Int("team_id", teamID), zap.Error(err))
		return
	}

	if config.Hub != nil {
		config.Hub.Emit(teamID, "new_message", models.ChatMessage{
			SenderEmail: email,
			Message:     message,
			SentAt:      sentAt,
		})
	}

	logger.AuditLogger.Info("Chat message sent", zap.Int("team_id", teamID), zap.String("sender", email))
}
