package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"taskhive/internal/config"
	"taskhive/internal/models"
	"taskhive/internal/repository"
	"taskhive/pkg/logger"
)

// Personal task handlers. Tasks are scoped by the caller's email and
// addressed by task_name within that scope.

// validStatus reports whether the status is one of the five allowed values:
// incomplete, in_progress, complete, overdue, on_hold.
func validStatus(status string) bool {
	switch status {
	case "incomplete", "in_progress", "complete", "overdue", "on_hold":
		return true
	default:
		return false
	}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// CreateTask creates a personal task, or a team task when team_id is set
// (the board posts to the same endpoint in team mode).
func CreateTask(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type TaskRequest struct {
		TaskName    string  `json:"task_name" validate:"required"`
		DueDate     *string `json:"due_date"`
		Description *string `json:"description"`
		TeamID      *int    `json:"team_id"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if strings.TrimSpace(req.TaskName) == "" {
		logger.ErrorLogger.Error("Invalid task title in create task")
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task title",
			"success": false,
			"status":  400,
		})
	}

	// Team mode: same endpoint, team scope, no assignees.
	if req.TeamID != nil {
		return createTaskInTeam(c, email, *req.TeamID, req.TaskName, req.DueDate, req.Description)
	}

	var taskID int
	err := config.DB.QueryRow(
		`INSERT INTO tasks (email, task_name, status, due_date, description)
		 VALUES ($1, $2, 'incomplete', $3, $4) RETURNING id`,
		email, req.TaskName, req.DueDate, req.Description,
	).Scan(&taskID)
	if err != nil {
		if isUniqueViolation(err) {
			logger.AuditLogger.Warn("Duplicate task name", zap.String("task_name", req.TaskName))
			return c.Status(409).JSON(fiber.Map{
				"message": "Task already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	repository.AfterPersonalMutation(config.DB, email)

	logger.AuditLogger.Info("Task created", zap.Int("task_id", taskID), zap.String("email", email))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created",
		"success": true,
		"status":  201,
		"id":      taskID,
	})
}

// ListTasks returns the caller's personal tasks newest-created-first. The
// overdue sweep runs before the read so stale statuses never leave the server.
func ListTasks(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	if err := repository.SweepOverduePersonal(config.DB, email); err != nil {
		logger.ErrorLogger.Error("Overdue sweep failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}

	rows, err := config.DB.Query(
		`SELECT id, task_name, status, due_date, description, date_created, date_completed
		 FROM tasks WHERE email = $1 ORDER BY date_created DESC`,
		email,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		err := rows.Scan(&task.ID, &task.TaskName, &task.Status, &task.DueDate,
			&task.Description, &task.DateCreated, &task.DateCompleted)
		if err != nil {
			logger.ErrorLogger.Error("Error scanning tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning tasks",
				"success": false,
				"status":  500,
			})
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over tasks",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Tasks fetched",
		"success": true,
		"status":  200,
		"tasks":   tasks,
	})
}

// UpdateTaskStatus moves a task to a new status. Overdue is derived state and
// can never be requested directly.
func UpdateTaskStatus(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type UpdateRequest struct {
		TaskName string `json:"task_name" validate:"required"`
		Status   string `json:"status" validate:"required"`
	}

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in update task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if req.Status == "overdue" {
		logger.AuditLogger.Warn("Manual overdue attempt", zap.String("email", email), zap.String("task_name", req.TaskName))
		return c.Status(400).JSON(fiber.Map{
			"message": "Cannot manually set status to overdue",
			"success": false,
			"status":  400,
		})
	}
	if !validStatus(req.Status) {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid status",
			"success": false,
			"status":  400,
		})
	}

	res, err := config.DB.Exec(
		`UPDATE tasks
		 SET status = $1,
		     date_completed = CASE WHEN $1 = 'complete' THEN CURRENT_TIMESTAMP ELSE NULL END
		 WHERE email = $2 AND task_name = $3`,
		req.Status, email, req.TaskName,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	repository.AfterPersonalMutation(config.DB, email)

	logger.AuditLogger.Info("Status updated", zap.String("task_name", req.TaskName), zap.String("status", req.Status))
	return c.JSON(fiber.Map{
		"message": "Status updated",
		"success": true,
		"status":  200,
	})
}

// EditTask renames, reschedules or redescribes a task. Editing an overdue
// task demotes it back to incomplete; any other status is left untouched.
func EditTask(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type EditRequest struct {
		OriginalName string  `json:"original_name" validate:"required"`
		NewName      string  `json:"new_name" validate:"required"`
		DueDate      *string `json:"due_date"`
		Description  *string `json:"description"`
	}

	var req EditRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in edit task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in edit task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	res, err := config.DB.Exec(
		`UPDATE tasks
		 SET task_name = $1,
		     due_date = $2,
		     description = $3,
		     status = CASE WHEN status = 'overdue' THEN 'incomplete' ELSE status END
		 WHERE email = $4 AND task_name = $5`,
		req.NewName, req.DueDate, req.Description, email, req.OriginalName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return c.Status(409).JSON(fiber.Map{
				"message": "Task already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error editing task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error editing task",
			"success": false,
			"status":  500,
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	repository.AfterPersonalMutation(config.DB, email)

	logger.AuditLogger.Info("Task edited", zap.String("original_name", req.OriginalName), zap.String("new_name", req.NewName))
	return c.JSON(fiber.Map{
		"message": "Task updated",
		"success": true,
		"status":  200,
	})
}

// DeleteTask removes a personal task by name.
func DeleteTask(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type DeleteRequest struct {
		TaskName string `json:"task_name" validate:"required"`
	}

	var req DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in delete task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	res, err := config.DB.Exec(
		"DELETE FROM tasks WHERE email = $1 AND task_name = $2",
		email, req.TaskName,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	repository.AfterPersonalMutation(config.DB, email)

	logger.AuditLogger.Info("Task deleted", zap.String("task_name", req.TaskName), zap.String("email", email))
	return c.JSON(fiber.Map{
		"message": "Task deleted",
		"success": true,
		"status":  200,
	})
}
