package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskhive/internal/config"
	"taskhive/internal/models"
	"taskhive/internal/repository"
	"taskhive/pkg/logger"
)

// Team task handlers. Mutations write an activity-log entry and broadcast
// to the team's room; consumers re-fetch rather than trusting the
// new_activity payload alone.

// broadcastActivity emits a new_activity event to the team's room. Broadcast
// failure never fails the request; clients fall back to plain fetches.
func broadcastActivity(teamID int, actor, action, target string, destination *string) {
	if config.Hub == nil {
		return
	}
	payload := fiber.Map{
		"team_id":     teamID,
		"actor_email": actor,
		"action":      action,
		"target":      target,
	}
	if destination != nil {
		payload["destination"] = *destination
	}
	config.Hub.Emit(teamID, "new_activity", payload)
}

// createTeamTaskTx inserts a team task plus its assignee rows in a single
// transaction. A failed assignee insert rolls the task back too, so no
// orphaned task row can survive a partial failure.
func createTeamTaskTx(teamID int, actor, taskName string, dueDate, description *string, assignees []string) (int, error) {
	tx, err := config.DB.Begin()
	if err != nil {
		return 0, err
	}

	var taskID int
	err = tx.QueryRow(
		`INSERT INTO tasks (team_id, task_name, status, due_date, description, assigned_by)
		 VALUES ($1, $2, 'incomplete', $3, $4, $5) RETURNING id`,
		teamID, taskName, dueDate, description, actor,
	).Scan(&taskID)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	for _, assignee := range assignees {
		if _, err := tx.Exec(
			"INSERT INTO task_assignees (task_id, email) VALUES ($1, $2)",
			taskID, assignee,
		); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return taskID, nil
}

// createTaskInTeam finishes a POST /api/tasks request that carried a team_id.
func createTaskInTeam(c *fiber.Ctx, email string, teamID int, taskName string, dueDate, description *string) error {
	member, _, err := repository.IsTeamMember(config.DB, teamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}
	if !member {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	taskID, err := createTeamTaskTx(teamID, email, taskName, dueDate, description, nil)
	if err != nil {
		if isUniqueViolation(err) {
			return c.Status(409).JSON(fiber.Map{
				"message": "Task already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating team task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	if err := repository.LogActivity(config.DB, teamID, email, "created_task", taskName, nil); err != nil {
		logger.ErrorLogger.Error("Error logging activity", zap.Error(err))
	}
	repository.AfterTeamMutation(config.DB, teamID, email)
	broadcastActivity(teamID, email, "created_task", taskName, nil)

	logger.AuditLogger.Info("Team task created", zap.Int("task_id", taskID), zap.Int("team_id", teamID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created",
		"success": true,
		"status":  201,
		"id":      taskID,
	})
}

// CreateTeamTask creates a team task with assignees. Admin only; the board
// only offers the form to admins and the server enforces the same rule.
func CreateTeamTask(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type TeamTaskRequest struct {
		TeamID      int      `json:"team_id" validate:"required"`
		TaskName    string   `json:"task_name" validate:"required"`
		DueDate     *string  `json:"due_date"`
		Description *string  `json:"description"`
		AssignedTo  []string `json:"assigned_to" validate:"dive,email"`
	}

	var req TeamTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create team task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create team task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if strings.TrimSpace(req.TaskName) == "" {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task title",
			"success": false,
			"status":  400,
		})
	}

	member, role, err := repository.IsTeamMember(config.DB, req.TeamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}
	if !member || role != "admin" {
		logger.SecurityLogger.Warn("Non-admin team task create", zap.Int("team_id", req.TeamID), zap.String("email", email))
		return c.Status(403).JSON(fiber.Map{
			"message": "Only team admins can create tasks",
			"success": false,
			"status":  403,
		})
	}

	taskID, err := createTeamTaskTx(req.TeamID, email, req.TaskName, req.DueDate, req.Description, req.AssignedTo)
	if err != nil {
		if isUniqueViolation(err) {
			return c.Status(409).JSON(fiber.Map{
				"message": "Task already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating team task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	if err := repository.LogActivity(config.DB, req.TeamID, email, "created_task", req.TaskName, nil); err != nil {
		logger.ErrorLogger.Error("Error logging activity", zap.Error(err))
	}
	repository.AfterTeamMutation(config.DB, req.TeamID, email)
	broadcastActivity(req.TeamID, email, "created_task", req.TaskName, nil)

	logger.AuditLogger.Info("Team task created", zap.Int("task_id", taskID),
		zap.Int("team_id", req.TeamID), zap.Int("assignees", len(req.AssignedTo)))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created",
		"success": true,
		"status":  201,
		"id":      taskID,
	})
}

// ListTeamTasks returns a team's tasks newest-created-first with their
// assignee rows, after the overdue sweep. Members only.
func ListTeamTasks(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	member, _, err := repository.IsTeamMember(config.DB, teamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}
	if !member {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	if err := repository.SweepOverdueTeam(config.DB, teamID); err != nil {
		logger.ErrorLogger.Error("Overdue sweep failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}

	rows, err := config.DB.Query(
		`SELECT id, team_id, task_name, status, due_date, description, assigned_by, date_created, date_completed
		 FROM tasks WHERE team_id = $1 ORDER BY date_created DESC`,
		teamID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching team tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	tasks := []models.TeamTask{}
	for rows.Next() {
		var task models.TeamTask
		err := rows.Scan(&task.ID, &task.TeamID, &task.TaskName, &task.Status, &task.DueDate,
			&task.Description, &task.AssignedBy, &task.DateCreated, &task.DateCompleted)
		if err != nil {
			logger.ErrorLogger.Error("Error scanning team tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning tasks",
				"success": false,
				"status":  500,
			})
		}
		task.AssignedTo = []models.Assignee{}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over team tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over tasks",
			"success": false,
			"status":  500,
		})
	}

	for i := range tasks {
		aRows, err := config.DB.Query(
			"SELECT email, completed FROM task_assignees WHERE task_id = $1 ORDER BY email",
			tasks[i].ID,
		)
		if err != nil {
			logger.ErrorLogger.Error("Error fetching assignees", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching tasks",
				"success": false,
				"status":  500,
			})
		}
		for aRows.Next() {
			var a models.Assignee
			if err := aRows.Scan(&a.Email, &a.Completed); err != nil {
				aRows.Close()
				logger.ErrorLogger.Error("Error scanning assignees", zap.Error(err))
				return c.Status(500).JSON(fiber.Map{
					"message": "Error fetching tasks",
					"success": false,
					"status":  500,
				})
			}
			a.Name = a.Email
			tasks[i].AssignedTo = append(tasks[i].AssignedTo, a)
		}
		if err := aRows.Err(); err != nil {
			aRows.Close()
			logger.ErrorLogger.Error("Error iterating over assignees", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching tasks",
				"success": false,
				"status":  500,
			})
		}
		aRows.Close()
	}

	return c.JSON(fiber.Map{
		"message": "Tasks fetched",
		"success": true,
		"status":  200,
		"tasks":   tasks,
	})
}

// UpdateTeamTaskStatus moves a team task to a new status, logs the move and
// broadcasts it. Overdue is rejected exactly like the personal endpoint.
func UpdateTeamTaskStatus(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	type UpdateRequest struct {
		TaskName string `json:"task_name" validate:"required"`
		Status   string `json:"status" validate:"required"`
	}

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update team task", zap.Error(err))
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

	member, _, err := repository.IsTeamMember(config.DB, teamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}
	if !member {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	res, err := config.DB.Exec(
		`UPDATE tasks
		 SET status = $1,
		     date_completed = CASE WHEN $1 = 'complete' THEN CURRENT_TIMESTAMP ELSE NULL END
		 WHERE team_id = $2 AND task_name = $3`,
		req.Status, teamID, req.TaskName,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating team task", zap.Error(err))
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

	destination := req.Status
	if err := repository.LogActivity(config.DB, teamID, email, "updated_task_status", req.TaskName, &destination); err != nil {
		logger.ErrorLogger.Error("Error logging activity", zap.Error(err))
	}
	repository.AfterTeamMutation(config.DB, teamID, email)
	broadcastActivity(teamID, email, "updated_task_status", req.TaskName, &destination)

	logger.AuditLogger.Info("Team task status updated", zap.Int("team_id", teamID),
		zap.String("task_name", req.TaskName), zap.String("status", req.Status))
	return c.JSON(fiber.Map{
		"message": "Status updated",
		"success": true,
		"status":  200,
	})
}

// EditTeamTask renames, reschedules or redescribes a team task; an overdue
// task drops back to incomplete on edit.
func EditTeamTask(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	type EditRequest struct {
		OriginalName string  `json:"original_name" validate:"required"`
		NewName      string  `json:"new_name" validate:"required"`
		DueDate      *string `json:"due_date"`
		Description  *string `json:"description"`
	}

	var req EditRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in edit team task", zap.Error(err))
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

	member, _, err := repository.IsTeamMember(config.DB, teamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error editing task",
			"success": false,
			"status":  500,
		})
	}
	if !member {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	res, err := config.DB.Exec(
		`UPDATE tasks
		 SET task_name = $1,
		     due_date = $2,
		     description = $3,
		     status = CASE WHEN status = 'overdue' THEN 'incomplete' ELSE status END
		 WHERE team_id = $4 AND task_name = $5`,
		req.NewName, req.DueDate, req.Description, teamID, req.OriginalName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return c.Status(409).JSON(fiber.Map{
				"message": "Task already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error editing team task", zap.Error(err))
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

	if err := repository.LogActivity(config.DB, teamID, email, "edited_task", req.NewName, nil); err != nil {
		logger.ErrorLogger.Error("Error logging activity", zap.Error(err))
	}
	repository.AfterTeamMutation(config.DB, teamID, email)
	broadcastActivity(teamID, email, "edited_task", req.NewName, nil)

	logger.AuditLogger.Info("Team task edited", zap.Int("team_id", teamID),
		zap.String("original_name", req.OriginalName), zap.String("new_name", req.NewName))
	return c.JSON(fiber.Map{
		"message": "Task updated",
		"success": true,
		"status":  200,
	})
}

// DeleteTeamTask removes a team task; assignee rows go with it.
func DeleteTeamTask(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	type DeleteRequest struct {
		TaskName string `json:"task_name" validate:"required"`
	}

	var req DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in delete team task", zap.Error(err))
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

	member, _, err := repository.IsTeamMember(config.DB, teamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}
	if !member {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	res, err := config.DB.Exec(
		"DELETE FROM tasks WHERE team_id = $1 AND task_name = $2",
		teamID, req.TaskName,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting team task", zap.Error(err))
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

	if err := repository.LogActivity(config.DB, teamID, email, "deleted_task", req.TaskName, nil); err != nil {
		logger.ErrorLogger.Error("Error logging activity", zap.Error(err))
	}
	repository.AfterTeamMutation(config.DB, teamID, email)
	broadcastActivity(teamID, email, "deleted_task", req.TaskName, nil)

	logger.AuditLogger.Info("Team task deleted", zap.Int("team_id", teamID), zap.String("task_name", req.TaskName))
	return c.JSON(fiber.Map{
		"message": "Task deleted",
		"success": true,
		"status":  200,
	})
}

// UpdateAssigneeStatus toggles the caller's own completed flag on a team
// task. Toggling another member's row is forbidden no matter the role.
func UpdateAssigneeStatus(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	type AssigneeRequest struct {
		TaskID        int    `json:"task_id" validate:"required"`
		AssigneeEmail string `json:"assignee_email" validate:"required,email"`
		Completed     *bool  `json:"completed" validate:"required"`
	}

	var req AssigneeRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in assignee update", zap.Error(err))
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

	member, _, err := repository.IsTeamMember(config.DB, teamID, email)
	if err != nil {
		logger.ErrorLogger.Error("Error checking membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating assignee",
			"success": false,
			"status":  500,
		})
	}
	if !member {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	if req.AssigneeEmail != email {
		logger.SecurityLogger.Warn("Assignee toggle on another user",
			zap.String("email", email), zap.String("assignee_email", req.AssigneeEmail))
		return c.Status(403).JSON(fiber.Map{
			"message": "You can only update your own completion status",
			"success": false,
			"status":  403,
		})
	}

	res, err := config.DB.Exec(
		`UPDATE task_assignees SET completed = $1
		 FROM tasks
		 WHERE task_assignees.task_id = $2 AND task_assignees.email = $3
		   AND tasks.id = task_assignees.task_id AND tasks.team_id = $4`,
		*req.Completed, req.TaskID, req.AssigneeEmail, teamID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating assignee", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating assignee",
			"success": false,
			"status":  500,
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(404).JSON(fiber.Map{
			"message": "Assignee not found",
			"success": false,
			"status":  404,
		})
	}

	repository.AfterTeamMutation(config.DB, teamID, email)

	// Payload is authoritative; subscribers patch the single flag in place.
	if config.Hub != nil {
		config.Hub.Emit(teamID, "assignee_status_updated", fiber.Map{
			"task_id":        req.TaskID,
			"assignee_email": req.AssigneeEmail,
			"completed":      *req.Completed,
		})
	}

	logger.AuditLogger.Info("Assignee status updated", zap.Int("task_id", req.TaskID),
		zap.String("email", email), zap.Bool("completed", *req.Completed))
	return c.JSON(fiber.Map{
		"message": "Assignee status updated",
		"success": true,
		"status":  200,
	})
}
