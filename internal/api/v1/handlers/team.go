package handlers

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskhive/internal/config"
	"taskhive/internal/repository"
	"taskhive/pkg/logger"
)

// Team membership handlers. Joining is password-gated; the creator gets the
// admin role, joiners get member.

// CreateTeam creates a team and grants the creator admin membership in one
// transaction. Name uniqueness is enforced by the constraint, not a
// pre-check, so two racing creates cannot both win.
func CreateTeam(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type TeamRequest struct {
		Name     string `json:"name" validate:"required"`
		Password string `json:"password" validate:"required,min=4"`
	}

	var req TeamRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create team", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create team", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing team password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating team",
			"success": false,
			"status":  500,
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating team",
			"success": false,
			"status":  500,
		})
	}

	var teamID int
	err = tx.QueryRow(
		"INSERT INTO teams (name, password) VALUES ($1, $2) RETURNING id",
		req.Name, string(hashedPassword),
	).Scan(&teamID)
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			logger.AuditLogger.Warn("Duplicate team name", zap.String("name", req.Name))
			return c.Status(409).JSON(fiber.Map{
				"message": "Team name already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating team", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating team",
			"success": false,
			"status":  500,
		})
	}

	_, err = tx.Exec(
		"INSERT INTO team_members (team_id, email, role) VALUES ($1, $2, 'admin')",
		teamID, email,
	)
	if err != nil {
		tx.Rollback()
		logger.ErrorLogger.Error("Error creating admin membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating team",
			"success": false,
			"status":  500,
		})
	}

	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing team create", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating team",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Team created", zap.Int("team_id", teamID), zap.String("creator", email))
	return c.Status(201).JSON(fiber.Map{
		"message": "Team created",
		"success": true,
		"status":  201,
		"teamId":  teamID,
	})
}

// JoinTeam adds the caller as a member after verifying the team password.
// Re-joining is idempotent; the existing membership row wins.
func JoinTeam(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	type JoinRequest struct {
		Name     string `json:"name" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req JoinRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in join team", zap.Error(err))
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

	var teamID int
	var passwordHash string
	err := config.DB.QueryRow(
		"SELECT id, password FROM teams WHERE name = $1",
		req.Name,
	).Scan(&teamID, &passwordHash)
	if err == sql.ErrNoRows {
		return c.Status(404).JSON(fiber.Map{
			"message": "Team not found",
			"success": false,
			"status":  404,
		})
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching team", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error joining team",
			"success": false,
			"status":  500,
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Wrong team password", zap.String("team", req.Name), zap.String("email", email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Incorrect team password",
			"success": false,
			"status":  401,
		})
	}

	_, err = config.DB.Exec(
		`INSERT INTO team_members (team_id, email, role) VALUES ($1, $2, 'member')
		 ON CONFLICT (team_id, email) DO NOTHING`,
		teamID, email,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error inserting membership", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error joining team",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Team joined", zap.Int("team_id", teamID), zap.String("email", email))
	return c.JSON(fiber.Map{
		"message": "Team joined",
		"success": true,
		"status":  200,
		"teamId":  teamID,
	})
}

// ListTeams returns every team the caller belongs to, with their role.
func ListTeams(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	rows, err := config.DB.Query(
		`SELECT t.id, t.name, tm.role, t.created_at
		 FROM teams t JOIN team_members tm ON tm.team_id = t.id
		 WHERE tm.email = $1 ORDER BY t.name`,
		email,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching teams", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching teams",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	type teamRow struct {
		ID        int       `json:"id"`
		Name      string    `json:"name"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"created_at"`
	}

	teams := []teamRow{}
	for rows.Next() {
		var t teamRow
		if err := rows.Scan(&t.ID, &t.Name, &t.Role, &t.CreatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning teams", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning teams",
				"success": false,
				"status":  500,
			})
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over teams", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over teams",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Teams fetched",
		"success": true,
		"status":  200,
		"teams":   teams,
	})
}

// GetTeam returns a team's info plus the caller's role in it.
func GetTeam(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	teamID, err := c.ParamsInt("teamId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid team ID",
			"success": false,
			"status":  400,
		})
	}

	var name, role string
	var createdAt time.Time
	err = config.DB.QueryRow(
		`SELECT t.name, tm.role, t.created_at
		 FROM teams t JOIN team_members tm ON tm.team_id = t.id
		 WHERE t.id = $1 AND tm.email = $2`,
		teamID, email,
	).Scan(&name, &role, &createdAt)
	if err == sql.ErrNoRows {
		logger.SecurityLogger.Warn("Non-member team info request", zap.Int("team_id", teamID), zap.String("email", email))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching team", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching team",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Team fetched",
		"success": true,
		"status":  200,
		"team": fiber.Map{
			"name":       name,
			"role":       role,
			"created_at": createdAt,
		},
	})
}

// GetTeamMembers lists a team's members. Members only.
func GetTeamMembers(c *fiber.Ctx) error {
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
			"message": "Error fetching members",
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

	rows, err := config.DB.Query(
		"SELECT email, role FROM team_members WHERE team_id = $1 ORDER BY joined_at",
		teamID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching members", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching members",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	type memberRow struct {
		// name carries the email; display names are transient token claims
		// and never persisted.
		Name string `json:"name"`
		Role string `json:"role"`
	}

	members := []memberRow{}
	for rows.Next() {
		var m memberRow
		if err := rows.Scan(&m.Name, &m.Role); err != nil {
			logger.ErrorLogger.Error("Error scanning members", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning members",
				"success": false,
				"status":  500,
			})
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over members", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over members",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Members fetched",
		"success": true,
		"status":  200,
		"members": members,
	})
}
