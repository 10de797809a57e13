package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskhive/internal/config"
	"taskhive/internal/models"
	"taskhive/pkg/logger"
)

// Day boundary used for overdue detection. Falls back to a fixed UTC-4
// offset when the tz database is unavailable.
func torontoLocation() *time.Location {
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		return time.FixedZone("EDT", -4*60*60)
	}
	return loc
}

// Today returns the current calendar date (YYYY-MM-DD) at the day boundary.
func Today() string {
	return time.Now().In(torontoLocation()).Format("2006-01-02")
}

// SweepOverduePersonal marks every personal task of the given user whose due
// date has passed as overdue. Idempotent; already-overdue rows are skipped,
// every other status is swept, completed tasks included.
func SweepOverduePersonal(db *sql.DB, email string) error {
	_, err := db.Exec(
		`UPDATE tasks SET status = 'overdue'
		 WHERE email = $1 AND status <> 'overdue'
		   AND due_date IS NOT NULL AND due_date < $2::date`,
		email, Today(),
	)
	return err
}

// SweepOverdueTeam is the team-scope counterpart of SweepOverduePersonal.
func SweepOverdueTeam(db *sql.DB, teamID int) error {
	_, err := db.Exec(
		`UPDATE tasks SET status = 'overdue'
		 WHERE team_id = $1 AND status <> 'overdue'
		   AND due_date IS NOT NULL AND due_date < $2::date`,
		teamID, Today(),
	)
	return err
}

// RecomputeStats recounts the five status buckets over the user's personal
// tasks and overwrites the summary row in one statement. The Redis copy is
// dropped so the next read repopulates it.
func RecomputeStats(db *sql.DB, email string) error {
	_, err := db.Exec(
		`INSERT INTO user_statistics (email, incomplete, in_progress, complete, overdue, on_hold)
		 SELECT $1,
		        COUNT(*) FILTER (WHERE status = 'incomplete'),
		        COUNT(*) FILTER (WHERE status = 'in_progress'),
		        COUNT(*) FILTER (WHERE status = 'complete'),
		        COUNT(*) FILTER (WHERE status = 'overdue'),
		        COUNT(*) FILTER (WHERE status = 'on_hold')
		 FROM tasks WHERE email = $1
		 ON CONFLICT (email) DO UPDATE SET
		        incomplete  = EXCLUDED.incomplete,
		        in_progress = EXCLUDED.in_progress,
		        complete    = EXCLUDED.complete,
		        overdue     = EXCLUDED.overdue,
		        on_hold     = EXCLUDED.on_hold`,
		email,
	)
	if err != nil {
		return err
	}
	if config.RedisClient != nil {
		config.RedisClient.Del(config.Ctx, statsCacheKey(email))
	}
	return nil
}

// RebuildAllStats recomputes the statistics row of every email that has tasks
// or an existing summary row. Recovery operation for cache drift.
func RebuildAllStats(db *sql.DB) (int, error) {
	rows, err := db.Query(
		`SELECT email FROM tasks WHERE email IS NOT NULL
		 UNION SELECT email FROM user_statistics`,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return 0, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, email := range emails {
		if err := RecomputeStats(db, email); err != nil {
			return 0, err
		}
	}
	return len(emails), nil
}

// GetStats fetches the summary row for the user. A missing row yields the
// zero-valued five buckets, not an error.
func GetStats(db *sql.DB, email string) (models.UserStats, error) {
	stats := models.UserStats{Email: email}
	err := db.QueryRow(
		`SELECT incomplete, in_progress, complete, overdue, on_hold
		 FROM user_statistics WHERE email = $1`,
		email,
	).Scan(&stats.Incomplete, &stats.InProgress, &stats.Complete, &stats.Overdue, &stats.OnHold)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	return stats, err
}

func statsCacheKey(email string) string {
	return fmt.Sprintf("user_stats:%s", email)
}

// StatsCacheKey exposes the Redis key for the stats read path.
func StatsCacheKey(email string) string {
	return statsCacheKey(email)
}

// AfterPersonalMutation runs the mutation side effects for a personal scope:
// overdue sweep, then statistics recount.
func AfterPersonalMutation(db *sql.DB, email string) {
	if err := SweepOverduePersonal(db, email); err != nil {
		logger.ErrorLogger.Error("Overdue sweep failed", zap.String("email", email), zap.Error(err))
	}
	if err := RecomputeStats(db, email); err != nil {
		logger.ErrorLogger.Error("Stats recompute failed", zap.String("email", email), zap.Error(err))
	}
}

// AfterTeamMutation runs the mutation side effects for a team scope. The
// actor's personal statistics row is refreshed as well so every mutation
// passes through the aggregator.
func AfterTeamMutation(db *sql.DB, teamID int, actorEmail string) {
	if err := SweepOverdueTeam(db, teamID); err != nil {
		logger.ErrorLogger.Error("Overdue sweep failed", zap.Int("team_id", teamID), zap.Error(err))
	}
	if err := RecomputeStats(db, actorEmail); err != nil {
		logger.ErrorLogger.Error("Stats recompute failed", zap.String("email", actorEmail), zap.Error(err))
	}
}

// LogActivity appends an entry to a team's activity log.
func LogActivity(db *sql.DB, teamID int, actor, action, target string, destination *string) error {
	_, err := db.Exec(
		`INSERT INTO team_activity_log (team_id, actor_email, action, target, destination)
		 VALUES ($1, $2, $3, $4, $5)`,
		teamID, actor, action, target, destination,
	)
	return err
}

// IsTeamMember reports whether the email belongs to the team, and the role.
func IsTeamMember(db *sql.DB, teamID int, email string) (bool, string, error) {
	var role string
	err := db.QueryRow(
		"SELECT role FROM team_members WHERE team_id = $1 AND email = $2",
		teamID, email,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, role, nil
}
