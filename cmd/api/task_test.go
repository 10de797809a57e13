package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhive/internal/config"
	"taskhive/internal/repository"
)

func yesterday(t *testing.T) string {
	t.Helper()
	today, err := time.Parse("2006-01-02", repository.Today())
	require.NoError(t, err)
	return today.AddDate(0, 0, -1).Format("2006-01-02")
}

func tomorrow(t *testing.T) string {
	t.Helper()
	today, err := time.Parse("2006-01-02", repository.Today())
	require.NoError(t, err)
	return today.AddDate(0, 0, 1).Format("2006-01-02")
}

func TestCreateAndListPersonalTask(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("alice")
	token := mintToken(email, "Alice")

	status, body := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "Buy groceries",
		"due_date":  tomorrow(t),
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	assert.NotZero(t, body["id"])

	status, body = doJSON(t, app, http.MethodGet, "/api/tasks/", token, nil)
	require.Equal(t, http.StatusOK, status)
	tasks := body["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	task := tasks[0].(map[string]interface{})
	assert.Equal(t, "Buy groceries", task["task_name"])
	assert.Equal(t, "incomplete", task["status"])

	stats := fetchStats(t, app, token)
	assert.EqualValues(t, 1, stats["incomplete"])
	assert.EqualValues(t, 0, stats["in_progress"])
	assert.EqualValues(t, 0, stats["complete"])
	assert.EqualValues(t, 0, stats["overdue"])
	assert.EqualValues(t, 0, stats["on_hold"])
}

func TestCreateTaskRequiresToken(t *testing.T) {
	app := createTestApp()

	status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", "", map[string]interface{}{
		"task_name": "No auth",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateTaskRejectsBlankName(t *testing.T) {
	app := createTestApp()
	token := mintToken(uniqueEmail("blank"), "Blank")

	status, body := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid task title", body["message"])
}

func TestDuplicateTaskNamePerScope(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("dup")
	token := mintToken(email, "Dup")

	status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "Write minutes",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "Write minutes",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Task already exists", body["message"])

	// Same name under another user is a different scope
	otherToken := mintToken(uniqueEmail("dup-other"), "Other")
	status, _ = doJSON(t, app, http.MethodPost, "/api/tasks/", otherToken, map[string]interface{}{
		"task_name": "Write minutes",
	})
	assert.Equal(t, http.StatusCreated, status)
}

func TestManualOverdueRejected(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("bob")
	token := mintToken(email, "Bob")

	status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "File expenses",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, app, http.MethodPut, "/api/tasks/update", token, map[string]interface{}{
		"task_name": "File expenses",
		"status":    "overdue",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot manually set status to overdue", body["message"])

	status, body = doJSON(t, app, http.MethodGet, "/api/tasks/", token, nil)
	require.Equal(t, http.StatusOK, status)
	task := body["tasks"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "incomplete", task["status"], "rejected update must leave the task untouched")
}

func TestUpdateStatusValidation(t *testing.T) {
	app := createTestApp()
	token := mintToken(uniqueEmail("val"), "Val")

	status, _ := doJSON(t, app, http.MethodPut, "/api/tasks/update", token, map[string]interface{}{
		"task_name": "Whatever",
		"status":    "done",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPut, "/api/tasks/update", token, map[string]interface{}{
		"task_name": "No such task",
		"status":    "complete",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOverdueSweepOnList(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("sweep")
	token := mintToken(email, "Sweep")

	// Seed three tasks straight into the store: past due, due today, no due date.
	_, err := config.DB.Exec(
		`INSERT INTO tasks (email, task_name, status, due_date) VALUES
		 ($1, 'Past due', 'incomplete', $2),
		 ($1, 'Due today', 'incomplete', $3),
		 ($1, 'No due date', 'incomplete', NULL),
		 ($1, 'Finished late', 'complete', $2)`,
		email, yesterday(t), repository.Today(),
	)
	require.NoError(t, err)

	status, body := doJSON(t, app, http.MethodGet, "/api/tasks/", token, nil)
	require.Equal(t, http.StatusOK, status)

	byName := map[string]string{}
	for _, raw := range body["tasks"].([]interface{}) {
		task := raw.(map[string]interface{})
		byName[task["task_name"].(string)] = task["status"].(string)
	}
	assert.Equal(t, "overdue", byName["Past due"])
	assert.Equal(t, "incomplete", byName["Due today"], "due today is not yet overdue")
	assert.Equal(t, "incomplete", byName["No due date"])
	assert.Equal(t, "overdue", byName["Finished late"], "the sweep covers completed tasks too")

	// A second list is a no-op on already-overdue rows
	status, body = doJSON(t, app, http.MethodGet, "/api/tasks/", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["tasks"].([]interface{}), 4)
}

func TestEditDemotesOverdue(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("edit")
	token := mintToken(email, "Edit")

	_, err := config.DB.Exec(
		"INSERT INTO tasks (email, task_name, status, due_date) VALUES ($1, 'Late report', 'overdue', $2)",
		email, yesterday(t),
	)
	require.NoError(t, err)

	status, _ := doJSON(t, app, http.MethodPut, "/api/tasks/edit", token, map[string]interface{}{
		"original_name": "Late report",
		"new_name":      "Quarterly report",
		"due_date":      tomorrow(t),
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, app, http.MethodGet, "/api/tasks/", token, nil)
	require.Equal(t, http.StatusOK, status)
	task := body["tasks"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Quarterly report", task["task_name"])
	assert.Equal(t, "incomplete", task["status"], "editing an overdue task demotes it")
}

func TestCompleteStampsDateCompleted(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("stamp")
	token := mintToken(email, "Stamp")

	status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "Ship build",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, app, http.MethodPut, "/api/tasks/update", token, map[string]interface{}{
		"task_name": "Ship build",
		"status":    "complete",
	})
	require.Equal(t, http.StatusOK, status)

	var completed *time.Time
	err := config.DB.QueryRow(
		"SELECT date_completed FROM tasks WHERE email = $1 AND task_name = 'Ship build'", email,
	).Scan(&completed)
	require.NoError(t, err)
	assert.NotNil(t, completed)

	// Moving it out of complete clears the stamp
	status, _ = doJSON(t, app, http.MethodPut, "/api/tasks/update", token, map[string]interface{}{
		"task_name": "Ship build",
		"status":    "in_progress",
	})
	require.Equal(t, http.StatusOK, status)

	err = config.DB.QueryRow(
		"SELECT date_completed FROM tasks WHERE email = $1 AND task_name = 'Ship build'", email,
	).Scan(&completed)
	require.NoError(t, err)
	assert.Nil(t, completed)
}

func TestDeleteTask(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("del")
	token := mintToken(email, "Del")

	status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "Throwaway",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/tasks/delete", token, map[string]interface{}{
		"task_name": "Throwaway",
	})
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/tasks/delete", token, map[string]interface{}{
		"task_name": "Throwaway",
	})
	assert.Equal(t, http.StatusNotFound, status)

	stats := fetchStats(t, app, token)
	assert.EqualValues(t, 0, stats["incomplete"])
}

func TestStatsTrackEveryMutation(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("stats")
	token := mintToken(email, "Stats")

	for _, name := range []string{"One", "Two", "Three"} {
		status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
			"task_name": name,
		})
		require.Equal(t, http.StatusCreated, status)
	}
	for name, next := range map[string]string{"One": "in_progress", "Two": "complete"} {
		status, _ := doJSON(t, app, http.MethodPut, "/api/tasks/update", token, map[string]interface{}{
			"task_name": name,
			"status":    next,
		})
		require.Equal(t, http.StatusOK, status)
	}

	stats := fetchStats(t, app, token)
	assert.EqualValues(t, 1, stats["incomplete"])
	assert.EqualValues(t, 1, stats["in_progress"])
	assert.EqualValues(t, 1, stats["complete"])

	sum := 0.0
	for _, bucket := range []string{"incomplete", "in_progress", "complete", "overdue", "on_hold"} {
		sum += stats[bucket].(float64)
	}
	assert.EqualValues(t, 3, sum, "buckets partition the task list")

	// Second read comes from the cache and must agree
	assert.Equal(t, stats, fetchStats(t, app, token))
}

func TestStatsRebuildEndpoint(t *testing.T) {
	app := createTestApp()
	email := uniqueEmail("rebuild")
	token := mintToken(email, "Rebuild")

	status, _ := doJSON(t, app, http.MethodPost, "/api/tasks/", token, map[string]interface{}{
		"task_name": "Count me",
	})
	require.Equal(t, http.StatusCreated, status)

	// Corrupt the derived row, then rebuild from the source of truth
	_, err := config.DB.Exec("UPDATE user_statistics SET incomplete = 99 WHERE email = $1", email)
	require.NoError(t, err)

	status, body := doJSON(t, app, http.MethodPost, "/api/user-stats/rebuild", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, body["rebuilt"].(float64), 1.0)

	stats := fetchStats(t, app, token)
	assert.EqualValues(t, 1, stats["incomplete"])
}
