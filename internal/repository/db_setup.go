package repository

import (
	"database/sql"
	"log"
)

func CreateTableIfNotExists(db *sql.DB) {
	query := `
CREATE TABLE IF NOT EXISTS teams (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS team_members (
    id SERIAL PRIMARY KEY,
    team_id INT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
    email VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL DEFAULT 'member',
    joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (team_id, email)
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255),
    team_id INT REFERENCES teams (id) ON DELETE CASCADE,
    task_name VARCHAR(255) NOT NULL,
    status VARCHAR(50) NOT NULL DEFAULT 'incomplete',
    due_date DATE,
    description TEXT,
    assigned_by VARCHAR(255),
    date_created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    date_completed TIMESTAMP,
    UNIQUE (email, task_name),
    UNIQUE (team_id, task_name)
);

CREATE TABLE IF NOT EXISTS task_assignees (
    id SERIAL PRIMARY KEY,
    task_id INT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    email VARCHAR(255) NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (task_id, email)
);

CREATE TABLE IF NOT EXISTS user_statistics (
    email VARCHAR(255) PRIMARY KEY,
    incomplete INT NOT NULL DEFAULT 0,
    in_progress INT NOT NULL DEFAULT 0,
    complete INT NOT NULL DEFAULT 0,
    overdue INT NOT NULL DEFAULT 0,
    on_hold INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS team_chat (
    id SERIAL PRIMARY KEY,
    team_id INT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
    sender_email VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    sent_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS team_activity_log (
    id SERIAL PRIMARY KEY,
    team_id INT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
    actor_email VARCHAR(255) NOT NULL,
    action VARCHAR(50) NOT NULL,
    target VARCHAR(255) NOT NULL,
    destination VARCHAR(50),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error creating tables: %v", err)
	}
}

func DeleteAllTable(db *sql.DB) {
	query := `
    DROP TABLE IF EXISTS team_activity_log;
    DROP TABLE IF EXISTS team_chat;
    DROP TABLE IF EXISTS user_statistics;
    DROP TABLE IF EXISTS task_assignees;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS team_members;
    DROP TABLE IF EXISTS teams;
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error deleting tables: %v", err)
	}
}
