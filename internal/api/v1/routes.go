package v1

import (
	"github.com/gofiber/fiber/v2"

	"taskhive/internal/api/v1/handlers"
	"taskhive/internal/middleware"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Personal tasks
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Post("/", handlers.CreateTask)
	taskRoutes.Get("/", handlers.ListTasks)
	taskRoutes.Put("/update", handlers.UpdateTaskStatus)
	taskRoutes.Put("/edit", handlers.EditTask)
	taskRoutes.Post("/delete", handlers.DeleteTask)

	// Statistics
	api.Get("/user-stats", middleware.UseToken, handlers.GetUserStats)
	api.Post("/user-stats/rebuild", middleware.UseToken, handlers.RebuildStats)

	// Team tasks (create carries team_id in the body)
	api.Post("/team-tasks", middleware.UseToken, handlers.CreateTeamTask)

	// Teams
	teamRoutes := api.Group("/teams")
	teamRoutes.Post("/create", middleware.UseToken, handlers.CreateTeam)
	teamRoutes.Post("/join", middleware.UseToken, handlers.JoinTeam)
	teamRoutes.Get("/", middleware.UseToken, handlers.ListTeams)
	// Chat and activity reads are public; everything else is member-gated
	// behind a verified token.
	teamRoutes.Get("/:teamId/chat", handlers.GetChatHistory)
	teamRoutes.Get("/:teamId/activity", handlers.GetActivityLog)
	teamRoutes.Get("/:teamId/members", middleware.UseToken, handlers.GetTeamMembers)
	teamRoutes.Get("/:teamId/tasks", middleware.UseToken, handlers.ListTeamTasks)
	teamRoutes.Put("/:teamId/tasks/update", middleware.UseToken, handlers.UpdateTeamTaskStatus)
	teamRoutes.Put("/:teamId/tasks/edit", middleware.UseToken, handlers.EditTeamTask)
	teamRoutes.Post("/:teamId/tasks/delete", middleware.UseToken, handlers.DeleteTeamTask)
	teamRoutes.Put("/:teamId/tasks/assignee-status", middleware.UseToken, handlers.UpdateAssigneeStatus)
	teamRoutes.Get("/:teamId", middleware.UseToken, handlers.GetTeam)
}
