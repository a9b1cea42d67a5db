package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseHandler        *handler.CourseHandler
	AssignmentHandler    *handler.AssignmentHandler
	SubmissionHandler    *handler.SubmissionHandler
	GradeHandler         *handler.GradeHandler
	GradeCenterHandler   *handler.GradeCenterHandler
	DiscussionHandler    *handler.DiscussionHandler
	NotificationHandler  *handler.NotificationHandler
	UserHandler          *handler.UserHandler
	AdminActivityHandler *handler.AdminActivityHandler
	HealthProbes         map[string]handler.HealthProbe
	JWTMiddleware        fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api", jwtMiddleware)

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(api.Group("/courses"))
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(api.Group("/assignments"))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions"))
	}
	if deps.GradeHandler != nil {
		deps.GradeHandler.Register(api.Group("/grades"))
	}
	if deps.GradeCenterHandler != nil {
		gradeCenter := api.Group("/gradecenter", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin))
		deps.GradeCenterHandler.Register(gradeCenter)
	}
	if deps.DiscussionHandler != nil {
		deps.DiscussionHandler.Register(api)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications"))
	}

	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	if deps.UserHandler != nil {
		deps.UserHandler.Register(admin.Group("/users"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}
}
