package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ayudamx/volunteer-service/internal/config"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/repositories/casdoor"
	"github.com/ayudamx/volunteer-service/internal/services"
	"github.com/ayudamx/volunteer-service/internal/utils"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

type HandlerManager struct {
	taskHandler       *TaskHandler
	volunteerHandler  *VolunteerHandler
	attendanceHandler *AttendanceHandler
	authHandler       *AuthHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
	identityService   services.IdentityService
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
	accounts *casdoor.AccountManager,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo, accounts)

	return &HandlerManager{
		taskHandler:       NewTaskHandler(serviceManager.Task(), serviceManager.Assignment(), validator, logger),
		volunteerHandler:  NewVolunteerHandler(serviceManager.Directory(), validator, logger),
		attendanceHandler: NewAttendanceHandler(serviceManager.Attendance(), logger),
		authHandler:       NewAuthHandler(serviceManager.Identity(), logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    authMiddleware,
		identityService:   serviceManager.Identity(),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Registration stays open; everything else requires a session.
	router.POST("/api/v1/auth/register", hm.authHandler.Register)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Session routes
		auth := v1.Group("/auth")
		{
			auth.GET("/me", hm.authHandler.Me)
			auth.PUT("/password", hm.authHandler.ChangePassword)
			auth.POST("/signout", hm.authHandler.SignOut)
		}

		// The approval gate applies to everything below: unapproved
		// volunteers are signed out instead of served.
		gated := v1.Group("")
		gated.Use(RequireApprovalMiddleware(hm.identityService))
		{
			// Task routes
			tasks := gated.Group("/tasks")
			{
				// Create/modify tasks - Admins only
				tasks.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.CreateTask)
				tasks.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.UpdateTask)
				tasks.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.DeleteTask)
				tasks.POST("/:id/toggle-completed", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.ToggleTaskCompleted)

				// Assignment management - Admins only
				tasks.POST("/:id/volunteers", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.AssignVolunteers)
				tasks.DELETE("/:id/volunteers", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.UnassignVolunteers)

				// View tasks - all authenticated users
				tasks.GET("", hm.taskHandler.ListTasks)
				tasks.GET("/open", hm.taskHandler.ListOpenTasks)
				tasks.GET("/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.taskHandler.GetTaskStats)
				tasks.GET("/:id", hm.taskHandler.GetTask)
			}

			// Volunteer directory routes
			volunteers := gated.Group("/volunteers")
			{
				// Coordinator views - Admins only
				volunteers.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.volunteerHandler.ListVolunteers)
				volunteers.GET("/available", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.volunteerHandler.ListAvailableVolunteers)
				volunteers.GET("/watch", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.volunteerHandler.WatchDirectory)
				volunteers.GET("/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.volunteerHandler.GetDirectoryStats)

				// Approval state - Admins only
				volunteers.PUT("/:id/state", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.volunteerHandler.SetVolunteerState)

				// Profiles - owners and admins (enforced in the handler)
				volunteers.GET("/:id", hm.volunteerHandler.GetVolunteer)
				volunteers.PUT("/:id", hm.volunteerHandler.UpdateVolunteerProfile)
				volunteers.POST("/:id/documents", hm.volunteerHandler.UploadDocument)
			}

			// Attendance routes - Admins only
			attendance := gated.Group("/attendance")
			attendance.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
			{
				attendance.GET("", hm.attendanceHandler.GetParticipation)
				attendance.GET("/export", hm.attendanceHandler.ExportRoster)
				attendance.GET("/volunteer/:volunteer_id", hm.attendanceHandler.GetVolunteerParticipation)
			}

			// User routes - Admins only
			users := gated.Group("/users")
			users.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
			{
				users.GET("", hm.userHandler.ListUsers)
				users.GET("/search", hm.userHandler.SearchUsers)
				users.GET("/:id", hm.userHandler.GetUser)
			}
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "volunteer-service",
		})
	})
}
