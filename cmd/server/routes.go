package main

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/middleware"
	"github.com/taskhive/backend/pkg/logger"
	"github.com/taskhive/backend/pkg/response"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.FrontendURL))
	r.NoRoute(response.NoRoute)

	d := svc.dispatcher
	guard := func(p authz.Policy) gin.HandlerFunc { return middleware.Guard(d, p) }

	// Health and metrics
	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	api := r.Group("/api")
	{
		api.GET("/health", svc.healthHandler.CheckHealth)
		api.GET("/subscription/plans", svc.subscriptionHandler.Plans)

		// Auth routes (public, rate limited)
		auth := api.Group("/auth", middleware.RateLimit(svc.limiter))
		{
			auth.POST("/register/admin", svc.authHandler.RegisterAdmin)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh-token", svc.authHandler.Refresh)
			auth.POST("/forgot-password", svc.authHandler.ForgotPassword)
			auth.POST("/reset-password", svc.authHandler.ResetPassword)
		}

		// Authenticated, not tied to a workspace
		me := api.Group("/auth", guard(authz.Authenticated))
		{
			me.GET("/me", svc.authHandler.Me)
			me.PATCH("/me", svc.authHandler.UpdateMe)
			me.POST("/logout", svc.authHandler.Logout)
			me.POST("/change-password", svc.authHandler.ChangePassword)
		}

		// SSE authenticates inside the handler; EventSource cannot send headers.
		api.GET("/notifications/stream", svc.sseHandler.Stream)

		notifications := api.Group("/notifications", guard(authz.Authenticated))
		{
			notifications.GET("", svc.notificationHandler.List)
			notifications.GET("/unread-count", svc.notificationHandler.UnreadCount)
			notifications.POST("/mark-read", svc.notificationHandler.MarkRead)
		}

		api.GET("/workspaces", guard(authz.Authenticated), svc.workspaceHandler.List)
		api.POST("/workspaces", guard(authz.Authenticated), svc.workspaceHandler.Create)

		// Workspace-scoped routes. Each route names its own policy.
		ws := api.Group("/workspaces/:"+middleware.WorkspaceParam, middleware.AuditLog(svc.activityService))
		{
			ws.GET("", guard(authz.Member), svc.workspaceHandler.Get)
			ws.PATCH("", guard(authz.Admin), svc.workspaceHandler.Update)
			ws.DELETE("", guard(authz.Owner), svc.workspaceHandler.Delete)
			ws.GET("/stats", guard(authz.Member.Subscribed()), svc.workspaceHandler.Stats)

			// Members
			ws.GET("/members", guard(authz.Member), svc.memberHandler.List)
			ws.POST("/members", guard(authz.Admin.Subscribed()), svc.memberHandler.Add)
			ws.POST("/register/team-member", guard(authz.Admin.Subscribed()), svc.memberHandler.RegisterTeamMember)
			ws.PATCH("/members/:userId", guard(authz.Admin), svc.memberHandler.UpdateRole)
			ws.DELETE("/members/:userId", guard(authz.Admin), svc.memberHandler.Remove)

			// Subscription. An expired workspace must still be able to pay.
			sub := ws.Group("/subscription", guard(authz.Admin))
			{
				sub.POST("/order", svc.subscriptionHandler.CreateOrder)
				sub.POST("/verify", svc.subscriptionHandler.Verify)
				sub.POST("/cancel", svc.subscriptionHandler.Cancel)
			}

			// Tasks
			tasks := ws.Group("/tasks", guard(authz.Member.Subscribed()))
			{
				tasks.GET("", svc.taskHandler.List)
				tasks.GET("/my-tasks", svc.taskHandler.MyTasks)
				tasks.GET("/stats", svc.taskHandler.Stats)
				tasks.GET("/:taskId", svc.taskHandler.Get)
				tasks.GET("/:taskId/activity", svc.taskHandler.Activity)
				tasks.POST("", svc.taskHandler.Create)
				tasks.POST("/:taskId/comments", svc.taskHandler.AddComment)
				tasks.PATCH("/bulk", svc.taskHandler.BulkUpdate)
				tasks.PATCH("/:taskId", svc.taskHandler.Update)
				tasks.DELETE("/:taskId", svc.taskHandler.Delete)
			}
		}

		// Platform administration
		admin := api.Group("/admin", middleware.SuperAdminRequired(d))
		{
			admin.GET("/workspaces", svc.adminHandler.ListWorkspaces)
			admin.GET("/users", svc.adminHandler.ListUsers)
			admin.GET("/stats", svc.adminHandler.Stats)
			admin.PATCH("/workspaces/:id", svc.adminHandler.PatchWorkspace)
			admin.PATCH("/users/:id", svc.adminHandler.PatchUser)
		}
	}
}
