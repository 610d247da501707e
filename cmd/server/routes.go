package main

import (
	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/handlers"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.ClientURL))

	// Login and refresh are throttled harder than the rest of the API
	authLimiter := middleware.NewRateLimiter(2, 10)
	apiLimiter := middleware.NewRateLimiter(20, 60)

	// Health check and metrics
	r.GET("/health", handlers.NewHealthHandler().CheckHealth)
	r.GET("/metrics", handlers.Metrics)

	loadActor := svc.authHandler.Service().GetUserByID

	topicHandler := handlers.NewTopicHandler(svc.topics)
	applicationHandler := handlers.NewApplicationHandler(svc.applications)
	thesisHandler := handlers.NewThesisHandler(svc.theses, svc.deps.MaxUploadBytes)
	groupHandler := handlers.NewResearchGroupHandler(svc.researchGroups)

	// API routes
	api := r.Group("/api", apiLimiter.Middleware())
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// SSE Events (public route with internal token validation)
		sseHandler := handlers.NewSSEHandler(services.GetSSEHub())
		api.GET("/events", sseHandler.StreamEvents)

		// Published topics, public theses and research groups are readable anonymously
		public := api.Group("")
		public.Use(middleware.OptionalAuth(loadActor))
		{
			public.GET("/topics", topicHandler.List)
			public.GET("/topics/:id", topicHandler.Get)
			public.GET("/theses", thesisHandler.List)
			public.GET("/theses/:id", thesisHandler.Get)
			public.GET("/research-groups", groupHandler.List)
			public.GET("/research-groups/:id", groupHandler.Get)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(loadActor), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(models.GetDB())
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)

			// Users
			userHandler := handlers.NewUserHandler(models.GetDB())
			protected.GET("/users", userHandler.List)

			// Topics
			protected.POST("/topics", topicHandler.Create)
			protected.PUT("/topics/:id", topicHandler.Update)
			protected.PUT("/topics/:id/publish", topicHandler.Publish)
			protected.PUT("/topics/:id/close", topicHandler.Close)

			// Applications
			protected.GET("/applications", applicationHandler.List)
			protected.GET("/applications/:id", applicationHandler.Get)
			protected.POST("/applications", applicationHandler.Create)
			protected.PUT("/applications/:id", applicationHandler.Update)
			protected.PUT("/applications/:id/comment", applicationHandler.UpdateComment)
			protected.PUT("/applications/:id/review", applicationHandler.Review)
			protected.PUT("/applications/:id/accept", applicationHandler.Accept)
			protected.PUT("/applications/:id/reject", applicationHandler.Reject)

			// Theses
			protected.POST("/theses", thesisHandler.Create)
			protected.PUT("/theses/:id", thesisHandler.Update)
			protected.PUT("/theses/:id/info", thesisHandler.UpdateInfo)
			protected.PUT("/theses/:id/close", thesisHandler.Close)

			protected.POST("/theses/:id/proposal", thesisHandler.UploadProposal)
			protected.PUT("/theses/:id/proposal/accept", thesisHandler.AcceptProposal)
			protected.GET("/theses/:id/proposal/:proposal_id", thesisHandler.DownloadProposal)
			protected.DELETE("/theses/:id/proposal/:proposal_id", thesisHandler.DeleteProposal)

			protected.POST("/theses/:id/files", thesisHandler.UploadFile)
			protected.GET("/theses/:id/files/:file_id", thesisHandler.DownloadFile)
			protected.DELETE("/theses/:id/files/:file_id", thesisHandler.DeleteFile)

			protected.POST("/theses/:id/feedback", thesisHandler.RequestChanges)
			protected.PUT("/theses/:id/feedback/:feedback_id/complete", thesisHandler.CompleteFeedback)
			protected.DELETE("/theses/:id/feedback/:feedback_id", thesisHandler.DeleteFeedback)

			protected.GET("/theses/:id/comments", thesisHandler.ListComments)
			protected.POST("/theses/:id/comments", thesisHandler.PostComment)
			protected.GET("/theses/:id/comments/:comment_id/file", thesisHandler.DownloadCommentAttachment)
			protected.DELETE("/theses/:id/comments/:comment_id", thesisHandler.DeleteComment)

			protected.PUT("/theses/:id/submit", thesisHandler.Submit)
			protected.POST("/theses/:id/assessment", thesisHandler.SubmitAssessment)
			protected.POST("/theses/:id/grade", thesisHandler.Grade)
			protected.POST("/theses/:id/complete", thesisHandler.Complete)

			protected.POST("/theses/:id/presentations", thesisHandler.CreatePresentation)
			protected.PUT("/theses/:id/presentations/:presentation_id", thesisHandler.UpdatePresentation)
			protected.POST("/theses/:id/presentations/:presentation_id/schedule", thesisHandler.SchedulePresentation)
			protected.DELETE("/theses/:id/presentations/:presentation_id", thesisHandler.DeletePresentation)

			// Research groups
			protected.POST("/research-groups", groupHandler.Create)
			protected.PUT("/research-groups/:id", groupHandler.Update)
			protected.PUT("/research-groups/:id/archive", groupHandler.Archive)
			protected.GET("/research-groups/:id/settings", groupHandler.GetSettings)
			protected.PUT("/research-groups/:id/settings", groupHandler.UpdateSettings)
			protected.GET("/research-groups/:id/members", groupHandler.ListMembers)
			protected.PUT("/research-groups/:id/members/:user_id", groupHandler.AssignMember)
			protected.DELETE("/research-groups/:id/members/:user_id", groupHandler.RemoveMember)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(loadActor), middleware.AdminRequired(), middleware.AuditLog())
		{
			userHandler := handlers.NewUserHandler(models.GetDB())
			admin.PUT("/users/:id", userHandler.Update)

			// System Config
			systemConfigHandler := handlers.NewSystemConfigHandler(models.GetDB())
			admin.GET("/system-config", systemConfigHandler.List)
			admin.PUT("/system-config", systemConfigHandler.Update)
			admin.GET("/system-config/workflow", systemConfigHandler.GetWorkflowSwitches)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
		}
	}
}
