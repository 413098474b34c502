package app

import (
	"time"

	"grading_backend/internal/config"
	"grading_backend/internal/controller"
	"grading_backend/internal/middleware"
	"grading_backend/internal/model"
	"grading_backend/pkg/monitoring"
	"grading_backend/pkg/security"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		writeLimit := security.UserRateLimiter(a.background, cfg.RateLimit.SubmissionWritesPerMinute, time.Minute)
		RegisterAssessmentRoutes(authGroup, c.assessment, c.submission, writeLimit)
		RegisterSubmissionRoutes(authGroup, c.submission, writeLimit)
	}
}

// RegisterAssessmentRoutes 测评定义及按测评的答卷接口
func RegisterAssessmentRoutes(rg *gin.RouterGroup, ac *controller.AssessmentController, sc *controller.SubmissionController, writeLimit gin.HandlerFunc) {
	assessments := rg.Group("/assessments")
	{
		assessments.POST("", middleware.RoleMiddleware(model.Faculty), ac.CreateAssessment)
		assessments.GET("/:id", ac.GetAssessment)
		assessments.PUT("/:id/questions", ac.SetQuestions)
		assessments.GET("/:id/results", ac.ListResults)

		assessments.POST("/:id/submissions", writeLimit, sc.CreateSubmission)
		assessments.GET("/:id/submissions", sc.ListSubmissions)
		assessments.GET("/:id/submissions/me", sc.ListMySubmissions)
		assessments.POST("/:id/regrade", sc.RegradeAssessment)
	}
}

// RegisterSubmissionRoutes 单份答卷接口
func RegisterSubmissionRoutes(rg *gin.RouterGroup, sc *controller.SubmissionController, writeLimit gin.HandlerFunc) {
	submissions := rg.Group("/submissions")
	{
		submissions.GET("/:id", sc.GetSubmission)
		submissions.PATCH("/:id", writeLimit, sc.UpdateSubmission)
		submissions.DELETE("/:id", sc.DeleteSubmission)
		submissions.POST("/:id/regrade", sc.RegradeSubmission)
		submissions.PATCH("/:id/adjust-score", sc.AdjustScore)
	}
}
