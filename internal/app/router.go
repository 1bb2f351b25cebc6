package app

import (
	"credahead_backend/docs"
	"credahead_backend/internal/config"
	"credahead_backend/internal/middleware"
	"credahead_backend/pkg/monitoring"
	"credahead_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// 作答接口单用户限流
const (
	answerRateLimit  = 60
	answerRateWindow = time.Minute
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.POST("/scores/percentile", c.score.Percentile)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.Profile)

	answerLimit := security.RateLimiter(answerRateLimit, answerRateWindow, middleware.UserRateKey)

	// 自适应测评
	rg.POST("/assessment/sessions", c.assessment.StartAssessment)
	rg.POST("/assessment/sessions/:id/answers", answerLimit, c.assessment.SubmitAnswer)
	rg.GET("/assessment/sessions/:id/result", c.assessment.GetResult)

	// 课程小测
	rg.POST("/lessons/:lessonId/quiz", c.lessonQuiz.StartQuiz)
	rg.POST("/lessons/:lessonId/quiz/:id/answers", answerLimit, c.lessonQuiz.SubmitAnswer)

	rg.POST("/sessions/:id/abandon", c.session.Abandon)
	rg.GET("/pathway", c.pathway.GetPathway)
	rg.GET("/questions/:id/stats", c.question.GetStats)
}
