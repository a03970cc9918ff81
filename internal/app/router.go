package app

import (
	"quizicle_backend/docs"
	"quizicle_backend/internal/middleware"
	"quizicle_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由，携带令牌时可识别创建者
	a.registerPublicRoutes(router, c)

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(a.secret), middleware.ActivityMiddleware(repos.user))
	{
		a.registerQuizRoutes(authGroup, c)
	}

	// 3. 超级用户
	a.registerAdminRoutes(router, c, repos)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/quizzes", c.quiz.ListQuizzes)
		public.GET("/quizzes/:id", middleware.OptionalAuthMiddleware(a.secret), c.quiz.GetQuiz)
		public.GET("/quizzes/:id/leaderboard", c.attempt.Leaderboard)
		public.GET("/quizzes/:id/leaderboard/ws", c.attempt.LeaderboardFeed)
		public.GET("/quizzes/:id/comments", c.feedback.ListComments)
	}
}

func (a *App) registerQuizRoutes(rg *gin.RouterGroup, c *controllers) {
	// 录入与编辑
	rg.POST("/quizzes", c.quiz.CreateQuiz)
	rg.POST("/quizzes/:id/questions", c.quiz.AppendQuestions)
	rg.PUT("/quizzes/:id", c.quiz.EditQuiz)
	rg.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)

	// 答题
	rg.POST("/quizzes/:id/attempts", c.attempt.SubmitAttempt)
	rg.GET("/quizzes/:id/attempts", c.attempt.ListAttempts)
	rg.GET("/attempts/:id", c.attempt.GetAttempt)

	// 评论与举报
	rg.POST("/quizzes/:id/comments", c.feedback.AddComment)
	rg.DELETE("/comments/:id", c.feedback.DeleteComment)
	rg.POST("/quizzes/:id/reports", c.feedback.ReportQuiz)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(a.secret), middleware.ActivityMiddleware(repos.user), middleware.AdminMiddleware())
	{
		admin.GET("/reports", c.admin.ListReports)
		admin.POST("/quizzes/:id/recompute", c.admin.RecomputeQuizStats)
	}
}
