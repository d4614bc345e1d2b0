package app

import (
	"techacademy_backend/docs"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/middleware"
	"techacademy_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearningRoutes(authGroup, c)

		// 3. 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/login", c.auth.Login)
		public.GET("/roles", c.user.ListRoles)
	}
}

// registerLearningRoutes 所有登录用户可访问
func (a *App) registerLearningRoutes(group *gin.RouterGroup, c *controllers) {
	learning := group.Group("")
	learning.Use(middleware.AnyRole())
	{
		learning.GET("/courses", c.course.ListCourses)
		learning.GET("/courses/entry/:entryId", c.course.GetCourseEntry)
		learning.GET("/courses/:courseId", c.course.GetCourse)
		learning.GET("/course-modules", c.course.ListModules)
		learning.GET("/taxonomy", c.course.GetTaxonomy)
		learning.GET("/contentstack-docs", c.course.GetDocsUpdates)

		learning.GET("/courses/:courseId/progress", c.progress.GetProgress)
		learning.POST("/courses/:courseId/progress", c.progress.CompleteModule)

		learning.GET("/courses/:courseId/test", c.knowledgeCheck.GetTest)
		learning.POST("/courses/:courseId/test/submit", c.knowledgeCheck.SubmitTest)
		learning.GET("/courses/:courseId/test/submissions", c.knowledgeCheck.ListSubmissions)

		learning.GET("/training-plans/progress", c.trainingPlan.PlanProgress)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("")
	admin.Use(middleware.AdminOnly())
	{
		admin.GET("/users", c.user.ListUsers)
		admin.POST("/users", c.user.InviteUser)
		admin.DELETE("/users/:userId", c.user.DeleteUser)
		admin.GET("/users/trainers", c.user.ListTrainers)
		admin.GET("/users/trainees", c.user.ListTrainees)

		admin.GET("/training-plans", c.trainingPlan.ListPlans)
		admin.POST("/training-plans", c.trainingPlan.CreatePlan)

		admin.GET("/courses/progress/admin", c.progress.AdminProgress)
	}
}
