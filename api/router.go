package api

import (
	"net/http"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/handler"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(sessionHandler *handler.SessionHandler) *gin.Engine {
	router := gin.New()

	// 应用全局中间件，追踪ID需要在日志和错误处理之前设置
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			// 创建会话 - POST /api/sessions
			sessions.POST("", sessionHandler.CreateSession)

			// 会话状态 - GET /api/sessions/:id
			sessions.GET("/:id", sessionHandler.GetSession)

			// 删除会话 - DELETE /api/sessions/:id
			sessions.DELETE("/:id", sessionHandler.DeleteSession)

			// 上传工作簿 - POST /api/sessions/:id/workbook
			sessions.POST("/:id/workbook", sessionHandler.UploadWorkbook)

			// 摘要 - POST /api/sessions/:id/summary
			sessions.POST("/:id/summary", sessionHandler.Summary)

			// 问答 - POST /api/sessions/:id/ask
			sessions.POST("/:id/ask", sessionHandler.Ask)

			// 仪表盘 - POST /api/sessions/:id/dashboard
			sessions.POST("/:id/dashboard", sessionHandler.Dashboard)

			// 历史 - GET /api/sessions/:id/history
			sessions.GET("/:id/history", sessionHandler.History)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
