package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/atelierhq/evolink-http/internal/logger"
	"github.com/atelierhq/evolink-http/internal/server/handler"
)

func Start(host, port, apiKey string, h *handler.Handler) {
	router := InitRouter(apiKey, h)
	if err := router.Run(host + ":" + port); err != nil {
		panic(err)
	}
}

func PermissionCheckMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestKey := c.GetHeader("API-KEY")
		if requestKey != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid API key",
			})
			return
		}
		c.Next()
	}
}

func InitRouter(apiKey string, h *handler.Handler) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.RecoveryWithZap(logger.ZapLogger, true))
	router.Use(ginzap.Ginzap(logger.ZapLogger, time.RFC3339Nano, true))
	router.Use(cors.Default())
	pprof.Register(router)

	apiGroup := router.Group("/v1", PermissionCheckMiddleware(apiKey))
	apiGroup.POST("/generations", h.CreateGenerationTask)
	apiGroup.GET("/generations/:task_id", h.GetGenerationTask)

	apiGroup.POST("/fabric-swap", h.CreateFabricSwapTask)
	apiGroup.POST("/try-on", h.CreateTryOnTask)
	apiGroup.POST("/prompt-extract", h.ExtractPrompt)
	apiGroup.POST("/uploads", h.UploadReference)

	apiGroup.POST("/jobs", h.SubmitJob)
	apiGroup.GET("/jobs", h.ListJobs)
	apiGroup.GET("/jobs/:client_id", h.GetJob)
	apiGroup.DELETE("/jobs/queued", h.CancelQueuedJobs)
	apiGroup.DELETE("/jobs", h.ResetJobs)
	return router
}
