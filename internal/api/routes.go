package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finsight/finsight-go/internal/api/handlers"
	"github.com/finsight/finsight-go/internal/config"
)

// SetupRoutes registers all HTTP routes on the router.
func SetupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	analysisHandler *handlers.AnalysisHandler,
) {
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	router.Use(bodyLimitMiddleware(int64(cfg.Server.MaxUploadMB) << 20))

	router.GET("/health", healthHandler.Health)
	router.HEAD("/health", healthHandler.Health)
	router.GET("/live", healthHandler.Live)

	v1 := router.Group("/api/v1")
	{
		statements := v1.Group("/statements")
		{
			statements.POST("/analyze", analysisHandler.Analyze)
		}
	}
}

// corsMiddleware allows cross-origin requests from the configured origins.
// An empty list allows any origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (len(allowed) == 0 || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, HEAD, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bodyLimitMiddleware caps request body size; statements with thousands of
// rows are fine, but unbounded uploads are not.
func bodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
