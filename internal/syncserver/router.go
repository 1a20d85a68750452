package syncserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shiftscheduler/config"
	"shiftscheduler/pkg/jwt"
	"shiftscheduler/pkg/redis"
)

// NewRouter builds the gin engine: health check open, token endpoint rate
// limited, everything under /sync behind the bearer token.
func NewRouter(cfg *config.ServeConfig, h *Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/token",
			RateLimit(rdb, cfg.TokenRateLimit, cfg.TokenRateWindow),
			h.Token)

		sync := v1.Group("/sync")
		sync.Use(JWTAuth(jwtMgr))
		{
			sync.POST("/upload", h.Upload)
			sync.GET("/download", h.Download)
			sync.GET("/conflicts", h.Conflicts)
			sync.POST("/conflicts/:id/resolve", h.ResolveConflict)
			sync.POST("/reset", h.Reset)
		}
	}

	return r
}
