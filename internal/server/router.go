package server

import (
	"net/http"
	"time"

	"anonchat/internal/config"
	"anonchat/internal/geo"
	"anonchat/internal/metrics"
	"anonchat/internal/mw"
	"anonchat/internal/store"
	"anonchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、状态端点与 WebSocket 端点。
func SetupRouter(cfg config.Config, sessions *store.SessionStore, history *store.MessageLog, limiter *store.RateLimiter, resolver *geo.Resolver, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.AllowedOrigins))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	// 存活探针：附带当前会话数与历史消息条数，均为只读。
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"users":    sessions.Len(),
			"messages": history.Len(),
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", ws.Serve(hub, sessions, history, limiter, resolver, cfg))

	return r
}
