package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/kannan2410/saashrm/internal/auth"
	"github.com/kannan2410/saashrm/internal/config"
	"github.com/kannan2410/saashrm/internal/metrics"
	"github.com/kannan2410/saashrm/internal/mw"
	"github.com/kannan2410/saashrm/internal/ws"
)

// SetupRouter 统一初始化 Gin 中间件、聊天 REST API 与 websocket 端点。
func SetupRouter(cfg config.Config, h *Handler, gateway *ws.Gateway) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigin))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", gateway.Serve())

	api := r.Group("/api/v1/chat")
	api.Use(auth.Middleware(cfg))
	api.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	api.POST("/channels", h.CreateChannel)
	api.GET("/channels", h.ListChannels)
	api.GET("/channels/:id/messages", h.ListMessages)
	api.GET("/channels/:id/pinned", h.PinnedMessages)
	api.POST("/channels/:id/join", h.JoinChannel)
	api.GET("/channels/:id/members", h.Members)
	api.POST("/channels/:id/members", h.AddMember)
	api.GET("/channels/:id/read-status", h.ReadStatus)
	api.GET("/users", h.CompanyUsers)
	api.GET("/dm", h.DirectMessages)
	api.POST("/dm", h.StartDirectMessage)
	api.POST("/messages/:id/pin", h.PinMessage)
	api.DELETE("/messages/:id", h.DeleteMessage)
	api.PATCH("/status", h.UpdateStatus)
	api.POST("/upload", h.UploadFile)

	// 本地 blob 后端时由服务进程直接吐附件
	if cfg.BlobBackend == "local" {
		r.Static("/uploads", cfg.BlobLocalDir)
	}
	return r
}
