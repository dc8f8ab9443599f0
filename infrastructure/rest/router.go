// Package rest exposes the HTTP routes next to the websocket endpoint.
package rest

import (
	"chat-presence/observability"
	"chat-presence/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires every route. ws is mounted on GET /ws.
func NewRouter(
	log *slog.Logger,
	service services.IChatService,
	monitoring *observability.MonitoringManager,
	ws http.Handler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(log))

	h := &handler{log: log, service: service, monitoring: monitoring}

	router.GET("/health", h.health)
	router.GET("/ws", gin.WrapH(ws))

	router.GET("/rooms/:roomId/messages", h.history)
	router.POST("/messages/:id/react", h.react)
	router.POST("/messages/:id/read", h.read)

	api := router.Group("/api")
	api.GET("/messages/:roomId", h.history)
	api.GET("/users", h.users)

	return router
}

func loggerMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
