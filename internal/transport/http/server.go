package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/hotowire-server/internal/config"
	"github.com/vovakirdan/hotowire-server/internal/core"
)

// NewServer builds the HTTP server hosting the WebSocket endpoint, the
// health check and the read-only presence projection.
func NewServer(hub *core.Hub, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", healthHandler)
	router.GET("/api/online", onlineHandler(hub))

	wsPath := cfg.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	ws := NewWSHandler(hub, logger)
	router.GET(wsPath, ws.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
