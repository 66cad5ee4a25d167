package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/hotowire-server/internal/core"
	"github.com/vovakirdan/hotowire-server/internal/proto"
)

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

// onlineHandler exposes the presence snapshot for operational tooling. The
// projection is read-only; nothing here can mutate registry state.
func onlineHandler(hub *core.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, proto.OnlineUsers{
			Type:        proto.TypeOnlineUsers,
			OnlineUsers: onlineUsersFromPresence(hub.Snapshot()),
			Timestamp:   time.Now(),
		})
	}
}
