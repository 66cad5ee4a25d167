package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/hotowire-server/internal/core"
	"github.com/vovakirdan/hotowire-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: logger}
}

// Handle admits a connection carrying the identity triple in its query
// parameters. An incomplete triple is refused before the upgrade, so no
// socket ever comes up for it.
func (h *WSHandler) Handle(c *gin.Context) {
	identity := core.Identity{
		UserID:   c.Query("userId"),
		UserName: c.Query("userName"),
		UserRole: core.Role(c.Query("userRole")),
	}
	if err := identity.Validate(); err != nil {
		h.log.Warn().Str("remote", c.Request.RemoteAddr).Msg("ws connect with incomplete identity")
		c.String(stdhttp.StatusBadRequest, "userId, userName and userRole are required")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(identity, func() {
		conn.Close(websocket.StatusGoingAway, "liveness timeout")
	})
	if err := h.hub.Admit(client); err != nil {
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer h.hub.RemoveClient(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user_id", identity.UserID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			// Malformed body: report and keep the connection open.
			h.log.Warn().Err(err).Str("user_id", client.Identity.UserID).Msg("malformed ws frame")
			if writeErr := h.writeProtoError(ctx, conn, "malformed message body"); writeErr != nil {
				return writeErr
			}
			continue
		}

		cmd, protoErr := inboundToCommand(client, inbound)
		if protoErr != nil {
			h.log.Warn().
				Str("user_id", client.Identity.UserID).
				Str("type", inbound.Type).
				Str("reason", protoErr.Message).
				Msg("rejected ws frame")
			if writeErr := wsjson.Write(ctx, conn, protoErr); writeErr != nil {
				return writeErr
			}
			continue
		}
		h.hub.Submit(client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("user_id", client.Identity.UserID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeProtoError(ctx context.Context, conn *websocket.Conn, msg string) error {
	return wsjson.Write(ctx, conn, proto.Error{
		Type:      proto.TypeError,
		Code:      core.ErrCodeProtocol,
		Message:   msg,
		Timestamp: timeNow(),
	})
}
