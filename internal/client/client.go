// Package client implements the connecting side of the real-time handover
// channel: transport lifecycle with heartbeats and bounded reconnection,
// plus the invitation state machine.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/hotowire-server/internal/core"
	"github.com/vovakirdan/hotowire-server/internal/proto"
)

// State of the connection manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// Defaults observed in the field.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
)

var (
	// ErrNotConnected is returned when an operation needs a live channel.
	ErrNotConnected = errors.New("not connected")
	// ErrNoInvitation is returned when responding with no invitation held.
	ErrNoInvitation = errors.New("no pending invitation")
	// ErrNoOutboundRequest is returned when cancelling with nothing sent.
	ErrNoOutboundRequest = errors.New("no outbound request")
	// ErrConnecting is returned when a connection attempt is already running.
	ErrConnecting = errors.New("connection attempt in progress")
	// ErrClosed is returned after an explicit Disconnect.
	ErrClosed = errors.New("client closed")
)

// Handler consumes one inbound frame of a given type.
type Handler func(data json.RawMessage)

// Config tunes the client. URL points at the server's upgrade endpoint,
// e.g. ws://localhost:8080/ws.
type Config struct {
	URL                  string
	Identity             core.Identity
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	Policy               core.PolicyMode
	Logger               *zerolog.Logger
}

// Client owns one duplex channel to the handover server. Transport loss
// triggers bounded automatic reconnection unless Disconnect was called.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	attempts       int
	closed         bool
	sessionCancel  context.CancelFunc
	reconnectTimer *time.Timer
	handlers       map[string]Handler
	onState        func(connected bool)

	invitations tracker
}

// New validates the configuration and builds a disconnected client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = core.PolicySameTeam
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "hoto-client").Logger()
	}
	return &Client{
		cfg:      cfg,
		log:      logger,
		handlers: make(map[string]Handler),
	}, nil
}

// On registers the single callback for a frame type, replacing any previous
// one. Frames with no registered callback are logged and dropped.
func (c *Client) On(msgType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = h
}

// OnConnectionChange registers a callback fired on connect and disconnect.
func (c *Client) OnConnectionChange(f func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = f
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the channel, carrying the identity triple in the upgrade
// request, and starts the heartbeat and read loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateConnecting {
		// A user call racing the reconnect timer must not dial twice and
		// leak the loser's socket.
		c.mu.Unlock()
		return ErrConnecting
	}
	c.state = StateConnecting
	c.mu.Unlock()

	target, err := c.dialURL()
	if err != nil {
		c.setDisconnected()
		return err
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		c.setDisconnected()
		return fmt.Errorf("dial: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.sessionCancel = cancel
	notify := c.onState
	c.mu.Unlock()

	c.log.Info().Str("url", c.cfg.URL).Msg("connected")
	if notify != nil {
		notify(true)
	}

	go c.heartbeatLoop(sessionCtx)
	go c.readLoop(sessionCtx, conn)
	return nil
}

// Disconnect closes the channel deterministically and suppresses any
// scheduled reconnection. The client cannot be reused afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	c.log.Info().Msg("disconnected")
}

// RequestHandover offers a store to another online user and moves the
// outbound state machine to REQUEST_SENT.
func (c *Client) RequestHandover(ctx context.Context, toUserID, storeID, storeName, remarks string) error {
	if toUserID == "" {
		return errors.New("toUserId is required")
	}
	err := c.send(ctx, proto.Inbound{
		Type:         proto.TypeHandoverRequest,
		FromUserID:   c.cfg.Identity.UserID,
		FromUserName: c.cfg.Identity.UserName,
		FromUserRole: string(c.cfg.Identity.UserRole),
		ToUserID:     toUserID,
		StoreID:      storeID,
		StoreName:    storeName,
		Remarks:      remarks,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	c.invitations.noteRequested(toUserID)
	return nil
}

// Respond consumes the held invitation, answering its sender.
func (c *Client) Respond(ctx context.Context, accepted bool, reason string) error {
	inv, ok := c.invitations.consumeInvitation()
	if !ok {
		return ErrNoInvitation
	}
	return c.send(ctx, proto.Inbound{
		Type:       proto.TypeHandoverResponse,
		FromUserID: inv.FromUserID,
		ToUserID:   c.cfg.Identity.UserID,
		Accepted:   &accepted,
		Reason:     reason,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// CancelRequest withdraws the outstanding outbound invitation.
func (c *Client) CancelRequest(ctx context.Context) error {
	target, ok := c.invitations.requestTarget()
	if !ok {
		return ErrNoOutboundRequest
	}
	err := c.send(ctx, proto.Inbound{
		Type:       proto.TypeCancelHandover,
		FromUserID: c.cfg.Identity.UserID,
		ToUserID:   target,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	c.invitations.noteResolved()
	return nil
}

// RequestOnlineUsers asks the server for a fresh presence snapshot.
func (c *Client) RequestOnlineUsers(ctx context.Context) error {
	return c.send(ctx, proto.Inbound{
		Type:   proto.TypeGetOnlineUsers,
		UserID: c.cfg.Identity.UserID,
	})
}

// Invitation returns a copy of the currently held inbound invitation.
func (c *Client) Invitation() (*proto.HandoverInvitation, bool) {
	return c.invitations.invitation()
}

// OutboundState exposes the outbound invitation state.
func (c *Client) OutboundState() OutboundState {
	return c.invitations.outboundState()
}

// InboundState exposes the inbound invitation state.
func (c *Client) InboundState() InboundState {
	return c.invitations.inboundState()
}

// CanHandoverTo applies the local eligibility filter: never to self, and
// only to targets the configured policy permits.
func (c *Client) CanHandoverTo(targetUserID string, targetRole core.Role) bool {
	if targetUserID == c.cfg.Identity.UserID {
		return false
	}
	return c.cfg.Policy.Permit(c.cfg.Identity.UserRole, targetRole)
}

func (c *Client) setDisconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("userId", c.cfg.Identity.UserID)
	q.Set("userName", c.cfg.Identity.UserName)
	q.Set("userRole", string(c.cfg.Identity.UserRole))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) send(ctx context.Context, v any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, v)
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.send(ctx, proto.Inbound{
				Type:   proto.TypeHeartbeat,
				UserID: c.cfg.Identity.UserID,
			})
			if err != nil {
				c.log.Debug().Err(err).Msg("heartbeat send failed")
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					c.log.Warn().Err(err).Msg("read error")
				}
			}
			c.handleTransportLoss(conn)
			return
		}
		c.dispatch(data)
	}
}

// dispatch routes one frame by its discriminator: first through the
// invitation state machine, then to the registered callback.
func (c *Client) dispatch(data []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn().Err(err).Msg("malformed frame")
		return
	}

	switch env.Type {
	case proto.TypeHandoverInvitation:
		var inv proto.HandoverInvitation
		if err := json.Unmarshal(data, &inv); err != nil {
			c.log.Warn().Err(err).Msg("malformed invitation")
			return
		}
		c.invitations.noteInvitation(&inv)
	case proto.TypeHandoverAccepted, proto.TypeHandoverRejected, proto.TypeHandoverError:
		c.invitations.noteResolved()
	case proto.TypeHandoverCancelled:
		var cancelled proto.HandoverCancelled
		if err := json.Unmarshal(data, &cancelled); err == nil {
			c.invitations.noteWithdrawn(cancelled.FromUserID)
		}
	}

	c.mu.Lock()
	h, ok := c.handlers[env.Type]
	c.mu.Unlock()
	if !ok {
		c.log.Debug().Str("type", env.Type).Msg("unrecognized message type, dropping")
		return
	}
	h(data)
}

func (c *Client) handleTransportLoss(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer session already replaced this connection.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	closed := c.closed
	notify := c.onState
	c.mu.Unlock()

	if notify != nil {
		notify(false)
	}
	if closed {
		return
	}
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		c.log.Warn().Int("attempts", c.cfg.MaxReconnectAttempts).Msg("max reconnection attempts reached")
		return
	}
	c.attempts++
	attempt := c.attempts
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.log.Info().
			Int("attempt", attempt).
			Int("max", c.cfg.MaxReconnectAttempts).
			Msg("reconnecting")
		if err := c.Connect(context.Background()); err != nil {
			c.log.Warn().Err(err).Msg("reconnect failed")
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
}
