package core

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Liveness defaults: a user with no heartbeat for StaleTimeout is collected
// by a sweep that runs every SweepInterval.
const (
	DefaultStaleTimeout  = 45 * time.Second
	DefaultSweepInterval = 15 * time.Second
)

// PendingInvitation is the single outstanding handover offer addressed to a
// target user. At most one exists per target; a newer request to the same
// target silently replaces it.
type PendingInvitation struct {
	FromUserID   string
	FromUserName string
	FromUserRole Role
	StoreID      string
	StoreName    string
	Remarks      string
	CreatedAt    time.Time
}

// HubOptions tune the hub. Zero values fall back to defaults.
type HubOptions struct {
	Policy        PolicyMode
	StaleTimeout  time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
}

// Hub owns the presence registry and the pending-invitation map. All
// mutations happen on the single goroutine running Run, so every command is
// processed to completion before the next one and the sweep never races a
// heartbeat.
type Hub struct {
	log    zerolog.Logger
	clock  clock.Clock
	policy PolicyMode

	staleTimeout  time.Duration
	sweepInterval time.Duration

	inbox chan envelope

	online  map[string]*entry
	order   []string // admit order for snapshots
	pending map[string]*PendingInvitation
}

type entry struct {
	client   *Client
	lastSeen time.Time
}

// envelope is one unit of work for the hub goroutine. Exactly one of the
// fields is used.
type envelope struct {
	admit  *Client
	remove *Client
	cmd    *Command
	client *Client // issuer of cmd
	fn     func()  // synchronous queries and test hooks
}

// NewHub creates the coordination hub. It does nothing until Run is called.
func NewHub(logger *zerolog.Logger, opts HubOptions) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = DefaultStaleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if !opts.Policy.Valid() {
		opts.Policy = PolicySameTeam
	}
	return &Hub{
		log:           logger.With().Str("component", "hub").Logger(),
		clock:         opts.Clock,
		policy:        opts.Policy,
		staleTimeout:  opts.StaleTimeout,
		sweepInterval: opts.SweepInterval,
		inbox:         make(chan envelope, 64),
		online:        make(map[string]*entry),
		pending:       make(map[string]*PendingInvitation),
	}
}

// Run processes commands until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.Ticker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.inbox:
			h.handle(env)
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Admit registers a connection with a complete identity. A second login for
// the same user supersedes the first without closing it. The new connection
// receives a welcome snapshot and everyone gets a status broadcast.
func (h *Hub) Admit(c *Client) error {
	if err := c.Identity.Validate(); err != nil {
		return &CoreError{Code: ErrCodeValidation, Message: err.Error()}
	}
	h.inbox <- envelope{admit: c}
	return nil
}

// RemoveClient drops the registry entry held by c, if c still holds it. A
// close event from a superseded connection leaves the newer entry alone.
func (h *Hub) RemoveClient(c *Client) {
	h.inbox <- envelope{remove: c}
}

// Submit queues a protocol command issued by an admitted client.
func (h *Hub) Submit(c *Client, cmd *Command) {
	h.inbox <- envelope{client: c, cmd: cmd}
}

// Snapshot returns the online list in admit order. It round-trips through
// the hub goroutine, so it observes every previously submitted command.
func (h *Hub) Snapshot() []Presence {
	reply := make(chan []Presence, 1)
	h.inbox <- envelope{fn: func() { reply <- h.snapshot() }}
	return <-reply
}

// Pending returns a copy of the invitation addressed to target, if any.
func (h *Hub) Pending(target string) (PendingInvitation, bool) {
	type result struct {
		inv PendingInvitation
		ok  bool
	}
	reply := make(chan result, 1)
	h.inbox <- envelope{fn: func() {
		if inv, ok := h.pending[target]; ok {
			reply <- result{*inv, true}
			return
		}
		reply <- result{}
	}}
	r := <-reply
	return r.inv, r.ok
}

func (h *Hub) handle(env envelope) {
	switch {
	case env.fn != nil:
		env.fn()
	case env.admit != nil:
		h.handleAdmit(env.admit)
	case env.remove != nil:
		h.handleRemoveClient(env.remove)
	case env.cmd != nil:
		h.handleCommand(env.client, env.cmd)
	}
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandHeartbeat:
		h.handleHeartbeat(cmd.UserID)
	case CommandRequestHandover:
		h.handleRequest(cmd.Request)
	case CommandRespondHandover:
		h.handleResponse(cmd.Response)
	case CommandCancelHandover:
		h.handleCancel(cmd.Cancel)
	case CommandListOnline:
		h.handleListOnline(cmd.UserID)
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command kind")
	}
}

func (h *Hub) handleAdmit(c *Client) {
	id := c.Identity.UserID
	if prev, ok := h.online[id]; ok {
		// Last write wins. The old connection stays open but loses its
		// routing; the sweep collects it once its heartbeats stop counting.
		h.log.Info().
			Str("user_id", id).
			Str("old_conn", prev.client.ConnID).
			Str("new_conn", c.ConnID).
			Msg("duplicate login, superseding connection")
	} else {
		h.order = append(h.order, id)
	}
	h.online[id] = &entry{client: c, lastSeen: h.clock.Now()}

	h.log.Info().
		Str("user_id", id).
		Str("user_name", c.Identity.UserName).
		Str("user_role", string(c.Identity.UserRole)).
		Msg("user connected")

	c.push(&Event{
		Kind:   EventWelcome,
		UserID: id,
		Online: h.snapshot(),
		At:     h.clock.Now(),
	})
	h.broadcastStatus(id, StatusOnline)
}

func (h *Hub) handleRemoveClient(c *Client) {
	id := c.Identity.UserID
	e, ok := h.online[id]
	if !ok || e.client != c {
		return
	}
	h.removeUser(id)
}

// removeUser deletes the registry entry and any invitation targeting the
// user, then broadcasts the offline status. Idempotent.
func (h *Hub) removeUser(id string) {
	e, ok := h.online[id]
	if !ok {
		return
	}
	delete(h.online, id)
	h.dropOrder(id)
	// An invitation cannot be answered by someone no longer reachable.
	delete(h.pending, id)

	h.log.Info().
		Str("user_id", id).
		Str("user_name", e.client.Identity.UserName).
		Msg("user disconnected")

	h.broadcastStatus(id, StatusOffline)
}

func (h *Hub) handleHeartbeat(userID string) {
	e, ok := h.online[userID]
	if !ok {
		// Normal race between a stale heartbeat and a processed disconnect.
		h.log.Debug().Str("user_id", userID).Msg("heartbeat from unregistered user")
		return
	}
	e.lastSeen = h.clock.Now()
}

func (h *Hub) handleRequest(req *HandoverRequest) {
	from, fromOnline := h.online[req.FromUserID]
	target, ok := h.online[req.ToUserID]
	if !ok {
		if fromOnline {
			h.pushHandoverError(from.client, req.ToUserID, ErrCodeTargetUnavailable,
				"Target user is offline. Cannot initiate handover.")
		}
		return
	}
	if !fromOnline {
		// Nowhere to send feedback; drop the request.
		h.log.Warn().Str("from", req.FromUserID).Msg("handover request from unregistered user")
		return
	}

	fromRole := from.client.Identity.UserRole
	toRole := target.client.Identity.UserRole
	if !h.policy.Permit(fromRole, toRole) {
		h.pushHandoverError(from.client, req.ToUserID, ErrCodeAuthorization, fmt.Sprintf(
			"Cannot handover between %s and %s. Team restrictions apply.",
			fromRole, toRole))
		return
	}

	now := h.clock.Now()
	h.pending[req.ToUserID] = &PendingInvitation{
		FromUserID:   req.FromUserID,
		FromUserName: from.client.Identity.UserName,
		FromUserRole: fromRole,
		StoreID:      req.StoreID,
		StoreName:    req.StoreName,
		Remarks:      req.Remarks,
		CreatedAt:    now,
	}

	target.client.push(&Event{
		Kind: EventInvitation,
		Handover: &HandoverEvent{
			FromUserID:   req.FromUserID,
			FromUserName: from.client.Identity.UserName,
			FromUserRole: fromRole,
			StoreID:      req.StoreID,
			StoreName:    req.StoreName,
			Remarks:      req.Remarks,
		},
		At: now,
	})
	from.client.push(&Event{
		Kind: EventSent,
		Handover: &HandoverEvent{
			ToUserID:   req.ToUserID,
			ToUserName: target.client.Identity.UserName,
		},
		At: now,
	})

	h.log.Info().
		Str("from", req.FromUserID).
		Str("to", req.ToUserID).
		Str("store_id", req.StoreID).
		Msg("handover invitation routed")
}

func (h *Hub) handleResponse(resp *HandoverResponse) {
	// Consume the slot unconditionally; the response wins whatever race it
	// was in. The claimed requester is taken from the payload, not from the
	// deleted record.
	delete(h.pending, resp.ToUserID)

	from, fromOnline := h.online[resp.FromUserID]
	to, toOnline := h.online[resp.ToUserID]
	now := h.clock.Now()

	if !resp.Accepted {
		if fromOnline {
			from.client.push(&Event{
				Kind: EventRejected,
				Handover: &HandoverEvent{
					FromUserID: resp.FromUserID,
					ToUserID:   resp.ToUserID,
					Reason:     resp.Reason,
				},
				At: now,
			})
		}
		h.log.Info().Str("from", resp.FromUserID).Str("to", resp.ToUserID).Msg("handover rejected")
		return
	}

	toName := "Unknown"
	if toOnline {
		toName = to.client.Identity.UserName
	}
	if fromOnline {
		from.client.push(&Event{
			Kind: EventAccepted,
			Handover: &HandoverEvent{
				FromUserID: resp.FromUserID,
				ToUserID:   resp.ToUserID,
				ToUserName: toName,
			},
			At: now,
		})
	}
	if toOnline {
		to.client.push(&Event{
			Kind: EventConfirmed,
			Handover: &HandoverEvent{
				FromUserID: resp.FromUserID,
				ToUserID:   resp.ToUserID,
			},
			At: now,
		})
	}
	h.log.Info().Str("from", resp.FromUserID).Str("to", resp.ToUserID).Msg("handover accepted")
}

func (h *Hub) handleCancel(cancel *HandoverCancel) {
	// Delete-if-present; cancelling an already-consumed slot is not an error.
	delete(h.pending, cancel.ToUserID)

	now := h.clock.Now()
	if to, ok := h.online[cancel.ToUserID]; ok {
		to.client.push(&Event{
			Kind:     EventCancelled,
			Handover: &HandoverEvent{FromUserID: cancel.FromUserID},
			At:       now,
		})
	}
	if from, ok := h.online[cancel.FromUserID]; ok {
		from.client.push(&Event{
			Kind:     EventCancelledAck,
			Handover: &HandoverEvent{ToUserID: cancel.ToUserID},
			At:       now,
		})
	}
}

func (h *Hub) handleListOnline(userID string) {
	e, ok := h.online[userID]
	if !ok {
		return
	}
	e.client.push(&Event{
		Kind:   EventOnlineUsers,
		Online: h.snapshot(),
		At:     h.clock.Now(),
	})
}

// sweep evicts every entry whose heartbeat went stale and force-closes its
// connection. Detects half-open connections that never fire a close event.
func (h *Hub) sweep() {
	now := h.clock.Now()
	stale := make([]string, 0)
	for id, e := range h.online {
		if now.Sub(e.lastSeen) > h.staleTimeout {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		e := h.online[id]
		h.log.Info().
			Str("user_id", id).
			Str("user_name", e.client.Identity.UserName).
			Msg("user timed out")
		if e.client.closeConn != nil {
			e.client.closeConn()
		}
		h.removeUser(id)
	}
}

func (h *Hub) pushHandoverError(c *Client, targetUserID, code, message string) {
	c.push(&Event{
		Kind:     EventHandoverError,
		Handover: &HandoverEvent{ToUserID: targetUserID},
		Error:    &CoreError{Code: code, Message: message},
		At:       h.clock.Now(),
	})
}

func (h *Hub) snapshot() []Presence {
	list := make([]Presence, 0, len(h.online))
	for _, id := range h.order {
		e, ok := h.online[id]
		if !ok {
			continue
		}
		list = append(list, Presence{
			UserID:   id,
			UserName: e.client.Identity.UserName,
			UserRole: e.client.Identity.UserRole,
			Status:   StatusOnline,
			LastSeen: e.lastSeen,
		})
	}
	return list
}

func (h *Hub) broadcastStatus(userID, status string) {
	ev := &Event{
		Kind:   EventUserStatus,
		UserID: userID,
		Status: status,
		Online: h.snapshot(),
		At:     h.clock.Now(),
	}
	for _, id := range h.order {
		if e, ok := h.online[id]; ok {
			e.client.push(ev)
		}
	}
}

func (h *Hub) dropOrder(id string) {
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}
