package client

import (
	"sync"

	"github.com/vovakirdan/hotowire-server/internal/proto"
)

// OutboundState tracks the lifecycle of an invitation this client sent.
type OutboundState int

const (
	OutboundIdle OutboundState = iota
	OutboundRequestSent
)

// InboundState tracks the lifecycle of an invitation this client received.
type InboundState int

const (
	InboundIdle InboundState = iota
	InboundInvited
)

// tracker is the invitation state machine. Outbound moves IDLE ->
// REQUEST_SENT on request and back to IDLE once the server answers (accepted,
// rejected, error) or the request is cancelled locally. Inbound moves IDLE ->
// INVITED on an invitation and back to IDLE when the holder responds; a new
// invitation received while INVITED replaces the remembered one, mirroring
// the server's single-slot overwrite.
type tracker struct {
	mu       sync.Mutex
	outbound OutboundState
	target   string
	inbound  InboundState
	invite   *proto.HandoverInvitation
}

func (t *tracker) noteRequested(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outbound = OutboundRequestSent
	t.target = target
}

func (t *tracker) noteResolved() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outbound = OutboundIdle
	t.target = ""
}

func (t *tracker) requestTarget() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outbound != OutboundRequestSent {
		return "", false
	}
	return t.target, true
}

func (t *tracker) noteInvitation(inv *proto.HandoverInvitation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A second invitation silently replaces the first; the superseded
	// inviter gets no notice unless the server sends one.
	t.inbound = InboundInvited
	t.invite = inv
}

func (t *tracker) noteWithdrawn(fromUserID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inbound != InboundInvited || t.invite == nil {
		return
	}
	if fromUserID != "" && t.invite.FromUserID != fromUserID {
		// Cancellation for an invitation already replaced in the slot.
		return
	}
	t.inbound = InboundIdle
	t.invite = nil
}

func (t *tracker) consumeInvitation() (*proto.HandoverInvitation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inbound != InboundInvited || t.invite == nil {
		return nil, false
	}
	inv := t.invite
	t.inbound = InboundIdle
	t.invite = nil
	return inv, true
}

func (t *tracker) outboundState() OutboundState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outbound
}

func (t *tracker) inboundState() InboundState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inbound
}

func (t *tracker) invitation() (*proto.HandoverInvitation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.invite == nil {
		return nil, false
	}
	inv := *t.invite
	return &inv, true
}
