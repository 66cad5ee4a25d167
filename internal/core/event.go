package core

import "time"

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventWelcome greets a freshly admitted connection with the online list.
	EventWelcome EventKind = iota
	// EventUserStatus announces a presence change to every admitted client.
	EventUserStatus
	// EventOnlineUsers delivers a requested snapshot of the online list.
	EventOnlineUsers
	// EventInvitation notifies the target of an incoming handover offer.
	EventInvitation
	// EventSent confirms to the requester that the invitation went out.
	EventSent
	// EventAccepted notifies the requester that the offer was accepted.
	EventAccepted
	// EventConfirmed confirms to the responder their acceptance was recorded.
	EventConfirmed
	// EventRejected notifies the requester that the offer was declined.
	EventRejected
	// EventCancelled notifies the target that the offer was withdrawn.
	EventCancelled
	// EventCancelledAck confirms the withdrawal to the canceller.
	EventCancelledAck
	// EventHandoverError reports a failed request back to its initiator.
	EventHandoverError
)

// Status values carried by presence events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Presence is one row of the online-users projection.
type Presence struct {
	UserID   string
	UserName string
	UserRole Role
	Status   string
	LastSeen time.Time
}

// HandoverEvent carries the fields specific to handover notifications.
// Only the fields meaningful for the event kind are set.
type HandoverEvent struct {
	FromUserID   string
	FromUserName string
	FromUserRole Role
	ToUserID     string
	ToUserName   string
	StoreID      string
	StoreName    string
	Remarks      string
	Reason       string
}

// Event is pushed to a client's event channel.
type Event struct {
	Kind     EventKind
	UserID   string     // subject of welcome / user_status
	Status   string     // online or offline for user_status
	Online   []Presence // welcome, user_status and online_users carry the list
	Handover *HandoverEvent
	Error    *CoreError
	At       time.Time
}
