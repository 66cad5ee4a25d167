// Package proto defines the wire protocol of the real-time handover channel.
// Every frame is a flat JSON object whose "type" field selects the variant.
package proto

import "time"

// Client to server frame types.
const (
	TypeHeartbeat        = "heartbeat"
	TypeHandoverRequest  = "handover_request"
	TypeHandoverResponse = "handover_response"
	TypeCancelHandover   = "cancel_handover"
	TypeGetOnlineUsers   = "get_online_users"
)

// Server to client frame types.
const (
	TypeWelcome              = "welcome"
	TypeUserStatus           = "user_status"
	TypeOnlineUsers          = "online_users"
	TypeHandoverInvitation   = "handover_invitation"
	TypeHandoverSent         = "handover_sent"
	TypeHandoverError        = "handover_error"
	TypeHandoverAccepted     = "handover_accepted"
	TypeHandoverConfirmed    = "handover_confirmed"
	TypeHandoverRejected     = "handover_rejected"
	TypeHandoverCancelled    = "handover_cancelled"
	TypeHandoverCancelledAck = "handover_cancelled_ack"
	TypeError                = "error"
)

// Envelope is the minimal view used to pick the variant before decoding.
type Envelope struct {
	Type string `json:"type"`
}

// Inbound is the flat client-to-server frame. The type discriminator decides
// which fields are meaningful; the rest stay empty.
type Inbound struct {
	Type         string `json:"type"`
	UserID       string `json:"userId,omitempty"`
	FromUserID   string `json:"fromUserId,omitempty"`
	FromUserName string `json:"fromUserName,omitempty"`
	FromUserRole string `json:"fromUserRole,omitempty"`
	ToUserID     string `json:"toUserId,omitempty"`
	StoreID      string `json:"storeId,omitempty"`
	StoreName    string `json:"storeName,omitempty"`
	Remarks      string `json:"remarks,omitempty"`
	Accepted     *bool  `json:"accepted,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// OnlineUser is one row of the online-users list. LastSeen is Unix
// milliseconds.
type OnlineUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
	Status   string `json:"status"`
	LastSeen int64  `json:"lastSeen"`
}

// Welcome greets a freshly admitted connection.
type Welcome struct {
	Type        string       `json:"type"`
	Message     string       `json:"message,omitempty"`
	UserID      string       `json:"userId"`
	OnlineUsers []OnlineUser `json:"onlineUsers"`
	Timestamp   time.Time    `json:"timestamp"`
}

// UserStatus announces a presence change along with the refreshed list.
type UserStatus struct {
	Type        string       `json:"type"`
	UserID      string       `json:"userId"`
	Status      string       `json:"status"`
	OnlineUsers []OnlineUser `json:"onlineUsers"`
	Timestamp   time.Time    `json:"timestamp"`
}

// OnlineUsers answers a get_online_users request.
type OnlineUsers struct {
	Type        string       `json:"type"`
	OnlineUsers []OnlineUser `json:"onlineUsers"`
	Timestamp   time.Time    `json:"timestamp"`
}

// HandoverInvitation is pushed to the target of a handover request.
type HandoverInvitation struct {
	Type         string    `json:"type"`
	FromUserID   string    `json:"fromUserId"`
	FromUserName string    `json:"fromUserName"`
	FromUserRole string    `json:"fromUserRole"`
	StoreID      string    `json:"storeId"`
	StoreName    string    `json:"storeName"`
	Remarks      string    `json:"remarks"`
	Timestamp    time.Time `json:"timestamp"`
}

// HandoverSent confirms to the requester that the invitation went out.
type HandoverSent struct {
	Type           string    `json:"type"`
	Message        string    `json:"message,omitempty"`
	TargetUserID   string    `json:"targetUserId"`
	TargetUserName string    `json:"targetUserName"`
	Timestamp      time.Time `json:"timestamp"`
}

// HandoverError reports a failed request back to its initiator only.
type HandoverError struct {
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	TargetUserID string    `json:"targetUserId"`
	Timestamp    time.Time `json:"timestamp"`
}

// HandoverAccepted notifies the requester of an accepted offer.
type HandoverAccepted struct {
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	ToUserName string    `json:"toUserName"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandoverConfirmed confirms to the responder that their acceptance landed.
type HandoverConfirmed struct {
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandoverRejected notifies the requester of a declined offer.
type HandoverRejected struct {
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandoverCancelled tells the target that the offer was withdrawn.
type HandoverCancelled struct {
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	FromUserID string    `json:"fromUserId"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandoverCancelledAck confirms the withdrawal to the canceller.
type HandoverCancelledAck struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	ToUserID  string    `json:"toUserId"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is a protocol-level error frame. The connection stays open.
type Error struct {
	Type      string    `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
