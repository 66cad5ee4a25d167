package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandHeartbeat refreshes the sender's liveness timestamp.
	CommandHeartbeat CommandKind = iota
	// CommandRequestHandover offers a store to another online user.
	CommandRequestHandover
	// CommandRespondHandover accepts or rejects a pending invitation.
	CommandRespondHandover
	// CommandCancelHandover withdraws a previously sent invitation.
	CommandCancelHandover
	// CommandListOnline asks for the current online-users snapshot.
	CommandListOnline
)

// Command represents an action requested by a connected client.
type Command struct {
	Kind     CommandKind
	UserID   string // heartbeat and list-online subject
	Request  *HandoverRequest
	Response *HandoverResponse
	Cancel   *HandoverCancel
}

// HandoverRequest asks the hub to route an invitation to ToUserID.
type HandoverRequest struct {
	FromUserID string
	ToUserID   string
	StoreID    string
	StoreName  string
	Remarks    string
}

// HandoverResponse consumes the pending invitation addressed to ToUserID.
type HandoverResponse struct {
	FromUserID string // requester claimed by the responder's payload
	ToUserID   string
	Accepted   bool
	Reason     string
}

// HandoverCancel withdraws the invitation addressed to ToUserID.
type HandoverCancel struct {
	FromUserID string
	ToUserID   string
}
