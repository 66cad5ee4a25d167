package http

import (
	"time"

	"github.com/vovakirdan/hotowire-server/internal/core"
	"github.com/vovakirdan/hotowire-server/internal/proto"
)

var timeNow = time.Now

func protocolError(msg string) *proto.Error {
	return &proto.Error{
		Type:      proto.TypeError,
		Code:      core.ErrCodeProtocol,
		Message:   msg,
		Timestamp: timeNow(),
	}
}

// inboundToCommand maps a wire frame to a hub command. Unknown or
// incomplete frames yield a protocol error instead of a silent drop, so the
// behavior stays observable.
func inboundToCommand(client *core.Client, in proto.Inbound) (*core.Command, *proto.Error) {
	switch in.Type {
	case proto.TypeHeartbeat:
		if in.UserID == "" {
			return nil, protocolError("userId is required")
		}
		return &core.Command{Kind: core.CommandHeartbeat, UserID: in.UserID}, nil

	case proto.TypeHandoverRequest:
		if in.ToUserID == "" {
			return nil, protocolError("toUserId is required")
		}
		fromID := in.FromUserID
		if fromID == "" {
			fromID = client.Identity.UserID
		}
		return &core.Command{
			Kind: core.CommandRequestHandover,
			Request: &core.HandoverRequest{
				FromUserID: fromID,
				ToUserID:   in.ToUserID,
				StoreID:    in.StoreID,
				StoreName:  in.StoreName,
				Remarks:    in.Remarks,
			},
		}, nil

	case proto.TypeHandoverResponse:
		if in.FromUserID == "" || in.ToUserID == "" {
			return nil, protocolError("fromUserId and toUserId are required")
		}
		if in.Accepted == nil {
			return nil, protocolError("accepted is required")
		}
		return &core.Command{
			Kind: core.CommandRespondHandover,
			Response: &core.HandoverResponse{
				FromUserID: in.FromUserID,
				ToUserID:   in.ToUserID,
				Accepted:   *in.Accepted,
				Reason:     in.Reason,
			},
		}, nil

	case proto.TypeCancelHandover:
		if in.FromUserID == "" || in.ToUserID == "" {
			return nil, protocolError("fromUserId and toUserId are required")
		}
		return &core.Command{
			Kind: core.CommandCancelHandover,
			Cancel: &core.HandoverCancel{
				FromUserID: in.FromUserID,
				ToUserID:   in.ToUserID,
			},
		}, nil

	case proto.TypeGetOnlineUsers:
		userID := in.UserID
		if userID == "" {
			userID = client.Identity.UserID
		}
		return &core.Command{Kind: core.CommandListOnline, UserID: userID}, nil

	default:
		return nil, protocolError("unknown message type")
	}
}

// outboundFromEvent maps a hub event to its wire frame.
func outboundFromEvent(event *core.Event) any {
	switch event.Kind {
	case core.EventWelcome:
		return proto.Welcome{
			Type:        proto.TypeWelcome,
			Message:     "Connected to real-time handover system",
			UserID:      event.UserID,
			OnlineUsers: onlineUsersFromPresence(event.Online),
			Timestamp:   event.At,
		}
	case core.EventUserStatus:
		return proto.UserStatus{
			Type:        proto.TypeUserStatus,
			UserID:      event.UserID,
			Status:      event.Status,
			OnlineUsers: onlineUsersFromPresence(event.Online),
			Timestamp:   event.At,
		}
	case core.EventOnlineUsers:
		return proto.OnlineUsers{
			Type:        proto.TypeOnlineUsers,
			OnlineUsers: onlineUsersFromPresence(event.Online),
			Timestamp:   event.At,
		}
	case core.EventInvitation:
		return proto.HandoverInvitation{
			Type:         proto.TypeHandoverInvitation,
			FromUserID:   event.Handover.FromUserID,
			FromUserName: event.Handover.FromUserName,
			FromUserRole: string(event.Handover.FromUserRole),
			StoreID:      event.Handover.StoreID,
			StoreName:    event.Handover.StoreName,
			Remarks:      event.Handover.Remarks,
			Timestamp:    event.At,
		}
	case core.EventSent:
		return proto.HandoverSent{
			Type:           proto.TypeHandoverSent,
			Message:        "Handover invitation sent to " + event.Handover.ToUserName,
			TargetUserID:   event.Handover.ToUserID,
			TargetUserName: event.Handover.ToUserName,
			Timestamp:      event.At,
		}
	case core.EventAccepted:
		return proto.HandoverAccepted{
			Type:       proto.TypeHandoverAccepted,
			Message:    "Handover accepted!",
			FromUserID: event.Handover.FromUserID,
			ToUserID:   event.Handover.ToUserID,
			ToUserName: event.Handover.ToUserName,
			Timestamp:  event.At,
		}
	case core.EventConfirmed:
		return proto.HandoverConfirmed{
			Type:       proto.TypeHandoverConfirmed,
			Message:    "You accepted the handover.",
			FromUserID: event.Handover.FromUserID,
			ToUserID:   event.Handover.ToUserID,
			Timestamp:  event.At,
		}
	case core.EventRejected:
		msg := "Handover rejected"
		if event.Handover.Reason != "" {
			msg += ": " + event.Handover.Reason
		}
		return proto.HandoverRejected{
			Type:       proto.TypeHandoverRejected,
			Message:    msg,
			FromUserID: event.Handover.FromUserID,
			ToUserID:   event.Handover.ToUserID,
			Timestamp:  event.At,
		}
	case core.EventCancelled:
		return proto.HandoverCancelled{
			Type:       proto.TypeHandoverCancelled,
			Message:    "Handover was cancelled by sender.",
			FromUserID: event.Handover.FromUserID,
			Timestamp:  event.At,
		}
	case core.EventCancelledAck:
		return proto.HandoverCancelledAck{
			Type:      proto.TypeHandoverCancelledAck,
			Message:   "Handover cancelled.",
			ToUserID:  event.Handover.ToUserID,
			Timestamp: event.At,
		}
	case core.EventHandoverError:
		msg := "handover error"
		if event.Error != nil {
			msg = event.Error.Message
		}
		return proto.HandoverError{
			Type:         proto.TypeHandoverError,
			Message:      msg,
			TargetUserID: event.Handover.ToUserID,
			Timestamp:    event.At,
		}
	default:
		return proto.Error{
			Type:      proto.TypeError,
			Code:      core.ErrCodeProtocol,
			Message:   "unmapped event",
			Timestamp: event.At,
		}
	}
}

func onlineUsersFromPresence(list []core.Presence) []proto.OnlineUser {
	users := make([]proto.OnlineUser, 0, len(list))
	for _, p := range list {
		users = append(users, proto.OnlineUser{
			UserID:   p.UserID,
			UserName: p.UserName,
			UserRole: string(p.UserRole),
			Status:   p.Status,
			LastSeen: p.LastSeen.UnixMilli(),
		})
	}
	return users
}
