package trigger

import "context"

// Client is the outbound half of the chat session a trigger replies through.
// Transports implement it; strategies discover richer capabilities with type
// assertions against the interfaces below.
type Client interface {
	// SendDirectMessage delivers text to one participant.
	SendDirectMessage(ctx context.Context, userID, text string) error

	// SendRoomMessage delivers text to a room.
	SendRoomMessage(ctx context.Context, roomID, text string) error
}

// Moderator is implemented by clients that can moderate rooms.
type Moderator interface {
	Kick(ctx context.Context, roomID, userID string) error
	Ban(ctx context.Context, roomID, userID string) error
	Unban(ctx context.Context, roomID, userID string) error
}

// RoomController is implemented by clients that can restrict a room. A
// locked room admits no new members; a moderated room lets only moderators
// speak.
type RoomController interface {
	LockRoom(ctx context.Context, roomID string, locked bool) error
	ModerateRoom(ctx context.Context, roomID string, moderated bool) error
}

// RoomManager is implemented by clients that can join and leave rooms.
type RoomManager interface {
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
}

// FriendManager is implemented by clients with a friend list.
type FriendManager interface {
	AcceptFriend(ctx context.Context, userID string) error
}

// InviteAccepter is implemented by clients that receive room invites.
type InviteAccepter interface {
	AcceptInvite(ctx context.Context, roomID string) error
}

// PresenceSetter is implemented by clients that can advertise a game or
// activity.
type PresenceSetter interface {
	SetPlaying(ctx context.Context, activity string) error
}
