package models

import "time"

// RoomKind distinguishes two-party rooms from group rooms.
type RoomKind string

const (
	RoomDirect RoomKind = "direct"
	RoomGroup  RoomKind = "group"
)

// Role is a member's role inside a room.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Room is a conversation container. A direct room holds exactly two
// members for its lifetime; updated_at is bumped on every new message so
// room lists can order by activity.
type Room struct {
	ID          string    `db:"id" json:"id"`
	Kind        RoomKind  `db:"kind" json:"kind"`
	Name        string    `db:"name" json:"name,omitempty"`
	Description string    `db:"description" json:"description,omitempty"`
	MaxMembers  int       `db:"max_members" json:"max_members"`
	DirectKey   *string   `db:"direct_key" json:"-"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Membership is the join record granting a user access to a room.
type Membership struct {
	RoomID            string    `db:"room_id" json:"room_id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Role              Role      `db:"role" json:"role"`
	Muted             bool      `db:"muted" json:"muted"`
	Archived          bool      `db:"archived" json:"archived"`
	LastReadMessageID *string   `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
	JoinedAt          time.Time `db:"joined_at" json:"joined_at"`
}
