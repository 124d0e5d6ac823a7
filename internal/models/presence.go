package models

import "time"

// PresenceState is a user's live online flag plus last-seen fallback.
// Last-seen is updated only on the transition to offline.
type PresenceState struct {
	UserID   int64      `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
