package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-core/internal/models"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotAMember   = errors.New("not a room member")
)

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreateOrGetDirectRoom(ctx context.Context, userID, peerID int64) (models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	IsMember(ctx context.Context, roomID string, userID int64) (bool, error)
	GetMembership(ctx context.Context, roomID string, userID int64) (models.Membership, error)
	AddMember(ctx context.Context, roomID string, userID int64, role models.Role) error
	RemoveMember(ctx context.Context, roomID string, userID int64) error
	Touch(ctx context.Context, roomID string) error
	SetLastRead(ctx context.Context, roomID string, userID int64, messageID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// DirectKey is the deterministic lookup key for a direct room between two
// users, identical regardless of which side asks.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

const roomColumns = `id, kind, name, description, max_members, direct_key, created_by, created_at, updated_at`

// CreateOrGetDirectRoom resolves the direct room for a user pair, creating
// it (and both memberships) on first contact. Concurrent first-contact
// creation collapses onto one row via the unique direct_key; the losing
// writer re-reads the winner's row.
func (r *RoomRepo) CreateOrGetDirectRoom(ctx context.Context, userID, peerID int64) (models.Room, error) {
	if userID == peerID {
		return models.Room{}, errors.New("cannot open a direct room with self")
	}
	key := DirectKey(userID, peerID)

	var room models.Room
	err := r.db.GetContext(ctx, &room, `INSERT INTO rooms (id, kind, max_members, direct_key, created_by)
        VALUES ($1, 'direct', 2, $2, $3)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING `+roomColumns, uuid.NewString(), key, userID)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race or the room already existed.
		err = r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE direct_key=$1`, key)
	}
	if err != nil {
		return models.Room{}, err
	}

	for _, id := range []int64{userID, peerID} {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO memberships (room_id, user_id, role)
            VALUES ($1, $2, 'member') ON CONFLICT (room_id, user_id) DO NOTHING`, room.ID, id); err != nil {
			return models.Room{}, err
		}
	}
	return room, nil
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// IsMember checks whether a user currently belongs to the room.
func (r *RoomRepo) IsMember(ctx context.Context, roomID string, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM memberships WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// GetMembership returns the join record for (user, room).
func (r *RoomRepo) GetMembership(ctx context.Context, roomID string, userID int64) (models.Membership, error) {
	var m models.Membership
	err := r.db.GetContext(ctx, &m, `SELECT room_id, user_id, role, muted, archived, last_read_message_id, joined_at
        FROM memberships WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, ErrNotAMember
	}
	return m, err
}

// AddMember joins a user to a room; re-joining is a no-op.
func (r *RoomRepo) AddMember(ctx context.Context, roomID string, userID int64, role models.Role) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO memberships (room_id, user_id, role)
        SELECT $1, $2, $3 WHERE EXISTS(SELECT 1 FROM rooms WHERE id=$1)
        ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID, role)
	if err != nil {
		return err
	}
	if count, err := res.RowsAffected(); err == nil && count == 0 {
		// Either already a member (fine) or the room is gone.
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id=$1)`, roomID); err != nil {
			return err
		}
		if !exists {
			return ErrRoomNotFound
		}
	}
	return nil
}

// RemoveMember deletes a membership. When the last member of a group room
// leaves, the room is destroyed; direct rooms survive their members.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID string, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE room_id=$1 AND user_id=$2`, roomID, userID); err != nil {
		return err
	}
	var remaining int
	if err := tx.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM memberships WHERE room_id=$1`, roomID); err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id=$1 AND kind='group'`, roomID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Touch bumps the room's updated_at so room lists order by activity.
func (r *RoomRepo) Touch(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET updated_at=NOW() WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	if count, err := res.RowsAffected(); err == nil && count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// SetLastRead advances the member's denormalized read pointer.
func (r *RoomRepo) SetLastRead(ctx context.Context, roomID string, userID int64, messageID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE memberships SET last_read_message_id=$3
        WHERE room_id=$1 AND user_id=$2`, roomID, userID, messageID)
	return err
}
