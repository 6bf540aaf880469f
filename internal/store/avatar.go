package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskforge/apiserver/internal/db"
)

// AvatarRepository keeps avatars in the users.avatar column.
type AvatarRepository struct {
	db db.DBTX
}

func NewAvatarRepository(conn db.DBTX) *AvatarRepository {
	return &AvatarRepository{db: conn}
}

func (r *AvatarRepository) PutAvatar(ctx context.Context, userID string, data []byte) error {
	const query = `UPDATE users SET avatar = $1, updated_at = NOW() WHERE id = $2`
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, data, userID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// GetAvatar returns ErrNotFound when the user is missing or has no avatar.
func (r *AvatarRepository) GetAvatar(ctx context.Context, userID string) ([]byte, error) {
	const query = `SELECT avatar FROM users WHERE id = $1`
	var data []byte
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// DeleteAvatar clears the avatar. Clearing an absent avatar succeeds.
func (r *AvatarRepository) DeleteAvatar(ctx context.Context, userID string) error {
	const query = `UPDATE users SET avatar = NULL, updated_at = NOW() WHERE id = $1`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}
