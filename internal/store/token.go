package store

import (
	"context"
	"time"

	"github.com/taskforge/apiserver/internal/db"
)

// TokenRepository persists each user's set of active session tokens.
type TokenRepository struct {
	db db.DBTX
}

func NewTokenRepository(conn db.DBTX) *TokenRepository {
	return &TokenRepository{db: conn}
}

// Add inserts token into the user's active set. Re-adding a present token is
// a no-op.
func (r *TokenRepository) Add(ctx context.Context, userID, token string) error {
	const query = `
		INSERT INTO user_tokens (token, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO NOTHING`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query, token, userID, time.Now().UTC())
	return err
}

// Exists reports whether token is in the user's active set.
func (r *TokenRepository) Exists(ctx context.Context, userID, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM user_tokens WHERE user_id = $1 AND token = $2)`
	var exists bool
	if err := db.Conn(ctx, r.db).QueryRowContext(ctx, query, userID, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *TokenRepository) List(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT token FROM user_tokens WHERE user_id = $1 ORDER BY created_at`
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Remove deletes a single token. Removing an absent token is not an error.
func (r *TokenRepository) Remove(ctx context.Context, userID, token string) error {
	const query = `DELETE FROM user_tokens WHERE user_id = $1 AND token = $2`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query, userID, token)
	return err
}

// Clear deletes every token of the user.
func (r *TokenRepository) Clear(ctx context.Context, userID string) error {
	const query = `DELETE FROM user_tokens WHERE user_id = $1`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}
