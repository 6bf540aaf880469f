package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/taskforge/apiserver/types"
)

const sessionKeyPrefix = "session:"

// KV is the byte-oriented cache the session cache is stored in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionCache remembers which user a token resolves to so that the auth gate
// can skip the user lookup. It never decides whether a token is still active.
// Entries are keyed by a SHA-256 digest of the token, never the token itself.
type SessionCache struct {
	kv  KV
	ttl time.Duration
}

func NewSessionCache(kv KV, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SessionCache{kv: kv, ttl: ttl}
}

type cachedSession struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lookup returns the cached user for token. The second result is false on a
// miss, a corrupt entry, or a nil cache.
func (c *SessionCache) Lookup(ctx context.Context, token string) (types.User, bool) {
	if c == nil || c.kv == nil {
		return types.User{}, false
	}
	data, err := c.kv.Get(ctx, sessionKey(token))
	if err != nil || data == nil {
		return types.User{}, false
	}
	var entry cachedSession
	if err := json.Unmarshal(data, &entry); err != nil || entry.ID == "" {
		return types.User{}, false
	}
	return types.User{
		ID:        entry.ID,
		Name:      entry.Name,
		Email:     entry.Email,
		Age:       entry.Age,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}, true
}

// Store caches the user that token resolved to.
func (c *SessionCache) Store(ctx context.Context, token string, user types.User) error {
	if c == nil || c.kv == nil {
		return nil
	}
	data, err := json.Marshal(cachedSession{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Age:       user.Age,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, sessionKey(token), data, c.ttl)
}

// Invalidate drops the entries for tokens.
func (c *SessionCache) Invalidate(ctx context.Context, tokens ...string) error {
	if c == nil || c.kv == nil || len(tokens) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	return c.kv.Delete(ctx, keys...)
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}
