// Package storage keeps avatar images in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/taskforge/apiserver/internal/store"
)

// ErrObjectNotFound is returned by backends when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectTooLarge is returned when a stored object exceeds MaxObjectBytes.
var ErrObjectTooLarge = errors.New("object too large")

// MaxObjectBytes bounds reads. A 250x250 PNG is far below it.
const MaxObjectBytes = 4 << 20

const (
	avatarContentType  = "image/png"
	avatarCacheControl = "private, max-age=300"
)

// Object is a blob together with the headers it is served with.
type Object struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// ObjectStorage is the byte-level contract shared by the bucket backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, obj Object) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Avatars keeps user avatars as objects named avatars/<user id>.png.
type Avatars struct {
	backend ObjectStorage
}

func NewAvatars(backend ObjectStorage) *Avatars {
	return &Avatars{backend: backend}
}

func (a *Avatars) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

func (a *Avatars) PutAvatar(ctx context.Context, userID string, data []byte) error {
	err := a.backend.Put(ctx, avatarKey(userID), Object{
		Data:         data,
		ContentType:  avatarContentType,
		CacheControl: avatarCacheControl,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", a.backend.Bucket(), avatarKey(userID), err)
	}
	return nil
}

// GetAvatar returns store.ErrNotFound when no object exists for the user.
func (a *Avatars) GetAvatar(ctx context.Context, userID string) ([]byte, error) {
	data, err := a.backend.Get(ctx, avatarKey(userID))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", a.backend.Bucket(), avatarKey(userID), err)
	}
	if len(data) == 0 {
		return nil, store.ErrNotFound
	}
	return data, nil
}

// DeleteAvatar removes the object. A missing object is not an error.
func (a *Avatars) DeleteAvatar(ctx context.Context, userID string) error {
	err := a.backend.Delete(ctx, avatarKey(userID))
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

func avatarKey(userID string) string {
	return "avatars/" + userID + ".png"
}

// readObject drains r, failing once more than MaxObjectBytes arrive.
func readObject(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxObjectBytes {
		return nil, ErrObjectTooLarge
	}
	return data, nil
}
