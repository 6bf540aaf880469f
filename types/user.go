package types

import "time"

// User represents an account in the system.
// It contains identity, profile, credential, and audit metadata.
type User struct {
	// ID is the opaque unique identifier of the user.
	ID string `json:"_id" db:"id"`

	// Name is the user's display name. Stored trimmed and never empty.
	Name string `json:"name" db:"name"`

	// Email is the user's address. Stored trimmed and lower-cased, and
	// unique across all users.
	Email string `json:"email" db:"email"`

	// Age is the user's age in years. Zero when not provided.
	Age int `json:"age" db:"age"`

	// PasswordHash stores the salted bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Avatar holds the PNG-encoded profile picture, if one was uploaded.
	// This field is never exposed in API responses.
	Avatar []byte `json:"-" db:"avatar"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Profile is the set of fields supplied at registration.
type Profile struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"gte=0"`
	Password string `json:"password" validate:"required,min=7,nopassword"`
}

// ProfileUpdate carries the mutable profile fields. A nil field is left
// unchanged.
type ProfileUpdate struct {
	Name     *string
	Age      *int
	Password *string
}
