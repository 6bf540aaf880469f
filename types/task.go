package types

import "time"

// Task is a unit of work owned by exactly one user.
type Task struct {
	// ID is the opaque unique identifier of the task.
	ID string `json:"_id" db:"id"`

	// Description is the task text. Stored trimmed and never empty.
	Description string `json:"description" db:"description"`

	// Completed reports whether the task is done.
	Completed bool `json:"completed" db:"completed"`

	// Owner is the ID of the user the task belongs to. It is set from the
	// authenticated principal on creation and never reassigned.
	Owner string `json:"owner" db:"owner_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TaskUpdate carries the mutable task fields. A nil field is left unchanged.
type TaskUpdate struct {
	Description *string
	Completed   *bool
}

// SortField names a task column that results may be ordered by.
type SortField string

const (
	SortByCreatedAt   SortField = "created_at"
	SortByUpdatedAt   SortField = "updated_at"
	SortByDescription SortField = "description"
	SortByCompleted   SortField = "completed"
)

// SortOrder is a single field/direction pair.
type SortOrder struct {
	Field      SortField
	Descending bool
}

// TaskQuery is a resolved, owner-scoped task listing request.
// Limit zero means no cap.
type TaskQuery struct {
	Owner     string
	Completed *bool
	Limit     int
	Skip      int
	Sort      *SortOrder
}
