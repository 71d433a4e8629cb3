package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no launch matches an ID or prefix.
var ErrNotFound = errors.New("launch not found")

// LaunchStatus represents the lifecycle state of a launch attempt.
type LaunchStatus string

const (
	StatusRunning LaunchStatus = "running" // sandbox creation in progress
	StatusStarted LaunchStatus = "started" // startup command dispatched
	StatusFailed  LaunchStatus = "failed"
)

// TriggerKind records what started a launch.
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerSchedule TriggerKind = "schedule"
)

// Launch is the audit record of one launch attempt.
type Launch struct {
	ID        string       `json:"id"`
	App       string       `json:"app"`
	Trigger   TriggerKind  `json:"trigger"`
	Status    LaunchStatus `json:"status"`
	SandboxID string       `json:"sandbox_id,omitempty"`
	Image     string       `json:"image,omitempty"`
	Error     string       `json:"error,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitzero"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ListOptions controls filtering and pagination for ListLaunches.
type ListOptions struct {
	Status LaunchStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for launch records.
type Store interface {
	// CreateLaunch inserts a new record. The ID field must be set by the caller.
	CreateLaunch(ctx context.Context, l *Launch) error

	// GetLaunch returns a record by ID or ID prefix.
	GetLaunch(ctx context.Context, id string) (*Launch, error)

	// ListLaunches returns records ordered by created_at descending.
	ListLaunches(ctx context.Context, opts ListOptions) ([]Launch, error)

	// UpdateLaunch updates mutable fields (status, sandbox, image, error, expiry).
	UpdateLaunch(ctx context.Context, l *Launch) error

	// Close releases resources.
	Close() error
}
