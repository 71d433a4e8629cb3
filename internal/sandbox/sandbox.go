package sandbox

import (
	"context"
	"time"
)

// Handle identifies one running sandbox. It is only valid until Deadline,
// after which the platform reclaims the sandbox unconditionally.
type Handle struct {
	ID       string
	Image    string
	Deadline time.Time
}

// CreateOptions describes a sandbox creation request.
type CreateOptions struct {
	App    string // groups sandboxes on the platform (name prefix, labels)
	Policy Policy
}

// Platform provisions sandboxes and runs commands inside them.
type Platform interface {
	// Create builds (or reuses) the image for spec and starts a sandbox
	// bound to it. Every call creates a new sandbox.
	Create(ctx context.Context, spec ImageSpec, opts CreateOptions) (Handle, error)

	// Exec starts argv inside the sandbox without waiting for it to finish.
	Exec(ctx context.Context, h Handle, argv ...string) error
}
