package sandbox

import "time"

// Policy defines resource limits for a sandbox.
type Policy struct {
	Timeout   time.Duration // Wall-clock lifetime before the platform reclaims it
	MaxMemory string        // Docker memory limit (e.g. "2g"); empty means unlimited
	Network   bool          // Whether network access is allowed
}

// DefaultPolicy returns the limits used for the analytics service.
func DefaultPolicy() Policy {
	return Policy{
		Timeout: 24 * time.Hour,
		Network: true,
	}
}

// Deadline returns when a sandbox created at t is reclaimed.
func (p Policy) Deadline(t time.Time) time.Time {
	return t.Add(p.Timeout)
}
