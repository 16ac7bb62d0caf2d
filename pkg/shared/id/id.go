package id

import "github.com/google/uuid"

// New returns a process-unique identifier suitable for session ids. The value
// is stable across the instrumentation→observer boundary.
func New() string {
	return uuid.NewString()
}
