// Package corrid generates the per-request correlation id carried through logs, error
// envelopes, and SSE frame metadata.
package corrid

import "github.com/google/uuid"

// New returns a fresh 128-bit random correlation id.
func New() string {
	return uuid.NewString()
}
