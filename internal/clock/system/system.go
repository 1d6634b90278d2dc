// Package system provides a real clock implementation.
package system

import "time"

// Clock implements tender.Clock using time.Now in the host's local zone, so
// dates agree with the run log.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
