package portal

import (
	"errors"
	"time"
)

// ErrNoResultsTable is returned when the results table never appears.
var ErrNoResultsTable = errors.New("results table not found")

// readiness decides when the results table has finished re-rendering after a
// search was submitted.
type readiness struct {
	before     string
	last       string
	lastChange time.Time
	deadline   time.Time
	settle     time.Duration
}

func newReadiness(before string, start time.Time, timeout, settle time.Duration) *readiness {
	return &readiness{
		before:     before,
		last:       before,
		lastChange: start,
		deadline:   start.Add(timeout),
		settle:     settle,
	}
}

// observe feeds one poll of the table and reports whether it is ready.
//
// The table is ready once it differs from the pre-submit snapshot and has held
// still for the settle window. At the deadline a present table is accepted as
// is, since a phrase can legitimately return the same rows as the previous one.
func (r *readiness) observe(snapshot string, present bool, now time.Time) (bool, error) {
	if snapshot != r.last {
		r.last = snapshot
		r.lastChange = now
	}
	if present && snapshot != r.before && now.Sub(r.lastChange) >= r.settle {
		return true, nil
	}
	if now.Before(r.deadline) {
		return false, nil
	}
	if present {
		return true, nil
	}
	return false, ErrNoResultsTable
}
