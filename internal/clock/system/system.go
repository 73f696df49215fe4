// Package system provides the wall clock used by checks.
package system

import "time"

// TimestampLayout renders an instant in UTC with millisecond precision. The
// check time file and the debug log both use it.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock implements checker.Clock. Readings are UTC and truncated to the
// millisecond so every artifact of a run names the same instant.
type Clock struct {
	now func() time.Time
}

// New returns a Clock backed by time.Now.
func New() *Clock {
	return &Clock{now: time.Now}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	now := time.Now
	if c != nil && c.now != nil {
		now = c.now
	}
	return now().UTC().Truncate(time.Millisecond)
}

// Format renders t with TimestampLayout.
func Format(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
