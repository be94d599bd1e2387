// Package audit contains the audit engine: the update-loop orchestrator, the
// classification rules, the traffic median and the keyword advisor.
package audit

import (
	"time"
)

// Processing windows for one UpdateTable invocation. Web requests get the
// short window so the HTTP handler stays responsive; the background poller
// can afford the long one.
const (
	DefaultWindow = 15 * time.Second
	CronWindow    = 300 * time.Second
)

// Deadline is an explicit wall-clock budget threaded through the update
// loop. Every loop checks it; on expiry the invocation returns with "more
// work remains" and the next invocation resumes from persisted state.
type Deadline struct {
	at  time.Time
	now func() time.Time
}

// NewDeadline starts a deadline window from now.
func NewDeadline(window time.Duration) Deadline {
	return newDeadlineAt(window, time.Now)
}

func newDeadlineAt(window time.Duration, now func() time.Time) Deadline {
	return Deadline{at: now().Add(window), now: now}
}

// Exceeded reports whether the budget is spent.
func (d Deadline) Exceeded() bool {
	return !d.now().Before(d.at)
}

// Remaining returns the budget left, never negative.
func (d Deadline) Remaining() time.Duration {
	remaining := d.at.Sub(d.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
