// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// SnapshotStatus is the lifecycle status of an audit snapshot.
type SnapshotStatus string

const (
	// SnapshotStatusNew marks the snapshot currently being populated and
	// analyzed. At most one snapshot is in this status at any time.
	SnapshotStatusNew SnapshotStatus = "new"

	// SnapshotStatusCurrent marks the finished snapshot shown by default.
	// At most one snapshot is in this status at any time.
	SnapshotStatusCurrent SnapshotStatus = "current"

	// SnapshotStatusOld marks retained history. Old snapshots are never
	// processed again.
	SnapshotStatusOld SnapshotStatus = "old"
)

// SnapshotType records how a snapshot was started and how it finished.
type SnapshotType string

const (
	SnapshotTypeManual             SnapshotType = "manual"
	SnapshotTypeScheduled          SnapshotType = "scheduled"
	SnapshotTypeScheduledRestarted SnapshotType = "scheduled_restarted"
	SnapshotTypeManualFinished     SnapshotType = "manual_finished"
	SnapshotTypeScheduledFinished  SnapshotType = "scheduled_finished"
)

// Snapshot is one audit generation. Content items are keyed by snapshot so a
// post can carry independent rows in the current and the new snapshot while a
// re-audit is in flight.
type Snapshot struct {
	ID            int64          `db:"id" json:"id"`
	Status        SnapshotStatus `db:"status" json:"status"`
	Type          SnapshotType   `db:"snapshot_type" json:"type"`
	TimeStart     time.Time      `db:"time_start" json:"time_start"`
	TimeEnd       *time.Time     `db:"time_end" json:"time_end,omitempty"`
	TrafficMedian *float64       `db:"traffic_median" json:"traffic_median,omitempty"`
	RequireUpdate bool           `db:"require_update" json:"require_update"`

	// QuickUpdateTrafficAllowed permits refreshing traffic figures on the
	// current snapshot without starting a full re-audit.
	QuickUpdateTrafficAllowed bool `db:"quick_update_traffic_allowed" json:"quick_update_traffic_allowed"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Finished reports whether the snapshot has completed processing.
func (s *Snapshot) Finished() bool {
	return s.Status != SnapshotStatusNew
}

// FinishedType returns the type to record when the snapshot is promoted to
// current.
func (s *Snapshot) FinishedType() SnapshotType {
	switch s.Type {
	case SnapshotTypeScheduled, SnapshotTypeScheduledRestarted:
		return SnapshotTypeScheduledFinished
	default:
		return SnapshotTypeManualFinished
	}
}
