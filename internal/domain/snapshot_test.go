package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotFinished(t *testing.T) {
	t.Parallel()

	assert.False(t, (&Snapshot{Status: SnapshotStatusNew}).Finished())
	assert.True(t, (&Snapshot{Status: SnapshotStatusCurrent}).Finished())
	assert.True(t, (&Snapshot{Status: SnapshotStatusOld}).Finished())
}

func TestSnapshotFinishedType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		start SnapshotType
		want  SnapshotType
	}{
		{SnapshotTypeManual, SnapshotTypeManualFinished},
		{SnapshotTypeScheduled, SnapshotTypeScheduledFinished},
		{SnapshotTypeScheduledRestarted, SnapshotTypeScheduledFinished},
		{SnapshotTypeManualFinished, SnapshotTypeManualFinished},
	}
	for _, tc := range cases {
		snap := &Snapshot{Type: tc.start}
		assert.Equal(t, tc.want, snap.FinishedType(), "start type %s", tc.start)
	}
}
