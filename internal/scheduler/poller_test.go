package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seo-audit/internal/audit"
	"github.com/jonesrussell/seo-audit/internal/logger"
)

type fakeAuditor struct {
	mu sync.Mutex

	status    audit.Status
	statusErr error

	updateResults []bool
	updateErr     error
	updateCalls   int

	started int
}

func (f *fakeAuditor) StartAudit(_ context.Context, _ bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return int64(f.started), nil
}

func (f *fakeAuditor) UpdateTable(_ context.Context, _ bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return false, f.updateErr
	}
	if len(f.updateResults) == 0 {
		return false, nil
	}
	moreWork := f.updateResults[0]
	f.updateResults = f.updateResults[1:]
	if !moreWork {
		f.status.HasUnprocessedItems = false
		f.status.RequireUpdate = false
	}
	return moreWork, nil
}

func (f *fakeAuditor) Status(_ context.Context) (*audit.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	status := f.status
	return &status, nil
}

func (f *fakeAuditor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateCalls
}

func newTestPoller(auditor Auditor) *Poller {
	return NewPoller(auditor, logger.NewNoOp(),
		WithIntervals(time.Millisecond, 5*time.Millisecond, 20*time.Millisecond))
}

func TestPollerDrivesAuditToCompletion(t *testing.T) {
	t.Parallel()

	auditor := &fakeAuditor{
		status:        audit.Status{SnapshotID: 1, HasUnprocessedItems: true},
		updateResults: []bool{true, true, false},
	}

	p := newTestPoller(auditor)
	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return auditor.calls() >= 3
	}, time.Second, time.Millisecond)

	// Once the audit reports done, the poller idles instead of invoking
	// the update loop again.
	settled := auditor.calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, auditor.calls())
}

func TestPollerIdlesWhilePaused(t *testing.T) {
	t.Parallel()

	auditor := &fakeAuditor{
		status: audit.Status{SnapshotID: 1, HasUnprocessedItems: true, Paused: true},
	}

	p := newTestPoller(auditor)
	require.NoError(t, p.Start())
	defer p.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, auditor.calls())
}

func TestPollerEscalatesOnErrors(t *testing.T) {
	t.Parallel()

	p := newTestPoller(&fakeAuditor{})

	delay := p.base
	delay = p.escalate(delay)
	assert.Equal(t, 2*time.Millisecond, delay)
	delay = p.escalate(delay)
	assert.Equal(t, 4*time.Millisecond, delay)
	for i := 0; i < 10; i++ {
		delay = p.escalate(delay)
	}
	assert.Equal(t, 20*time.Millisecond, delay, "escalation must cap at the max interval")
}

func TestPollerStepUsesWorkerWait(t *testing.T) {
	t.Parallel()

	auditor := &fakeAuditor{
		status:        audit.Status{SnapshotID: 1, HasUnprocessedItems: true, WaitingSeconds: 0.012},
		updateResults: []bool{true},
	}
	p := newTestPoller(auditor)

	delay := p.step(p.base)
	assert.Equal(t, 12*time.Millisecond, delay)
}

func TestPollerStepErrorEscalates(t *testing.T) {
	t.Parallel()

	auditor := &fakeAuditor{
		status:    audit.Status{SnapshotID: 1, HasUnprocessedItems: true},
		updateErr: errors.New("database unavailable"),
	}
	p := newTestPoller(auditor)

	delay := p.step(4 * time.Millisecond)
	assert.Equal(t, 8*time.Millisecond, delay)
}

func TestScheduledTriggerStartsAudit(t *testing.T) {
	t.Parallel()

	auditor := &fakeAuditor{}
	p := newTestPoller(auditor)

	p.startScheduledAudit()

	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	assert.Equal(t, 1, auditor.started)
}
