// Package scheduler runs the background side of the audit: a cron trigger
// that starts the periodic audit and a poller that drives the bounded update
// loop while work remains.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/seo-audit/internal/audit"
	"github.com/jonesrussell/seo-audit/internal/logger"
)

const (
	// basePollInterval is the delay between update invocations while an
	// audit is actively making progress.
	basePollInterval = 5 * time.Second

	// idlePollInterval is the delay while nothing needs processing.
	idlePollInterval = 30 * time.Second

	// maxPollInterval caps the stall escalation.
	maxPollInterval = 5 * time.Minute

	// DefaultCronSpec starts a scheduled audit every Monday at 03:00.
	DefaultCronSpec = "0 3 * * 1"
)

// Auditor is the slice of the orchestrator the poller drives.
type Auditor interface {
	StartAudit(ctx context.Context, isScheduled bool) (int64, error)
	UpdateTable(ctx context.Context, runFromCron bool) (moreWork bool, err error)
	Status(ctx context.Context) (*audit.Status, error)
}

// Poller owns the background processing loop. One instance per process; the
// redis update lock keeps multiple replicas from stepping on each other.
type Poller struct {
	auditor Auditor
	log     logger.Interface
	cron    *cron.Cron

	cronSpec string
	base     time.Duration
	idle     time.Duration
	max      time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option adjusts poller behavior.
type Option func(*Poller)

// WithCronSpec overrides the scheduled-audit trigger expression.
func WithCronSpec(spec string) Option {
	return func(p *Poller) { p.cronSpec = spec }
}

// WithIntervals overrides the polling cadence. Tests only.
func WithIntervals(base, idle, maxInterval time.Duration) Option {
	return func(p *Poller) {
		p.base, p.idle, p.max = base, idle, maxInterval
	}
}

// NewPoller creates the background poller.
func NewPoller(auditor Auditor, log logger.Interface, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	cronParser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	p := &Poller{
		auditor:  auditor,
		log:      log.WithComponent("poller"),
		cron:     cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cronSpec: DefaultCronSpec,
		base:     basePollInterval,
		idle:     idlePollInterval,
		max:      maxPollInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start registers the cron trigger and launches the polling loop.
func (p *Poller) Start() error {
	if _, err := p.cron.AddFunc(p.cronSpec, p.startScheduledAudit); err != nil {
		return err
	}
	p.cron.Start()

	p.wg.Add(1)
	go p.poll()

	p.log.Info("poller started", "cron_spec", p.cronSpec, "base_interval", p.base.String())
	return nil
}

// Stop halts the cron trigger and waits for the polling loop to exit.
func (p *Poller) Stop() {
	p.cancel()
	cronCtx := p.cron.Stop()
	<-cronCtx.Done()
	p.wg.Wait()
	p.log.Info("poller stopped")
}

func (p *Poller) startScheduledAudit() {
	id, err := p.auditor.StartAudit(p.ctx, true)
	if err != nil {
		p.log.Error("failed to start scheduled audit", "error", err)
		return
	}
	p.log.Info("scheduled audit started", "snapshot_id", id)
}

// poll drives UpdateTable while work remains. The delay follows the audit
// state: base cadence while progressing, the workers' announced wait while
// they are rate limited, doubling escalation on repeated errors, and the
// idle cadence when there is nothing to do.
func (p *Poller) poll() {
	defer p.wg.Done()

	delay := p.base
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
		}

		delay = p.step(delay)
		timer.Reset(delay)
	}
}

// step runs one poll iteration and returns the delay before the next.
func (p *Poller) step(previous time.Duration) time.Duration {
	status, err := p.auditor.Status(p.ctx)
	if err != nil {
		p.log.Error("failed to read audit status", "error", err)
		return p.escalate(previous)
	}

	if status.Paused || (!status.RequireUpdate && !status.HasUnprocessedItems) {
		return p.idle
	}

	moreWork, err := p.auditor.UpdateTable(p.ctx, true)
	if err != nil {
		p.log.Error("audit update failed", "error", err)
		return p.escalate(previous)
	}
	if !moreWork {
		return p.idle
	}

	// Rate-limited workers announce when they wake; no point polling
	// sooner than that.
	if wait := time.Duration(status.WaitingSeconds * float64(time.Second)); wait > p.base {
		if wait > p.max {
			return p.max
		}
		return wait
	}
	return p.base
}

func (p *Poller) escalate(previous time.Duration) time.Duration {
	next := previous * 2
	if next < p.base {
		next = p.base
	}
	if next > p.max {
		next = p.max
	}
	return next
}
