// Package trigger runs a job once a day at a fixed wall-clock time in a named zone.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/michaelbrown/dailyrun/internal/errors"
	"github.com/michaelbrown/dailyrun/internal/logging"
)

// Scheduler is the subset of *cron.Cron the trigger drives.
type Scheduler interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Entry(id cron.EntryID) cron.Entry
	Start()
	Stop() context.Context
}

// Job is the work fired once per day.
type Job func(ctx context.Context) error

// Options sets the daily fire time.
type Options struct {
	Hour      int
	Minute    int
	Timezone  string        // IANA name, e.g. "Asia/Shanghai"
	Heartbeat time.Duration // how often the wait loop logs the next fire time
}

// Trigger fires a Job once per calendar day at a fixed wall-clock time in a
// named zone. Nothing is persisted: after a restart the next fire time is
// computed from the current time and missed fires are skipped.
type Trigger struct {
	job  Job
	opts Options

	// NewScheduler builds the scheduler for a resolved location.
	NewScheduler func(loc *time.Location) Scheduler

	mu      sync.Mutex
	sched   Scheduler
	entryID cron.EntryID
	loc     *time.Location
}

// New creates a trigger for job.
func New(job Job, opts Options) *Trigger {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = time.Hour
	}
	return &Trigger{
		job:  job,
		opts: opts,
		NewScheduler: func(loc *time.Location) Scheduler {
			return cron.New(cron.WithLocation(loc))
		},
	}
}

// Spec returns the five-field cron expression for the fire time.
func (t *Trigger) Spec() string {
	return fmt.Sprintf("%d %d * * *", t.opts.Minute, t.opts.Hour)
}

// Timezone returns the configured zone name.
func (t *Trigger) Timezone() string {
	return t.opts.Timezone
}

// Next returns the next fire time, or the zero time when not running.
func (t *Trigger) Next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sched == nil {
		return time.Time{}
	}
	next := t.sched.Entry(t.entryID).Next
	if next.IsZero() || t.loc == nil {
		return next
	}
	return next.In(t.loc)
}

// Run registers the job, starts the scheduler and blocks until ctx is done.
// The scheduler is stopped on every return path, and Run waits for an
// in-flight job to finish before returning.
func (t *Trigger) Run(ctx context.Context) error {
	loc, err := time.LoadLocation(t.opts.Timezone)
	if err != nil {
		return errors.Timezone(t.opts.Timezone, err)
	}

	t.mu.Lock()
	if t.sched != nil {
		t.mu.Unlock()
		return fmt.Errorf("trigger is already running")
	}
	sched := t.NewScheduler(loc)
	id, err := sched.AddFunc(t.Spec(), func() { t.fire(ctx) })
	if err != nil {
		t.mu.Unlock()
		return errors.Config(fmt.Sprintf("registering schedule %q", t.Spec()), err)
	}
	t.sched, t.entryID, t.loc = sched, id, loc
	t.mu.Unlock()

	log := logging.With("spec", t.Spec(), "timezone", loc.String())

	sched.Start()
	defer func() {
		<-sched.Stop().Done()
		t.mu.Lock()
		t.sched = nil
		t.mu.Unlock()
		log.Info("scheduler stopped")
	}()
	log.Info("scheduler started", "next", t.Next())

	ticker := time.NewTicker(t.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			log.Debug("waiting for next fire", "next", t.Next())
		}
	}
}

// fire runs the job. A failed job is logged and the schedule carries on.
func (t *Trigger) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	logging.Info("daily trigger fired", "spec", t.Spec(), "timezone", t.opts.Timezone)
	if err := t.job(ctx); err != nil {
		logging.Error("scheduled job failed", "error", err)
	}
}
