// Package scheduler maintains per-subscriber wall-clock triggers and runs
// the polling loop that fires them. Jobs are ephemeral: they are rebuilt
// wholesale from the persisted schedule whenever a subscriber's settings
// change and on every process start.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/sched"
	"github.com/vmg75/weather-bot/internal/store"
)

// jobTimeout bounds one delivery: the 10s per-attempt network timeout times
// the 3-attempt retry budget, plus the 1s+2s backoff, with headroom. A
// wedged delivery is cut here instead of stalling the rest of the tick.
const jobTimeout = 40 * time.Second

// Notifier performs the per-subscriber delivery workflow (resolve the
// subject, fetch, format, hand to the delivery sink).
type Notifier interface {
	Notify(ctx context.Context, subscriberID int64) error
}

// Store is the slice of the user repository the scheduler needs: persisted
// schedule entries, readable per subscriber and enumerable at startup.
type Store interface {
	Schedule(id int64) (enabled bool, times []string, err error)
	SetSchedule(id int64, enabled bool, times []string) error
	Subscribers() ([]store.Subscriber, error)
}

// Job is one registered trigger: subscriber plus an HH:MM wall-clock time.
type Job struct {
	ID           uuid.UUID
	SubscriberID int64
	Time         string
}

// Scheduler owns the job index and the minute-tick loop. Each subscriber's
// jobs are indexed by id, so bulk cancellation never matches by string tags.
type Scheduler struct {
	mu         sync.Mutex
	jobs       map[int64]map[uuid.UUID]Job
	store      Store
	notifier   Notifier
	log        *zap.Logger
	interval   time.Duration
	now        func() time.Time
	lastMinute string
}

// New creates a Scheduler polling at the given interval (one minute in
// production; triggers have minute resolution).
func New(store Store, notifier Notifier, log *zap.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		jobs:     make(map[int64]map[uuid.UUID]Job),
		store:    store,
		notifier: notifier,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Enable persists the subscriber's schedule as enabled and registers one job
// per trigger time. Invalid times reject the call before any state changes.
func (s *Scheduler) Enable(subscriberID int64, times []string) error {
	normalized, err := sched.Normalize(times)
	if err != nil {
		return err
	}
	if err := s.store.SetSchedule(subscriberID, true, normalized); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}

	s.mu.Lock()
	s.register(subscriberID, normalized)
	s.mu.Unlock()

	s.log.Info("subscriber enabled",
		zap.Int64("subscriber", subscriberID),
		zap.Strings("times", normalized))
	return nil
}

// Disable persists the subscriber as disabled and drops all of their jobs.
// Other subscribers' jobs are untouched.
func (s *Scheduler) Disable(subscriberID int64) error {
	if err := s.store.SetSchedule(subscriberID, false, nil); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}

	s.mu.Lock()
	delete(s.jobs, subscriberID)
	s.mu.Unlock()

	s.log.Info("subscriber disabled", zap.Int64("subscriber", subscriberID))
	return nil
}

// AddRegular expands an "every N hours between start and end" schedule into
// explicit times and enables them. Out-of-range or inverted inputs are
// rejected before any state mutation, leaving the prior schedule intact.
func (s *Scheduler) AddRegular(subscriberID int64, startHour, endHour, intervalHours int) error {
	times, err := sched.ExpandRegular(startHour, endHour, intervalHours)
	if err != nil {
		return err
	}
	return s.Enable(subscriberID, times)
}

// Reschedule regenerates the subscriber's jobs from the persisted schedule.
// It is idempotent: unchanged settings produce the same job set, never a
// duplicated one, because registration replaces the whole per-subscriber set.
func (s *Scheduler) Reschedule(subscriberID int64) error {
	enabled, times, err := s.store.Schedule(subscriberID)
	if err != nil {
		return fmt.Errorf("read schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, subscriberID)
	if enabled {
		s.register(subscriberID, times)
	}
	return nil
}

// Rebuild replaces the entire job set from the persisted schedule entries.
// Called once at startup.
func (s *Scheduler) Rebuild() error {
	subs, err := s.store.Subscribers()
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[int64]map[uuid.UUID]Job)
	for _, sub := range subs {
		s.register(sub.ID, sub.Times)
	}
	s.log.Info("job set rebuilt", zap.Int("subscribers", len(subs)))
	return nil
}

// ListJobs returns a snapshot of all registered jobs, ordered by subscriber
// and trigger time.
func (s *Scheduler) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Job
	for _, set := range s.jobs {
		for _, job := range set {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubscriberID != out[j].SubscriberID {
			return out[i].SubscriberID < out[j].SubscriberID
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// register replaces subscriberID's job set. Caller holds s.mu.
func (s *Scheduler) register(subscriberID int64, times []string) {
	set := make(map[uuid.UUID]Job, len(times))
	for _, t := range times {
		id := uuid.New()
		set[id] = Job{ID: id, SubscriberID: subscriberID, Time: t}
	}
	s.jobs[subscriberID] = set
}

// Run executes the polling loop until ctx is canceled. Each tick fires the
// jobs whose HH:MM matches the current wall clock; a given minute fires at
// most once even if ticks drift. On return all jobs are deregistered; the
// in-flight delivery finishes within its own bounded context.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			s.mu.Lock()
			s.jobs = make(map[int64]map[uuid.UUID]Job)
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every job due at the current minute. Deliveries run one after
// another within the tick; a failure or panic in one is logged and must not
// affect the others or the loop.
func (s *Scheduler) tick(ctx context.Context) {
	minute := s.now().Format("15:04")
	if minute == s.lastMinute {
		return
	}
	s.lastMinute = minute

	s.mu.Lock()
	var due []Job
	for _, set := range s.jobs {
		for _, job := range set {
			if job.Time == minute {
				due = append(due, job)
			}
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}
	s.log.Debug("firing due jobs", zap.String("minute", minute), zap.Int("count", len(due)))

	for _, job := range due {
		s.dispatch(ctx, job)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("delivery panicked",
				zap.Int64("subscriber", job.SubscriberID),
				zap.String("time", job.Time),
				zap.Any("panic", rec))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if err := s.notifier.Notify(jobCtx, job.SubscriberID); err != nil {
		s.log.Error("delivery failed",
			zap.Int64("subscriber", job.SubscriberID),
			zap.String("time", job.Time),
			zap.Error(err))
	}
}
