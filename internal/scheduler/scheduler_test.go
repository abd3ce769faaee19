package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/store"
)

// memStore is an in-memory Store implementation.
type memStore struct {
	mu      sync.Mutex
	entries map[int64]struct {
		enabled bool
		times   []string
	}
}

func newMemStore() *memStore {
	return &memStore{entries: map[int64]struct {
		enabled bool
		times   []string
	}{}}
}

func (m *memStore) Schedule(id int64) (bool, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[id]
	return e.enabled, e.times, nil
}

func (m *memStore) SetSchedule(id int64, enabled bool, times []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = struct {
		enabled bool
		times   []string
	}{enabled, times}
	return nil
}

func (m *memStore) Subscribers() ([]store.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []store.Subscriber
	for id, e := range m.entries {
		if e.enabled {
			subs = append(subs, store.Subscriber{ID: id, Times: e.times})
		}
	}
	return subs, nil
}

// recordingNotifier records delivered subscriber ids; fail and panicOn drive
// the failure-isolation tests.
type recordingNotifier struct {
	mu      sync.Mutex
	ids     []int64
	fail    map[int64]error
	panicOn int64
}

func (n *recordingNotifier) Notify(ctx context.Context, id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.panicOn == id && id != 0 {
		panic("notifier exploded")
	}
	n.ids = append(n.ids, id)
	if err := n.fail[id]; err != nil {
		return err
	}
	return nil
}

func (n *recordingNotifier) delivered() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.ids...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *memStore, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	notifier := &recordingNotifier{fail: map[int64]error{}}
	s := New(store, notifier, zap.NewNop(), time.Minute)
	return s, store, notifier
}

func jobTimes(s *Scheduler, id int64) []string {
	var times []string
	for _, j := range s.ListJobs() {
		if j.SubscriberID == id {
			times = append(times, j.Time)
		}
	}
	return times
}

func TestEnable_RegistersJobsAndPersists(t *testing.T) {
	s, store, _ := newTestScheduler(t)

	if err := s.Enable(1, []string{"18:00", "8:00"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if got := jobTimes(s, 1); len(got) != 2 || got[0] != "08:00" || got[1] != "18:00" {
		t.Fatalf("want [08:00 18:00], got %v", got)
	}
	enabled, times, _ := store.Schedule(1)
	if !enabled || len(times) != 2 {
		t.Fatalf("schedule not persisted: %v %v", enabled, times)
	}
}

func TestEnable_InvalidTimesLeaveStateUntouched(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	if err := s.Enable(1, []string{"08:00"}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if err := s.Enable(1, []string{"08:00", "99:00"}); err == nil {
		t.Fatal("expected rejection of invalid time")
	}
	if got := jobTimes(s, 1); len(got) != 1 || got[0] != "08:00" {
		t.Fatalf("prior jobs must survive a rejected update, got %v", got)
	}
	if enabled, times, _ := store.Schedule(1); !enabled || len(times) != 1 {
		t.Fatalf("persisted schedule must survive, got %v %v", enabled, times)
	}
}

func TestDisable_DropsOnlyThatSubscriber(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if err := s.Enable(1, []string{"08:00"}); err != nil {
		t.Fatalf("enable 1: %v", err)
	}
	if err := s.Enable(2, []string{"09:00"}); err != nil {
		t.Fatalf("enable 2: %v", err)
	}

	if err := s.Disable(1); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got := jobTimes(s, 1); len(got) != 0 {
		t.Fatalf("subscriber 1 jobs must be gone, got %v", got)
	}
	if got := jobTimes(s, 2); len(got) != 1 {
		t.Fatalf("subscriber 2 jobs must survive, got %v", got)
	}
}

func TestReschedule_IsIdempotent(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if err := s.Enable(1, []string{"08:00", "18:00"}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Reschedule(1); err != nil {
			t.Fatalf("reschedule %d: %v", i, err)
		}
	}
	if got := jobTimes(s, 1); len(got) != 2 {
		t.Fatalf("repeated reschedule must not duplicate jobs, got %v", got)
	}
}

func TestAddRegular_ExpandsWindow(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if err := s.AddRegular(1, 10, 22, 2); err != nil {
		t.Fatalf("add regular: %v", err)
	}
	if got := jobTimes(s, 1); len(got) != 7 || got[0] != "10:00" || got[6] != "22:00" {
		t.Fatalf("want 7 jobs 10:00..22:00, got %v", got)
	}
}

func TestRebuild_FromPersistedSchedules(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	_ = store.SetSchedule(1, true, []string{"08:00"})
	_ = store.SetSchedule(2, false, []string{"09:00"})
	_ = store.SetSchedule(3, true, []string{"10:00", "20:00"})

	if err := s.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if got := len(s.ListJobs()); got != 3 {
		t.Fatalf("want 3 jobs from enabled subscribers, got %d", got)
	}
	if got := jobTimes(s, 2); len(got) != 0 {
		t.Fatalf("disabled subscriber must get no jobs, got %v", got)
	}
}

func TestTick_FiresDueJobsOnce(t *testing.T) {
	s, _, n := newTestScheduler(t)
	if err := s.Enable(1, []string{"09:30"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := s.Enable(2, []string{"10:00"}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	s.now = func() time.Time { return time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC) }
	s.tick(context.Background())
	// Same minute again: a drifting ticker must not double-fire.
	s.tick(context.Background())

	if got := n.delivered(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("want one delivery to subscriber 1, got %v", got)
	}
}

func TestTick_FailureDoesNotBlockOthers(t *testing.T) {
	s, _, n := newTestScheduler(t)
	n.fail[1] = errors.New("send failed")
	n.panicOn = 2
	for id := int64(1); id <= 3; id++ {
		if err := s.Enable(id, []string{"12:00"}); err != nil {
			t.Fatalf("enable %d: %v", id, err)
		}
	}

	s.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	s.tick(context.Background())

	got := map[int64]bool{}
	for _, id := range n.delivered() {
		got[id] = true
	}
	if !got[1] || !got[3] {
		t.Fatalf("healthy deliveries must run despite failures, got %v", n.delivered())
	}
}
