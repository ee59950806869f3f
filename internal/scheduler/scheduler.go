package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/metrics"
	"github.com/chris/tasky/internal/recurrence"
)

const (
	DefaultInterval = time.Minute

	kindRepeat    = "repeat"
	kindRecurring = "recurring"
)

// Scheduler turns repeating tasks and recurring definitions into concrete
// tasks once their next run comes due.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	db       *db.DB
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	mu       sync.Mutex // one tick at a time
}

func New(database *db.DB, interval time.Duration, notifier Notifier, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		cron:     cron.New(),
		interval: interval,
		db:       database,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) Start() error {
	spec := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(spec, func() {
		s.Tick(context.Background(), s.now())
	}); err != nil {
		return fmt.Errorf("scheduling tick %q: %w", spec, err)
	}
	s.cron.Start()
	log.Printf("scheduler started (every %s)", s.interval)
	return nil
}

// Stop halts the cron and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stats counts what one tick did.
type Stats struct {
	Initialized  int
	Materialized int
	Disabled     int
	Failures     int
}

// Tick runs one scan. A failing item is logged and counted; it never stops
// the rest of the scan.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	var st Stats
	s.initRepeats(ctx, now, &st)
	s.fireRepeats(ctx, now, &st)
	s.fireRecurring(ctx, now, &st)
	if st.Materialized > 0 || st.Failures > 0 {
		log.Printf("scheduler: tick materialized=%d initialized=%d disabled=%d failures=%d",
			st.Materialized, st.Initialized, st.Disabled, st.Failures)
	}
	return st
}

func (s *Scheduler) fail(st *Stats, kind, id string, err error) {
	st.Failures++
	s.metrics.SchedulerFailure(kind)
	log.Printf("scheduler[%s %s]: %v", kind, id, err)
}

// initRepeats gives repeating tasks created without a next run their first
// one.
func (s *Scheduler) initRepeats(ctx context.Context, now time.Time, st *Stats) {
	tasks, err := s.db.ListRepeatsNeedingInit(ctx)
	if err != nil {
		s.fail(st, kindRepeat, "init", err)
		return
	}
	for _, t := range tasks {
		spec := *t.Repeat
		if err := spec.Schedule(now); err != nil {
			s.fail(st, kindRepeat, t.ID, err)
			continue
		}
		if err := s.db.SetRepeatNextRun(ctx, t.ID, *spec.NextRunAt); err != nil {
			s.fail(st, kindRepeat, t.ID, err)
			continue
		}
		st.Initialized++
	}
}

func (s *Scheduler) fireRepeats(ctx context.Context, now time.Time, st *Stats) {
	tasks, err := s.db.ListDueRepeats(ctx, now)
	if err != nil {
		s.fail(st, kindRepeat, "scan", err)
		return
	}
	for _, t := range tasks {
		runAt := *t.Repeat.NextRunAt
		next, err := recurrence.NextRun(now.Add(time.Second), t.Repeat.Cadence())
		if err != nil {
			s.fail(st, kindRepeat, t.ID, err)
			continue
		}
		created, err := s.materialize(ctx, t.UserID, t.Title, t.Description, runAt, t.ID, kindRepeat)
		if err != nil {
			s.fail(st, kindRepeat, t.ID, err)
			continue
		}
		st.Materialized++
		if err := s.db.SetRepeatNextRun(ctx, t.ID, next); err != nil {
			s.fail(st, kindRepeat, t.ID, err)
			continue
		}
		s.announce(ctx, created, now)
	}
}

func (s *Scheduler) fireRecurring(ctx context.Context, now time.Time, st *Stats) {
	defs, err := s.db.ListDueRecurring(ctx, now)
	if err != nil {
		s.fail(st, kindRecurring, "scan", err)
		return
	}
	for _, def := range defs {
		if def.Expired(now) {
			if err := s.db.DisableRecurring(ctx, def.ID); err != nil {
				s.fail(st, kindRecurring, def.ID, err)
				continue
			}
			st.Disabled++
			log.Printf("scheduler[%s %s]: ended, disabled", kindRecurring, def.ID)
			continue
		}
		runAt := *def.NextRunAt
		next, err := recurrence.NextRun(now.Add(time.Second), def.Cadence())
		if err != nil {
			s.fail(st, kindRecurring, def.ID, err)
			continue
		}
		created, err := s.materialize(ctx, def.UserID, def.Title, def.Description, runAt, def.ID, kindRecurring)
		if err != nil {
			s.fail(st, kindRecurring, def.ID, err)
			continue
		}
		st.Materialized++
		if err := s.db.SetRecurringNextRun(ctx, def.ID, next); err != nil {
			s.fail(st, kindRecurring, def.ID, err)
			continue
		}
		s.announce(ctx, created, now)
	}
}

func (s *Scheduler) materialize(ctx context.Context, userID, title, description string, due time.Time, sourceID, kind string) (*db.Task, error) {
	task, err := s.db.CreateTask(ctx, db.Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      db.StatusPending,
		DueDate:     &due,
		SourceID:    sourceID,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Materialized(kind)
	s.metrics.TaskCreated("scheduler")
	return task, nil
}

func (s *Scheduler) announce(ctx context.Context, t *db.Task, now time.Time) {
	user, err := s.db.GetUser(ctx, t.UserID)
	if err != nil {
		log.Printf("scheduler: loading owner of task %s: %v", t.ID, err)
		return
	}
	if err := s.notifier.Notify(ctx, user, ReminderText(t, now)); err != nil {
		log.Printf("scheduler: notifying %s about task %s: %v", user.ID, t.ID, err)
	}
}

// ReminderText is the message sent when a task is materialized.
func ReminderText(t *db.Task, now time.Time) string {
	if t.DueDate == nil {
		return fmt.Sprintf("⏰ %s", t.Title)
	}
	return fmt.Sprintf("⏰ %s, due %s (%s UTC)",
		t.Title, humanize.RelTime(*t.DueDate, now, "ago", "from now"), t.DueDate.UTC().Format("Mon 2 Jan 15:04"))
}
