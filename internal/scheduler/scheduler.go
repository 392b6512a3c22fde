// Package scheduler drives the assignment engine from two periodic loops:
// a scan for due one-time missions and a poll that registers a cron entry per
// idle recurring mission.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"droneSurveyManagement/internal/assign"
	"droneSurveyManagement/models"
)

// Assigner binds a drone to a mission.
type Assigner interface {
	Assign(ctx context.Context, missionID string) (*assign.Result, error)
}

// StatusStore provides the scheduling queries.
type StatusStore interface {
	GetByMissionID(ctx context.Context, missionID string) (*models.MissionStatus, error)
	ListDueOneTime(ctx context.Context, now time.Time) ([]*models.MissionStatus, error)
	ListRecurringIdle(ctx context.Context) ([]*models.MissionStatus, error)
}

// Options sets the loop intervals.
type Options struct {
	OneTimeInterval       time.Duration
	RecurringPollInterval time.Duration
}

type registration struct {
	entry cron.EntryID
	expr  string
}

// Scheduler owns the cron runner and the registry of recurring entries.
// The registry holds at most one entry per mission.
type Scheduler struct {
	statuses StatusStore
	assigner Assigner
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	recurring map[string]registration
	started   bool
}

// New creates a scheduler that binds missions through assigner.
func New(statuses StatusStore, assigner Assigner, opts Options, log *slog.Logger) *Scheduler {
	if opts.OneTimeInterval <= 0 {
		opts.OneTimeInterval = time.Minute
	}
	if opts.RecurringPollInterval <= 0 {
		opts.RecurringPollInterval = 60 * time.Second
	}
	log = log.With("component", "scheduler")
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		statuses:  statuses,
		assigner:  assigner,
		opts:      opts,
		log:       log,
		now:       time.Now,
		cron:      cron.New(cron.WithParser(models.CronParser), cron.WithChain(cron.Recover(cronLog)), cron.WithLogger(cronLog)),
		ctx:       ctx,
		cancel:    cancel,
		recurring: map[string]registration{},
	}
}

// Start schedules both loops and starts the cron runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	skip := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger))
	if _, err := s.cron.AddJob(every(s.opts.OneTimeInterval), skip.Then(cron.FuncJob(func() {
		_, _ = s.RunOneTimeScan(s.ctx)
	}))); err != nil {
		return fmt.Errorf("schedule one-time scan: %w", err)
	}
	if _, err := s.cron.AddJob(every(s.opts.RecurringPollInterval), skip.Then(cron.FuncJob(func() {
		_, _ = s.PollRecurring(s.ctx)
	}))); err != nil {
		return fmt.Errorf("schedule recurring poll: %w", err)
	}
	s.cron.Start()
	s.started = true
	s.log.Info("scheduler started", "one_time_interval", s.opts.OneTimeInterval, "recurring_poll_interval", s.opts.RecurringPollInterval)
	return nil
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// RunOneTimeScan assigns drones to due one-time missions, oldest first, and
// returns how many were bound. The scan stops at the first mission for which
// no drone is eligible.
func (s *Scheduler) RunOneTimeScan(ctx context.Context) (int, error) {
	due, err := s.statuses.ListDueOneTime(ctx, s.now())
	if err != nil {
		s.log.Error("list due one-time missions failed", "err", err)
		return 0, err
	}
	if len(due) == 0 {
		s.log.Debug("no one-time missions due")
		return 0, nil
	}
	bound := 0
	for _, st := range due {
		_, err := s.assigner.Assign(ctx, st.MissionID)
		switch {
		case err == nil:
			bound++
		case errors.Is(err, assign.ErrNoEligibleDrone):
			s.log.Info("no eligible drone; one-time scan stopped", "mission_id", st.MissionID, "remaining", len(due)-bound)
			return bound, nil
		default:
			s.log.Warn("one-time assignment skipped", "mission_id", st.MissionID, "err", err)
		}
		if ctx.Err() != nil {
			return bound, ctx.Err()
		}
	}
	return bound, nil
}

// PollRecurring registers a cron entry for every idle recurring mission that
// has none, replaces entries whose expression changed, and drops entries of
// missions that no longer exist. It returns how many entries were added.
func (s *Scheduler) PollRecurring(ctx context.Context) (int, error) {
	idle, err := s.statuses.ListRecurringIdle(ctx)
	if err != nil {
		s.log.Error("list recurring missions failed", "err", err)
		return 0, err
	}
	seen := make(map[string]bool, len(idle))
	added := 0
	for _, st := range idle {
		seen[st.MissionID] = true
		expr := ""
		if st.Mission != nil {
			expr = st.Mission.Schedule.Cron
		}
		if expr == "" {
			s.log.Warn("recurring mission has no cron expression", "mission_id", st.MissionID)
			continue
		}
		ok, err := s.register(st.MissionID, expr)
		if err != nil {
			s.log.Warn("invalid cron expression; mission skipped", "mission_id", st.MissionID, "cron", expr, "err", err)
			continue
		}
		if ok {
			added++
		}
	}
	s.prune(ctx, seen)
	return added, nil
}

// register adds or replaces the entry of missionID. It reports false when an
// entry with the same expression already exists.
func (s *Scheduler) register(missionID, expr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg, ok := s.recurring[missionID]; ok {
		if reg.expr == expr {
			return false, nil
		}
		s.cron.Remove(reg.entry)
		delete(s.recurring, missionID)
		s.log.Info("recurring schedule changed", "mission_id", missionID, "old", reg.expr, "new", expr)
	}
	id, err := s.cron.AddFunc(expr, func() {
		_ = s.FireRecurring(s.ctx, missionID)
	})
	if err != nil {
		return false, err
	}
	s.recurring[missionID] = registration{entry: id, expr: expr}
	s.log.Info("recurring mission registered", "mission_id", missionID, "cron", expr)
	return true, nil
}

// prune drops entries whose mission is gone. Missions that are merely busy
// keep their entry.
func (s *Scheduler) prune(ctx context.Context, seen map[string]bool) {
	for _, id := range s.Registered() {
		if seen[id] {
			continue
		}
		st, err := s.statuses.GetByMissionID(ctx, id)
		if err != nil {
			s.log.Warn("check registered mission failed", "mission_id", id, "err", err)
			continue
		}
		if st == nil {
			s.Unregister(id)
		}
	}
}

// FireRecurring is one firing of a recurring mission. The current status is
// re-read; a mission that is not idle is skipped, a deleted one is unregistered.
func (s *Scheduler) FireRecurring(ctx context.Context, missionID string) error {
	st, err := s.statuses.GetByMissionID(ctx, missionID)
	if err != nil {
		s.log.Error("read recurring mission status failed", "mission_id", missionID, "err", err)
		return err
	}
	if st == nil {
		s.log.Info("recurring mission no longer exists", "mission_id", missionID)
		s.Unregister(missionID)
		return nil
	}
	if st.State != models.MissionNotStarted {
		s.log.Info("recurring firing skipped; mission busy", "mission_id", missionID, "status", st.State)
		return nil
	}
	_, err = s.assigner.Assign(ctx, missionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, assign.ErrNoEligibleDrone):
		s.log.Info("no eligible drone; recurring firing skipped", "mission_id", missionID)
		return nil
	default:
		s.log.Warn("recurring assignment failed", "mission_id", missionID, "err", err)
		return err
	}
}

// Unregister removes the recurring entry of missionID, if any.
func (s *Scheduler) Unregister(missionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.recurring[missionID]
	if !ok {
		return false
	}
	s.cron.Remove(reg.entry)
	delete(s.recurring, missionID)
	s.log.Info("recurring mission unregistered", "mission_id", missionID)
	return true
}

// Registered returns the missions that currently have a recurring entry.
func (s *Scheduler) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.recurring))
	for id := range s.recurring {
		out = append(out, id)
	}
	return out
}

// Expression returns the cron expression registered for missionID.
func (s *Scheduler) Expression(missionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.recurring[missionID]
	return reg.expr, ok
}

// Entries is the number of cron entries, including the two loops once started.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
