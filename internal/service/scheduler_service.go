package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs background jobs on cron schedules. A job still running when
// its next tick fires is skipped. Panics are recovered inside the skip guard,
// which does not release its slot on panic.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewScheduler(loc *time.Location, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	cl := cronLogger{log: log.With("component", "scheduler")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		log: log,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *Scheduler) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a job every interval, rounded down to whole
// seconds with a one second floor.
func (s *Scheduler) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, errors.New("interval must be positive")
	}
	return s.cron.Schedule(cron.Every(interval), cron.FuncJob(job)), nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// buildDailySpec turns "HH:MM" into a six field cron spec
// (second minute hour dom month dow).
func buildDailySpec(timeStr string) (string, error) {
	h, m, ok := strings.Cut(timeStr, ":")
	if !ok || strings.Contains(m, ":") {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// InvitationSweeper deactivates expired invitations.
type InvitationSweeper interface {
	SweepExpiredInvitations(ctx context.Context) (int64, error)
}

// SweepJob runs the sweeper once under timeout, logging the outcome.
func SweepJob(sweeper InvitationSweeper, timeout time.Duration, log *slog.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := sweeper.SweepExpiredInvitations(ctx)
		if err != nil {
			log.Error("invitation sweep failed", "err", err)
			return
		}
		if n > 0 {
			log.Info("expired invitations deactivated", "count", n)
		}
	}
}

// ScheduleInvitationSweep registers the sweep daily at "HH:MM" when at is
// set, otherwise every interval.
func (s *Scheduler) ScheduleInvitationSweep(sweeper InvitationSweeper, at string, interval time.Duration) (cron.EntryID, error) {
	job := SweepJob(sweeper, 30*time.Second, s.log)
	if at != "" {
		return s.ScheduleDaily(at, job)
	}
	return s.ScheduleInterval(interval, job)
}

// cronLogger adapts slog to cron.Logger. Routine scheduling chatter is
// demoted to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
