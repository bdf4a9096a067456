package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DailyJob is the work run on each scheduled tick.
type DailyJob func(ctx context.Context, date string) error

// Scheduler runs a DailyJob for the previous day on a cron spec.
type Scheduler struct {
	cron *cron.Cron
	spec string
	job  DailyJob
	now  func() time.Time
}

// NewScheduler validates spec (standard five-field cron syntax).
func NewScheduler(spec string, job DailyJob) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: cron.New(), spec: spec, job: job, now: time.Now}, nil
}

// PreviousDay returns the date one day before t, formatted YYYY-MM-DD.
func PreviousDay(t time.Time) string {
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// Start registers the job and starts the cron loop. The loop stops when
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	infof("daily schedule registered: %s", s.spec)

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
	return nil
}

// RunOnce runs the job for the previous day and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	date := PreviousDay(s.now().UTC())
	infof("scheduled run for %s", date)
	if err := s.job(ctx, date); err != nil {
		errorf("scheduled run for %s failed: %v", date, err)
	}
}
