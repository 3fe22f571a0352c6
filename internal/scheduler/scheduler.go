package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Revalidator refetches every cached entry and reports how many were refetched.
type Revalidator interface {
	Revalidate(ctx context.Context) int
}

// Scheduler periodically revalidates cached growth observations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Revalidator
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. timeout bounds a single revalidation run.
func New(interval, timeout time.Duration, target Revalidator) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		target:    target,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// A non-positive interval disables revalidation.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: revalidation interval not set; nothing to schedule")
		return nil
	}

	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}

	_, err := s.scheduler.Every(seconds).Seconds().WaitForSchedule().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	log.Println("scheduler: running revalidation job")

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	n := s.target.Revalidate(ctx)
	log.Printf("scheduler: revalidated %d cached patients", n)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
