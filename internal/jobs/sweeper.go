package jobs

import (
	"fmt"
	"time"

	"github.com/avvvet/buddy-voice/internal/memory"
	"github.com/avvvet/buddy-voice/internal/metrics"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Sweeper evicts idle sessions on a fixed interval
type Sweeper struct {
	scheduler gocron.Scheduler
	sessions  *memory.Manager
	maxIdle   time.Duration
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

func NewSweeper(sessions *memory.Manager, maxIdle, interval time.Duration, m *metrics.Metrics, log logrus.FieldLogger) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Sweeper{
		scheduler: scheduler,
		sessions:  sessions,
		maxIdle:   maxIdle,
		metrics:   m,
		log:       log,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.Sweep() }),
		gocron.WithName("session_sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to register sweep job: %w", err)
	}

	return s, nil
}

// Start runs the scheduler in the background
func (s *Sweeper) Start() {
	s.scheduler.Start()
	s.log.WithField("max_idle", s.maxIdle).Info("Session sweeper started")
}

// Stop waits for a running sweep and shuts the scheduler down
func (s *Sweeper) Stop() error {
	s.log.Info("Stopping session sweeper")
	return s.scheduler.Shutdown()
}

// Sweep evicts idle sessions once and returns how many went
func (s *Sweeper) Sweep() int {
	removed := s.sessions.EvictIdle(s.maxIdle)
	s.metrics.RecordEvictions(removed)
	if removed > 0 {
		s.log.WithFields(logrus.Fields{
			"evicted":   removed,
			"remaining": s.sessions.Count(),
		}).Info("Swept idle sessions")
	}
	return removed
}
