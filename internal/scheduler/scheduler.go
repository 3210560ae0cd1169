package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-cities/internal/weather"
)

// Refresher re-fetches the saved city list.
type Refresher interface {
	Refresh(ctx context.Context) (weather.RefreshReport, error)
}

// Scheduler periodically refreshes the saved cities. Runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. A non-positive interval disables it.
func New(refresher Refresher, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		logger:    logger.Named("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// The first run happens right away.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("refresh interval not set; nothing to schedule")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.run); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) run() {
	start := time.Now()
	s.logger.Debug("running refresh job")

	report, err := s.refresher.Refresh(s.ctx)
	if err != nil {
		s.logger.Error("refresh job failed", zap.Error(err))
		return
	}

	s.logger.Info("refresh job completed",
		zap.String("run_id", report.RunID),
		zap.Int("updated", report.Updated),
		zap.Int("stale", len(report.Stale)),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop cancels an in-flight refresh and stops future runs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
