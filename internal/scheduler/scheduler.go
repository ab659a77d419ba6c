package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/polling"
)

// Poller runs one polling pass.
type Poller interface {
	PollingUpdate(ctx context.Context) (polling.Report, error)
}

// Options tunes the Scheduler.
type Options struct {
	Interval time.Duration
	// RetryDelay is how long to wait before retrying a pass whose first location failed.
	// Zero disables the retry.
	RetryDelay time.Duration
	// Timeout bounds a single pass.
	Timeout time.Duration
}

// Scheduler periodically refreshes the weather of every stored location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	poller    Poller
	opts      Options
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New creates a new Scheduler.
func New(poller Poller, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		poller:    poller,
		opts:      opts,
		logger:    logger.Named("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first pass runs immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.opts.Interval).SingletonMode().Do(s.job)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("polling scheduled", zap.Duration("interval", s.opts.Interval))
	return nil
}

// Stop stops the scheduler and aborts a running pass.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) job() {
	report, err := s.RunNow(s.ctx)
	if err != nil || !report.Failed || s.opts.RetryDelay <= 0 {
		return
	}

	timer := time.NewTimer(s.opts.RetryDelay)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return
	case <-timer.C:
	}
	_, _ = s.RunNow(s.ctx)
}

// RunNow runs one pass outside the schedule. Passes never overlap.
func (s *Scheduler) RunNow(ctx context.Context) (polling.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))
	log.Debug("running polling pass")

	start := time.Now()
	report, err := s.poller.PollingUpdate(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("polling pass canceled")
		} else {
			log.Error("polling pass failed", zap.Error(err))
		}
		return report, err
	}

	succeeded := 0
	for _, r := range report.Results {
		if r.Succeeded {
			succeeded++
		}
	}
	log.Info("polling pass completed",
		zap.Int("locations", len(report.Results)),
		zap.Int("succeeded", succeeded),
		zap.Bool("retry", report.Failed),
		zap.Duration("took", time.Since(start)))

	if len(report.Results) > 0 {
		first := report.Results[0]
		for _, a := range first.NewAlerts {
			log.Info("new weather alert",
				zap.String("location", first.Location.FormattedID()),
				zap.String("alert_id", a.ID),
				zap.String("description", a.Description),
				zap.Int("priority", a.Priority))
		}
		if p := first.Precipitation; p != nil {
			log.Info("precipitation expected",
				zap.String("location", first.Location.FormattedID()),
				zap.Time("start", p.Start),
				zap.String("weather", p.WeatherText))
		}
	}
	return report, nil
}
