package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/config"
	"github.com/karimdiab/saydaly/internal/service/reporting"
)

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron         *cron.Cron
	reportingSvc *reporting.Service
	cfg          config.RollupConfig
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.RollupConfig, reportingSvc *reporting.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to local", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.Local
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		reportingSvc: reportingSvc,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers the daily rollup job and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.recordDailyRollups); err != nil {
		s.logger.Error("failed to schedule daily rollup", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// recordDailyRollups closes out yesterday's ledger for every configured
// pharmacy. A failure for one pharmacy does not block the others.
func (s *Scheduler) recordDailyRollups() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	yesterday := time.Now().AddDate(0, 0, -1)
	for _, pharmacyID := range s.cfg.PharmacyIDs {
		if _, err := s.reportingSvc.RecordDailyRollup(ctx, pharmacyID, yesterday); err != nil {
			s.logger.Error("daily rollup failed",
				zap.String("pharmacy_id", pharmacyID), zap.Error(err))
		}
	}
}
