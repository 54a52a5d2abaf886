package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
	"github.com/mamadbah2/kurban/internal/service/whatsapp"
)

const jobTimeout = 2 * time.Minute

// Reports is the part of the reporting service the scheduled jobs use.
type Reports interface {
	DailySummary(ctx context.Context) (string, error)
	SaveSnapshot(ctx context.Context) (models.DailyReport, error)
	ExportToSheet(ctx context.Context) (int, error)
	ExportEnabled() bool
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron         *cron.Cron
	reportingSvc Reports
	messagingSvc whatsapp.MessagingService
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler running in the configured timezone.
func NewScheduler(cfg config.Config, reportingSvc Reports, messagingSvc whatsapp.MessagingService, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone: %w", err)
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		reportingSvc: reportingSvc,
		messagingSvc: messagingSvc,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.runDailyReport); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", s.cfg.Reporting.CronSchedule, err)
	}

	if schedule := s.cfg.Reporting.ExportCronSchedule; schedule != "" && s.reportingSvc.ExportEnabled() {
		if _, err := s.cron.AddFunc(schedule, s.runExport); err != nil {
			return fmt.Errorf("schedule sheet export %q: %w", schedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDailyReport() {
	s.logger.Info("running daily report")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.reportingSvc.SaveSnapshot(ctx); err != nil {
		s.logger.Error("failed to save daily snapshot", zap.Error(err))
	}

	to := s.cfg.WhatsApp.ManagerNumber
	if to == "" || !s.messagingSvc.Enabled() {
		s.logger.Debug("daily summary not sent, no manager number or sending disabled")
		return
	}

	summary, err := s.reportingSvc.DailySummary(ctx)
	if err != nil {
		s.logger.Error("failed to build daily summary", zap.Error(err))
		return
	}

	req := models.OutboundMessageRequest{
		To:      models.InternationalNumber(to, s.cfg.WhatsApp.CountryCode),
		Message: summary,
	}
	if err := s.messagingSvc.SendOutbound(ctx, req); err != nil {
		s.logger.Error("failed to send daily summary", zap.Error(err))
	} else {
		s.logger.Info("daily summary sent successfully")
	}
}

func (s *Scheduler) runExport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	rows, err := s.reportingSvc.ExportToSheet(ctx)
	if err != nil {
		s.logger.Error("scheduled sheet export failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled sheet export done", zap.Int("rows", rows))
}
