package scheduler

import (
	"context"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	dailyReportSchedule  = "0 0 9 * * *"
	housekeepingSchedule = "0 0 * * * *"
)

// Pipeline is the work the scheduler drives
type Pipeline interface {
	RefreshNews(ctx context.Context) error
	SweepCache(ctx context.Context) error
	SendDailyReport(ctx context.Context) error
}

// Service handles scheduling of pipeline tasks
type Service struct {
	config   *config.Config
	pipeline Pipeline
	cron     *cron.Cron
	timeout  time.Duration
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, pipeline Pipeline) *Service {
	return &Service{
		config:   cfg,
		pipeline: pipeline,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
		timeout:  10 * time.Minute,
	}
}

func (s *Service) add(spec, name string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		logrus.Infof("Starting scheduled %s", name)
		if err := job(ctx); err != nil {
			logrus.Errorf("Scheduled %s failed: %v", name, err)
		}
	})
	return err
}

// Start registers the refresh, housekeeping and report jobs and starts the scheduler
func (s *Service) Start() error {
	if err := s.add(s.config.RefreshSchedule, "news refresh", s.pipeline.RefreshNews); err != nil {
		return err
	}

	if err := s.add(housekeepingSchedule, "cache housekeeping", s.pipeline.SweepCache); err != nil {
		return err
	}

	if s.config.ReportSchedule == "daily" {
		if err := s.add(dailyReportSchedule, "forecast report", s.pipeline.SendDailyReport); err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started: refresh %q, report %s (%s)", s.config.RefreshSchedule, s.config.ReportSchedule, s.config.Location())
	return nil
}

// Entries returns the number of registered jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
