package scheduler

import (
	"fmt"

	"github.com/forumlens/audience-insights/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is the scheduled job the scheduler drives
type Runner interface {
	RunScheduled() error
}

// Service handles scheduling of audience analysis runs
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, runner Runner) *Service {
	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Expression returns the cron expression for a schedule name. "off" yields
// an empty expression.
func Expression(schedule string) (string, error) {
	switch schedule {
	case "daily":
		// 9 AM UTC
		return "0 0 9 * * *", nil
	case "weekly":
		// Monday 9 AM UTC
		return "0 0 9 * * MON", nil
	case "off":
		return "", nil
	default:
		return "", fmt.Errorf("unknown analysis schedule %q", schedule)
	}
}

// Start begins the scheduled analysis
func (s *Service) Start() error {
	cronExpression, err := Expression(s.config.AnalysisSchedule)
	if err != nil {
		return err
	}
	if cronExpression == "" {
		logrus.Info("Scheduled analysis disabled")
		return nil
	}

	_, err = s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled analysis run")
		if err := s.runner.RunScheduled(); err != nil {
			logrus.Errorf("Scheduled analysis run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule", s.config.AnalysisSchedule)
	return nil
}

// Entries returns the number of registered jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
