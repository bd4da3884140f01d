package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/config"
	"github.com/npaujiana/scraper-tiktok/internal/export"
	"github.com/npaujiana/scraper-tiktok/internal/feed"
	"github.com/npaujiana/scraper-tiktok/internal/notifications"
	"github.com/npaujiana/scraper-tiktok/internal/storage"
)

// Service schedules feed polling and periodic spreadsheet exports
type Service struct {
	config   *config.Config
	poller   *feed.Poller
	exporter *export.Builder
	store    storage.ArtifactStore
	notifier notifications.NotificationInterface
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, poller *feed.Poller, exporter *export.Builder,
	store storage.ArtifactStore, notifier notifications.NotificationInterface) *Service {
	return &Service{
		config:   cfg,
		poller:   poller,
		exporter: exporter,
		store:    store,
		notifier: notifier,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled jobs
func (s *Service) Start() error {
	var exportExpression string

	switch s.config.ExportSchedule {
	case "daily":
		// Export daily at 6 AM UTC
		exportExpression = "0 0 6 * * *"
	case "weekly":
		// Export weekly on Monday at 6 AM UTC
		exportExpression = "0 0 6 * * MON"
	default:
		exportExpression = "0 0 6 * * *"
	}

	_, err := s.cron.AddFunc(exportExpression, func() {
		logrus.Info("Starting scheduled export run")
		if _, _, err := s.RunExport(context.Background()); err != nil {
			logrus.Errorf("Scheduled export run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(fmt.Sprintf("@every %dm", s.config.FeedPollMinutes), func() {
		logrus.Info("Starting scheduled feed poll")
		s.RunFeedPoll(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s export schedule (feed poll every %d minutes)",
		s.config.ExportSchedule, s.config.FeedPollMinutes)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}

// RunFeedPoll drains every enabled feed source once and reports on batches
// that saw failures
func (s *Service) RunFeedPoll(ctx context.Context) {
	reports := s.poller.RunOnce(ctx)
	for source, report := range reports {
		if report.Failed == 0 {
			continue
		}
		logrus.Infof("Feed %s batch %s had %d failures, sending report", source, report.BatchID, report.Failed)
		if err := s.notifier.SendIngestReport(report); err != nil {
			logrus.Errorf("Failed to send ingest report for feed %s: %v", source, err)
		}
	}
}

// RunExport builds a full multi-sheet export, stores the artifact and
// announces it. Returns the artifact name and row count.
func (s *Service) RunExport(ctx context.Context) (string, int, error) {
	filename := export.Filename("databank_export")

	// The artifact name has second granularity, so concurrent runs must not
	// share a scratch path
	tmp, err := os.CreateTemp("", "databank-export-*.xlsx")
	if err != nil {
		return "", 0, fmt.Errorf("create scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	rows, err := s.exporter.ExportAll(ctx, tmpPath)
	if err != nil {
		return "", 0, fmt.Errorf("export failed: %w", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", 0, fmt.Errorf("read export artifact: %w", err)
	}
	if err := s.store.Store(filename, data); err != nil {
		return "", 0, fmt.Errorf("store export artifact: %w", err)
	}

	if err := s.notifier.SendExportNotice(&notifications.ExportNotice{
		Artifact:    filename,
		Rows:        rows,
		GeneratedAt: time.Now().UTC(),
	}); err != nil {
		logrus.Errorf("Failed to send export notice: %v", err)
	}

	return filename, rows, nil
}
