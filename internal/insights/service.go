package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forumlens/audience-insights/internal/analysis"
	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/models"
	"github.com/forumlens/audience-insights/internal/notifications"
	"github.com/forumlens/audience-insights/internal/sources"
	"github.com/forumlens/audience-insights/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	snapshotPrefix    = "reports/"
	scheduledTimeout  = 30 * time.Minute
	maxForumsPerQuery = 25
)

// Service runs audience analyses, persists report snapshots and tracks
// run metrics
type Service struct {
	config              *config.Config
	analyzer            *analysis.Analyzer
	merger              *analysis.Merger
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	metrics             *Metrics
	mu                  sync.RWMutex
}

// Metrics holds run metrics
type Metrics struct {
	TotalRuns       int            `json:"total_runs"`
	LastRun         time.Time      `json:"last_run"`
	LastRunDuration string         `json:"last_run_duration"`
	LastReportID    string         `json:"last_report_id"`
	PostsAnalysed   int            `json:"posts_analysed"`
	ForumPosts      map[string]int `json:"forum_posts"`
	ErrorCount      int            `json:"error_count"`
	LastErrors      []string       `json:"last_errors"`
}

// NewService creates a new insights service
func NewService(cfg *config.Config, analyzer *analysis.Analyzer, fetcher analysis.PostFetcher, store storage.StorageInterface, notificationService notifications.NotificationInterface) *Service {
	if store == nil {
		store = storage.NopStorage{}
	}
	return &Service{
		config:   cfg,
		analyzer: analyzer,
		merger: analysis.NewMerger(analyzer, fetcher, analysis.MergerOptions{
			Sort:          sources.ParseSortMode(cfg.SortMode),
			FetchTimeout:  cfg.FetchTimeout,
			MaxConcurrent: cfg.MaxConcurrent,
		}),
		storage:             store,
		notificationService: notificationService,
		metrics: &Metrics{
			ForumPosts: make(map[string]int),
		},
	}
}

// Analyzer exposes the underlying analyzer for partial-result callers
func (s *Service) Analyzer() *analysis.Analyzer {
	return s.analyzer
}

// Analyze fetches and analyses the given forums. A limit of zero uses the
// configured post limit.
func (s *Service) Analyze(ctx context.Context, forums []string, limit int) (*models.AnalysisReport, error) {
	if len(forums) > maxForumsPerQuery {
		return nil, fmt.Errorf("at most %d forums can be analysed at once, got %d", maxForumsPerQuery, len(forums))
	}
	if limit <= 0 {
		limit = s.config.PostLimit
	}

	start := time.Now()
	report, err := s.merger.AnalyzeSources(ctx, forums, limit)
	if err != nil {
		return nil, err
	}

	if err := s.storeSnapshot(report); err != nil {
		logrus.Errorf("Failed to store report snapshot: %v", err)
	}

	s.updateMetrics(report, time.Since(start))
	return report, nil
}

// RunScheduled analyses the configured audience and sends the digest
func (s *Service) RunScheduled() error {
	logrus.Infof("Starting scheduled analysis of %d forums", len(s.config.Audiences))

	ctx, cancel := context.WithTimeout(context.Background(), scheduledTimeout)
	defer cancel()

	report, err := s.Analyze(ctx, s.config.Audiences, s.config.PostLimit)
	if err != nil {
		return fmt.Errorf("scheduled analysis failed: %w", err)
	}

	if s.notificationService == nil || !s.config.NotificationsEnabled() {
		logrus.Debug("No notification channel configured, skipping digest")
		return nil
	}

	if err := s.notificationService.SendReport(report); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	return nil
}

func snapshotName(report *models.AnalysisReport) string {
	return fmt.Sprintf("%s%s-%s.json", snapshotPrefix, report.GeneratedAt.Format("2006-01-02-15-04-05"), report.ID)
}

func (s *Service) storeSnapshot(report *models.AnalysisReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return s.storage.Store(snapshotName(report), data)
}

// ListSnapshots returns stored snapshot names, newest first
func (s *Service) ListSnapshots() ([]string, error) {
	names, err := s.storage.List(snapshotPrefix)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// LoadSnapshot reads a stored report by snapshot name or report ID
func (s *Service) LoadSnapshot(name string) (*models.AnalysisReport, error) {
	if !strings.HasPrefix(name, snapshotPrefix) {
		names, err := s.ListSnapshots()
		if err != nil {
			return nil, err
		}
		match := ""
		for _, n := range names {
			if strings.HasSuffix(n, "-"+name+".json") {
				match = n
				break
			}
		}
		if match == "" {
			return nil, &storage.NotFoundError{Name: name}
		}
		name = match
	}

	data, err := s.storage.Retrieve(name)
	if err != nil {
		return nil, err
	}

	var report models.AnalysisReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return &report, nil
}

func (s *Service) updateMetrics(report *models.AnalysisReport, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRuns++
	s.metrics.LastRun = report.GeneratedAt
	s.metrics.LastRunDuration = duration.String()
	s.metrics.LastReportID = report.ID
	s.metrics.PostsAnalysed = report.TotalPosts
	s.metrics.ErrorCount = len(report.Errors)
	s.metrics.LastErrors = append([]string(nil), report.Errors...)

	s.metrics.ForumPosts = make(map[string]int, len(report.PostCounts))
	for forum, n := range report.PostCounts {
		s.metrics.ForumPosts[forum] = n
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
