package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/forumlens/audience-insights/internal/sources"
)

// DefaultFetchTimeout bounds a single forum fetch when none is configured
const DefaultFetchTimeout = 30 * time.Second

// PostFetcher is the content platform capability the merger consumes
type PostFetcher interface {
	FetchPosts(ctx context.Context, forum string, sort sources.SortMode, limit int) ([]models.Post, error)
}

// StatsFetcher is optionally implemented by fetchers that expose forum metadata
type StatsFetcher interface {
	FetchStats(ctx context.Context, forum string) (*models.ForumStats, error)
}

// FetchFunc adapts a plain function to PostFetcher
type FetchFunc func(ctx context.Context, forum string, sort sources.SortMode, limit int) ([]models.Post, error)

func (f FetchFunc) FetchPosts(ctx context.Context, forum string, sort sources.SortMode, limit int) ([]models.Post, error) {
	return f(ctx, forum, sort, limit)
}

// MergerOptions configures a Merger
type MergerOptions struct {
	Sort          sources.SortMode
	FetchTimeout  time.Duration
	MaxConcurrent int // 0 means one goroutine per forum
}

// Merger analyses several forums concurrently and merges them into one report
type Merger struct {
	analyzer *Analyzer
	fetcher  PostFetcher
	opts     MergerOptions
}

// NewMerger creates a merger over an analyzer and a post fetcher
func NewMerger(analyzer *Analyzer, fetcher PostFetcher, opts MergerOptions) *Merger {
	if opts.Sort == "" {
		opts.Sort = sources.SortHot
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Merger{analyzer: analyzer, fetcher: fetcher, opts: opts}
}

// AnalyzeSources fetches up to limit posts from every forum and returns the
// merged report. Forums that fail or return nothing are listed in
// report.Errors; an error is returned only for invalid arguments or when
// ctx itself is done.
func (m *Merger) AnalyzeSources(ctx context.Context, forums []string, limit int) (*models.AnalysisReport, error) {
	forums = uniqueForums(forums)
	if len(forums) == 0 {
		return nil, fmt.Errorf("at least one forum is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit per forum must be positive, got %d", limit)
	}

	start := time.Now()
	results := make([]*ForumResult, len(forums))

	g, gctx := errgroup.WithContext(ctx)
	if m.opts.MaxConcurrent > 0 {
		g.SetLimit(m.opts.MaxConcurrent)
	}

	for i, forum := range forums {
		i, forum := i, forum
		g.Go(func() error {
			results[i] = m.analyzeForum(gctx, forum, limit)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	report := m.analyzer.Report(results)
	logrus.Infof("Analysed %d forums (%d posts, %d errors) in %v",
		len(forums), report.TotalPosts, len(report.Errors), time.Since(start))
	return report, nil
}

func (m *Merger) analyzeForum(ctx context.Context, forum string, limit int) *ForumResult {
	log := logrus.WithField("forum", forum)

	fctx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancel()

	posts, err := awaitFetch(fctx, func(ctx context.Context) ([]models.Post, error) {
		return m.fetcher.FetchPosts(ctx, forum, m.opts.Sort, limit)
	})
	if err != nil {
		log.Errorf("Error fetching posts: %v", err)
		return &ForumResult{Forum: forum, Err: err}
	}
	if len(posts) == 0 {
		log.Warn("Forum returned no posts")
		return &ForumResult{Forum: forum, Err: errNoPosts}
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}

	result := m.analyzer.AnalyzePosts(forum, posts)

	if sf, ok := m.fetcher.(StatsFetcher); ok {
		stats, err := awaitFetch(fctx, func(ctx context.Context) (*models.ForumStats, error) {
			return sf.FetchStats(ctx, forum)
		})
		if err != nil {
			log.Debugf("Forum stats unavailable: %v", err)
		} else {
			result.Stats = stats
		}
	}

	log.Infof("Analysed %d posts (%d skipped)", result.Posts, result.Skipped)
	return result
}

// awaitFetch runs fetch in its own goroutine and gives up when ctx is done,
// so a fetcher that ignores its context cannot stall the merge.
func awaitFetch[T any](ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fetch(ctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func uniqueForums(forums []string) []string {
	seen := make(map[string]bool, len(forums))
	out := make([]string, 0, len(forums))
	for _, f := range forums {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
