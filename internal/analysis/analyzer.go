package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/forumlens/audience-insights/internal/sources"
)

// Defaults applied when an option is left at its zero value
const (
	DefaultMinPostCount     = 2
	DefaultTopN             = 20
	DefaultPerThemeExamples = 5
	DefaultBodyPrefix       = 500
)

// ConfigurationError reports invalid analyzer options. It is only returned
// from New, never from a per-request call.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Options configures an Analyzer. A nil ThemeRules or Stopwords slice selects
// the built-in table; a non-nil empty ThemeRules slice is rejected.
type Options struct {
	ThemeRules       []ThemeRule
	Stopwords        []string
	MinPostCount     int
	TopN             int
	PerThemeExamples int
	BodyPrefix       int // characters of body used for phrase extraction
	KeepPunctuation  bool
	Estimator        Estimator
}

// Analyzer runs phrase, theme and sentiment analysis over post batches.
// All of its fields are read-only after New, so one Analyzer can serve
// concurrent requests.
type Analyzer struct {
	normalizer       *Normalizer
	rules            []ThemeRule
	stopwords        map[string]struct{}
	estimator        Estimator
	minPostCount     int
	topN             int
	perThemeExamples int
	bodyPrefix       int
}

// New validates opts and builds an Analyzer
func New(opts Options) (*Analyzer, error) {
	if opts.MinPostCount < 0 {
		return nil, &ConfigurationError{Field: "min_post_count", Reason: "must not be negative"}
	}
	if opts.TopN < 0 {
		return nil, &ConfigurationError{Field: "top_n", Reason: "must not be negative"}
	}
	if opts.PerThemeExamples < 0 {
		return nil, &ConfigurationError{Field: "per_theme_examples", Reason: "must not be negative"}
	}
	if opts.BodyPrefix < 0 {
		return nil, &ConfigurationError{Field: "body_prefix", Reason: "must not be negative"}
	}

	rules := opts.ThemeRules
	if rules == nil {
		rules = DefaultThemeRules()
	}
	if err := validateThemeRules(rules); err != nil {
		return nil, err
	}

	stopwords := opts.Stopwords
	if stopwords == nil {
		stopwords = defaultStopwords
	}

	a := &Analyzer{
		normalizer:       NewNormalizer(opts.KeepPunctuation),
		rules:            append([]ThemeRule(nil), rules...),
		stopwords:        newStopwordSet(stopwords),
		estimator:        opts.Estimator,
		minPostCount:     withDefault(opts.MinPostCount, DefaultMinPostCount),
		topN:             withDefault(opts.TopN, DefaultTopN),
		perThemeExamples: withDefault(opts.PerThemeExamples, DefaultPerThemeExamples),
		bodyPrefix:       withDefault(opts.BodyPrefix, DefaultBodyPrefix),
	}
	if a.estimator == nil {
		a.estimator = NewLexiconEstimator()
	}
	return a, nil
}

func withDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Normalizer exposes the analyzer's text normalizer
func (a *Analyzer) Normalizer() *Normalizer {
	return a.normalizer
}

// ThemeLabels returns the configured theme labels in table order
func (a *Analyzer) ThemeLabels() []string {
	labels := make([]string, len(a.rules))
	for i, r := range a.rules {
		labels[i] = r.Label
	}
	return labels
}

// analysedPost carries everything derived from one valid post
type analysedPost struct {
	post       models.Post
	text       string
	phrases    map[string]struct{}
	engagement float64
	polarity   float64
}

// PostResult is the outcome of preparing a single post: either an analysed
// post or the reason it was excluded.
type PostResult struct {
	Post models.Post
	Err  error

	analysed *analysedPost
}

// OK reports whether the post took part in analysis
func (r PostResult) OK() bool {
	return r.Err == nil
}

func (a *Analyzer) preparePost(post models.Post) PostResult {
	res := PostResult{Post: post}
	if err := post.Validate(); err != nil {
		res.Err = err
		return res
	}

	trendText := a.normalizer.Normalize(post.Title + " " + truncateRunes(post.Body, a.bodyPrefix))
	fullText := a.normalizer.Normalize(post.Title + " " + post.Body)

	res.analysed = &analysedPost{
		post:       post,
		text:       fullText,
		phrases:    ExtractPhrases(strings.Fields(trendText), a.stopwords),
		engagement: PostEngagement(post),
		polarity:   clamp(a.estimator.Polarity(fullText), -1, 1),
	}
	return res
}

// Prepare analyses every post independently and returns one result per post
func (a *Analyzer) Prepare(posts []models.Post) []PostResult {
	results := make([]PostResult, len(posts))
	for i, p := range posts {
		results[i] = a.preparePost(p)
	}
	return results
}

// ForumResult is the mergeable analysis state of one forum's batch
type ForumResult struct {
	Forum   string
	Posts   int // posts that took part in analysis
	Skipped int
	Notes   []string // why posts were skipped
	Stats   *models.ForumStats
	Err     error // fetch failure; the forum contributes nothing when set

	phrases   phraseTable
	themes    map[string]*themeTally
	sentiment sentimentTally
}

func newForumResult(forum string) *ForumResult {
	return &ForumResult{
		Forum:   forum,
		phrases: make(phraseTable),
		themes:  make(map[string]*themeTally),
	}
}

// AnalyzePosts runs the whole pipeline over one forum's batch
func (a *Analyzer) AnalyzePosts(forum string, posts []models.Post) *ForumResult {
	result := newForumResult(forum)

	for _, pr := range a.Prepare(posts) {
		if !pr.OK() {
			result.Skipped++
			result.Notes = append(result.Notes, pr.Err.Error())
			logrus.WithField("forum", forum).Debugf("Skipping post: %v", pr.Err)
			continue
		}
		ap := pr.analysed
		result.Posts++
		result.phrases.add(ap.phrases, ap.post)
		result.sentiment.add(ap.polarity)

		for _, rule := range a.rules {
			if !rule.Matcher.Match(ap.text) {
				continue
			}
			tally, ok := result.themes[rule.Label]
			if !ok {
				tally = newThemeTally()
				result.themes[rule.Label] = tally
			}
			tally.add(ap)
		}
	}

	for _, tally := range result.themes {
		tally.trim(a.perThemeExamples)
	}

	return result
}

// TrendingTopics ranks the phrases of a batch. A minPostCount of zero uses
// the configured threshold.
func (a *Analyzer) TrendingTopics(posts []models.Post, minPostCount int) []models.PhraseRecord {
	if minPostCount <= 0 {
		minPostCount = a.minPostCount
	}
	return a.AnalyzePosts("", posts).phrases.rank(minPostCount, a.topN)
}

// Themes classifies a batch into theme buckets keyed by label. Themes with
// no matching post are absent.
func (a *Analyzer) Themes(posts []models.Post) map[string]models.ThemeBucket {
	result := a.AnalyzePosts("", posts)
	buckets := make(map[string]models.ThemeBucket, len(result.themes))
	for label, tally := range result.themes {
		buckets[label] = tally.bucket(label, result.Posts)
	}
	return buckets
}

// Sentiment summarizes post polarity over a batch
func (a *Analyzer) Sentiment(posts []models.Post) models.SentimentSummary {
	return a.AnalyzePosts("", posts).sentiment.summary()
}

var errNoPosts = errors.New("no posts returned")

// Report merges forum results into a single report. Forum order does not
// affect the outcome.
func (a *Analyzer) Report(results []*ForumResult) *models.AnalysisReport {
	ordered := make([]*ForumResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Forum < ordered[j].Forum
	})

	report := &models.AnalysisReport{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Forums:      make([]string, 0, len(ordered)),
		PostCounts:  make(map[string]int),
		Stats:       make(map[string]models.ForumStats),
		Errors:      make([]string, 0),
	}

	phrases := make(phraseTable)
	themes := make(map[string]*themeTally)
	var sentiment sentimentTally

	for _, r := range ordered {
		report.Forums = append(report.Forums, r.Forum)
		if r.Stats != nil {
			report.Stats[r.Forum] = *r.Stats
		}
		if r.Err != nil {
			report.Errors = append(report.Errors, models.SourceError{Forum: r.Forum, Message: sourceErrorMessage(r.Err)}.String())
			continue
		}

		report.PostCounts[r.Forum] = r.Posts
		report.TotalPosts += r.Posts
		report.Skipped += r.Skipped
		phrases.merge(r.phrases)
		sentiment.merge(r.sentiment)
		for label, tally := range r.themes {
			merged, ok := themes[label]
			if !ok {
				merged = newThemeTally()
				themes[label] = merged
			}
			merged.merge(tally)
		}
	}

	report.TrendingTopics = phrases.rank(a.minPostCount, a.topN)
	report.Sentiment = sentiment.summary()
	report.Themes = make([]models.ThemeBucket, 0, len(themes))
	for label, tally := range themes {
		tally.trim(a.perThemeExamples)
		report.Themes = append(report.Themes, tally.bucket(label, report.TotalPosts))
	}
	sortBuckets(report.Themes)

	return report
}

func sourceErrorMessage(err error) string {
	var fetchErr *sources.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Err != nil {
		return fetchErr.Err.Error()
	}
	return err.Error()
}
