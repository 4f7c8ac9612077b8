package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/forumlens/audience-insights/internal/models"
)

// Matcher decides whether normalized post text belongs to a theme
type Matcher interface {
	Match(text string) bool
}

// ThemeRule binds a theme label to its matcher
type ThemeRule struct {
	Label   string
	Matcher Matcher
}

// KeywordMatcher matches when any keyword starts a word in the text.
// Keywords made only of punctuation (such as "?") match anywhere.
type KeywordMatcher struct {
	keywords []string
	pattern  *regexp.Regexp
	symbols  []string
}

// NewKeywordMatcher builds a matcher from a keyword list
func NewKeywordMatcher(keywords ...string) (*KeywordMatcher, error) {
	m := &KeywordMatcher{}
	var quoted []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		m.keywords = append(m.keywords, kw)
		if isSymbolic(kw) {
			m.symbols = append(m.symbols, kw)
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(kw))
	}
	if len(m.keywords) == 0 {
		return nil, fmt.Errorf("keyword matcher needs at least one keyword")
	}
	if len(quoted) > 0 {
		// \b only knows ASCII word characters
		m.pattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(quoted, "|") + `)`)
	}
	return m, nil
}

func (m *KeywordMatcher) Match(text string) bool {
	for _, sym := range m.symbols {
		if strings.Contains(text, sym) {
			return true
		}
	}
	return m.pattern != nil && m.pattern.MatchString(text)
}

// Keywords returns the normalized keyword list
func (m *KeywordMatcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

func isSymbolic(kw string) bool {
	for _, r := range kw {
		if r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127 {
			return false
		}
	}
	return true
}

// RegexMatcher matches text against a case-insensitive regular expression
type RegexMatcher struct {
	pattern *regexp.Regexp
}

// NewRegexMatcher compiles expr into a matcher
func NewRegexMatcher(expr string) (*RegexMatcher, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty theme pattern")
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid theme pattern %q: %w", expr, err)
	}
	return &RegexMatcher{pattern: re}, nil
}

func (m *RegexMatcher) Match(text string) bool {
	return m.pattern.MatchString(text)
}

func (m *RegexMatcher) String() string {
	return m.pattern.String()
}

// defaultThemePatterns is the canonical category table
var defaultThemePatterns = []struct {
	label   string
	pattern string
}{
	{"News", `\b(?:news|update|announced|release)`},
	{"Solution Requests", `\b(?:looking for|need|anyone know|recommend|suggestion)`},
	{"Pain Points", `\b(?:problem|issue|bug|frustrated|annoying|hate)`},
	{"Advice Requests", `\b(?:how to|help|advice|guide|tips)`},
	{"Ideas", `\b(?:idea|thought|concept|suggestion)`},
	{"Money Talk", `\b(?:price|cost|worth|expensive|cheap|money|paid)`},
	{"Opportunities", `\b(?:hiring|job|opportunity|looking to hire)`},
	{"Self Promotion", `\b(?:i made|check out|launching|my project|i created)`},
}

// DefaultThemeRules returns a fresh copy of the canonical theme table
func DefaultThemeRules() []ThemeRule {
	rules := make([]ThemeRule, 0, len(defaultThemePatterns))
	for _, p := range defaultThemePatterns {
		m, err := NewRegexMatcher(p.pattern)
		if err != nil {
			panic(err)
		}
		rules = append(rules, ThemeRule{Label: p.label, Matcher: m})
	}
	return rules
}

func validateThemeRules(rules []ThemeRule) error {
	if len(rules) == 0 {
		return &ConfigurationError{Field: "theme_rules", Reason: "rule table is empty"}
	}
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		label := strings.TrimSpace(rule.Label)
		if label == "" {
			return &ConfigurationError{Field: "theme_rules", Reason: fmt.Sprintf("rule %d has no label", i)}
		}
		if rule.Matcher == nil {
			return &ConfigurationError{Field: "theme_rules", Reason: fmt.Sprintf("rule %q has no matcher", label)}
		}
		if seen[label] {
			return &ConfigurationError{Field: "theme_rules", Reason: fmt.Sprintf("duplicate rule %q", label)}
		}
		seen[label] = true
	}
	return nil
}

// themeTally accumulates one theme over a batch. Only the best examples are
// kept; count and totals cover every match.
type themeTally struct {
	count        int
	score        int
	comments     int
	sentimentSum float64
	examples     []models.ThemeExample
	forums       map[string]struct{}
}

func newThemeTally() *themeTally {
	return &themeTally{forums: make(map[string]struct{})}
}

func (t *themeTally) add(p *analysedPost) {
	t.count++
	t.score += p.post.Score
	t.comments += p.post.CommentCount
	t.sentimentSum += p.polarity
	if p.post.Forum != "" {
		t.forums[p.post.Forum] = struct{}{}
	}
	t.examples = append(t.examples, models.ThemeExample{
		Title:      p.post.Title,
		URL:        p.post.URL,
		Forum:      p.post.Forum,
		Score:      p.post.Score,
		Comments:   p.post.CommentCount,
		Engagement: p.engagement,
		Sentiment:  p.polarity,
	})
}

func (t *themeTally) merge(other *themeTally) {
	t.count += other.count
	t.score += other.score
	t.comments += other.comments
	t.sentimentSum += other.sentimentSum
	t.examples = append(t.examples, other.examples...)
	for f := range other.forums {
		t.forums[f] = struct{}{}
	}
}

// trim sorts examples and keeps the best k
func (t *themeTally) trim(k int) {
	sortExamples(t.examples)
	if k >= 0 && len(t.examples) > k {
		t.examples = t.examples[:k]
	}
}

func (t *themeTally) bucket(label string, totalPosts int) models.ThemeBucket {
	b := models.ThemeBucket{
		Theme:           label,
		Count:           t.count,
		TotalEngagement: Engagement(t.score, t.comments),
		Examples:        append([]models.ThemeExample(nil), t.examples...),
		Forums:          sortedKeys(t.forums),
	}
	if t.count > 0 {
		b.AvgSentiment = roundTo(t.sentimentSum/float64(t.count), averagePlaces)
	}
	if totalPosts > 0 {
		b.Percentage = roundTo(float64(t.count)/float64(totalPosts)*100, 1)
	}
	return b
}

func sortExamples(examples []models.ThemeExample) {
	sort.Slice(examples, func(i, j int) bool {
		a, b := examples[i], examples[j]
		if a.Engagement != b.Engagement {
			return a.Engagement > b.Engagement
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Forum < b.Forum
	})
}

// sortBuckets orders themes by count, then label
func sortBuckets(buckets []models.ThemeBucket) {
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Theme < buckets[j].Theme
	})
}
