package models

import (
	"fmt"
	"strings"
	"time"
)

// Post represents a single forum post fetched from a content platform
type Post struct {
	ID           string    `json:"id"`
	Forum        string    `json:"forum"`         // "golang", "hackernews", "stackoverflow:go", etc.
	Title        string    `json:"title"`
	Body         string    `json:"body,omitempty"`
	Author       string    `json:"author,omitempty"`
	URL          string    `json:"url"`           // permalink
	CreatedAt    time.Time `json:"created_at"`
	Score        int       `json:"score"`         // upvotes minus downvotes, may be negative
	CommentCount int       `json:"comment_count"`
}

// MalformedPostError is returned when a post cannot take part in analysis
type MalformedPostError struct {
	PostID string
	Reason string
}

func (e *MalformedPostError) Error() string {
	if e.PostID == "" {
		return fmt.Sprintf("malformed post: %s", e.Reason)
	}
	return fmt.Sprintf("malformed post %s: %s", e.PostID, e.Reason)
}

// Validate checks the fields the analysis pipeline relies on
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &MalformedPostError{PostID: p.ID, Reason: "missing title"}
	}
	if p.CommentCount < 0 {
		return &MalformedPostError{PostID: p.ID, Reason: fmt.Sprintf("negative comment count %d", p.CommentCount)}
	}
	return nil
}

// PhraseRecord is a trending unigram or bigram with its aggregated engagement
type PhraseRecord struct {
	Phrase     string   `json:"topic"`
	PostCount  int      `json:"count"`    // distinct posts containing the phrase
	Score      int      `json:"score"`    // cumulative post score
	Comments   int      `json:"comments"` // cumulative comment count
	Engagement float64  `json:"engagement"`
	Forums     []string `json:"forums,omitempty"`
}

// ThemeExample is a representative post kept for a theme
type ThemeExample struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Forum      string  `json:"forum"`
	Score      int     `json:"score"`
	Comments   int     `json:"comments"`
	Engagement float64 `json:"engagement"`
	Sentiment  float64 `json:"sentiment"`
}

// ThemeBucket groups the posts that matched one theme rule
type ThemeBucket struct {
	Theme           string         `json:"theme"`
	Count           int            `json:"count"`
	TotalEngagement float64        `json:"total_engagement"`
	AvgSentiment    float64        `json:"avg_sentiment"`
	Percentage      float64        `json:"percentage"`
	Examples        []ThemeExample `json:"examples"`
	Forums          []string       `json:"forums,omitempty"`
}

// SentimentSummary aggregates post polarity over a batch
type SentimentSummary struct {
	Average  float64 `json:"average"` // in [-1, 1]
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Total    int     `json:"total"`
}

// ForumStats holds community metadata reported by the platform
type ForumStats struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Subscribers int    `json:"subscribers"`
	ActiveUsers int    `json:"active_users"`
}

// ForumSummary describes a community found through search or the popular
// listing. GrowthRate is active users per hundred subscribers.
type ForumSummary struct {
	Name        string  `json:"name"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Subscribers int     `json:"subscribers"`
	ActiveUsers int     `json:"active_users"`
	GrowthRate  float64 `json:"growth_rate"`
	URL         string  `json:"url,omitempty"`
}

// SourceError records why a forum contributed no posts to a report
type SourceError struct {
	Forum   string `json:"forum"`
	Message string `json:"message"`
}

func (e SourceError) String() string {
	return fmt.Sprintf("%s: %s", e.Forum, e.Message)
}

// AnalysisReport is the merged result of analysing an audience
type AnalysisReport struct {
	ID             string                `json:"id"`
	GeneratedAt    time.Time             `json:"generated_at"`
	Forums         []string              `json:"forums"`
	TotalPosts     int                   `json:"total_posts"`
	Skipped        int                   `json:"skipped"`
	TrendingTopics []PhraseRecord        `json:"trending_topics"`
	Themes         []ThemeBucket         `json:"themes"`
	Sentiment      SentimentSummary      `json:"sentiment"`
	PostCounts     map[string]int        `json:"post_counts"`
	Stats          map[string]ForumStats `json:"stats,omitempty"`
	Errors         []string              `json:"errors"`
}
