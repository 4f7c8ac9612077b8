package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/forumlens/audience-insights/internal/models"
)

// SortMode selects which listing of a forum is fetched
type SortMode string

const (
	SortHot SortMode = "hot"
	SortNew SortMode = "new"
	SortTop SortMode = "top"
)

// ParseSortMode maps user input to a SortMode, falling back to hot
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortNew:
		return SortNew
	case SortTop:
		return SortTop
	default:
		return SortHot
	}
}

// PostSource is a content platform that can list posts of a forum
type PostSource interface {
	GetName() string
	IsEnabled() bool
	FetchPosts(ctx context.Context, forum string, sort SortMode, limit int) ([]models.Post, error)
	FetchStats(ctx context.Context, forum string) (*models.ForumStats, error)
}

// FetchError wraps a platform failure for a single forum
type FetchError struct {
	Source string
	Forum  string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s failed: %v", e.Source, e.Forum, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchErrorf(source, forum, format string, args ...interface{}) error {
	return &FetchError{Source: source, Forum: forum, Err: fmt.Errorf(format, args...)}
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
