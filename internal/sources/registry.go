package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/forumlens/audience-insights/internal/models"
)

// DefaultPlatform is used for forum identifiers without a "platform:" prefix
const DefaultPlatform = "reddit"

// Registry routes forum identifiers of the form "platform:name" to the
// source registered for that platform. A bare name targets reddit.
type Registry struct {
	sources map[string]PostSource
}

// NewRegistry creates a registry over the given sources
func NewRegistry(srcs ...PostSource) *Registry {
	r := &Registry{sources: make(map[string]PostSource)}
	for _, s := range srcs {
		r.sources[s.GetName()] = s
	}
	return r
}

// ParseForum splits a forum identifier into platform and forum name
func ParseForum(id string) (platform, name string) {
	id = strings.TrimSpace(id)
	if i := strings.Index(id, ":"); i > 0 {
		return strings.ToLower(id[:i]), strings.TrimSpace(id[i+1:])
	}
	if strings.EqualFold(id, "hackernews") {
		return "hackernews", "hackernews"
	}
	return DefaultPlatform, strings.TrimPrefix(id, "r/")
}

func (r *Registry) resolve(forum string) (PostSource, string, error) {
	platform, name := ParseForum(forum)
	if name == "" {
		return nil, "", &FetchError{Source: platform, Forum: forum, Err: fmt.Errorf("empty forum name")}
	}
	src, ok := r.sources[platform]
	if !ok {
		return nil, "", &FetchError{Source: platform, Forum: forum, Err: fmt.Errorf("unknown platform %q", platform)}
	}
	if !src.IsEnabled() {
		return nil, "", &FetchError{Source: platform, Forum: forum, Err: fmt.Errorf("source disabled")}
	}
	return src, name, nil
}

// FetchPosts fetches posts for a forum identifier and tags them with it
func (r *Registry) FetchPosts(ctx context.Context, forum string, sort SortMode, limit int) ([]models.Post, error) {
	src, name, err := r.resolve(forum)
	if err != nil {
		return nil, err
	}
	posts, err := src.FetchPosts(ctx, name, sort, limit)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Forum = forum
	}
	return posts, nil
}

// FetchStats returns community metadata for a forum identifier
func (r *Registry) FetchStats(ctx context.Context, forum string) (*models.ForumStats, error) {
	src, name, err := r.resolve(forum)
	if err != nil {
		return nil, err
	}
	stats, err := src.FetchStats(ctx, name)
	if err != nil || stats == nil {
		return stats, err
	}
	stats.Name = forum
	return stats, nil
}
