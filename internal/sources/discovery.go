package sources

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSearchLimit  = 10
	DefaultPopularLimit = 20
)

type redditSubredditListing struct {
	Data struct {
		Children []struct {
			Data redditSubreddit `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditSubreddit struct {
	DisplayName       string `json:"display_name"`
	Title             string `json:"title"`
	PublicDescription string `json:"public_description"`
	Subscribers       int    `json:"subscribers"`
	ActiveUserCount   int    `json:"active_user_count"`
	AccountsActive    int    `json:"accounts_active"`
	URL               string `json:"url"`
}

// SearchForums looks up subreddits matching query, largest first
func (r *RedditSource) SearchForums(ctx context.Context, query string, limit int) ([]models.ForumSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(clampLimit(limit, redditMaxLimit)))
	params.Set("raw_json", "1")

	forums, err := r.listSubreddits(ctx, query, "/subreddits/search", params)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(forums, func(i, j int) bool {
		return forums[i].Subscribers > forums[j].Subscribers
	})

	logrus.Debugf("Found %d subreddits for %q", len(forums), query)
	return forums, nil
}

// PopularForums returns the popular subreddits ordered by growth rate
func (r *RedditSource) PopularForums(ctx context.Context, limit int) ([]models.ForumSummary, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(clampLimit(limit, redditMaxLimit)))
	params.Set("raw_json", "1")

	forums, err := r.listSubreddits(ctx, "popular", "/subreddits/popular", params)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(forums, func(i, j int) bool {
		if forums[i].GrowthRate != forums[j].GrowthRate {
			return forums[i].GrowthRate > forums[j].GrowthRate
		}
		return forums[i].Subscribers > forums[j].Subscribers
	})
	return forums, nil
}

func (r *RedditSource) listSubreddits(ctx context.Context, label, path string, params url.Values) ([]models.ForumSummary, error) {
	var listing redditSubredditListing
	if err := r.get(ctx, label, path, params, &listing); err != nil {
		return nil, err
	}

	forums := make([]models.ForumSummary, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		sr := child.Data
		if sr.DisplayName == "" {
			continue
		}
		active := sr.ActiveUserCount
		if active == 0 {
			active = sr.AccountsActive
		}
		link := sr.URL
		if link == "" {
			link = "/r/" + sr.DisplayName + "/"
		}
		title := sr.Title
		if title == "" {
			title = sr.DisplayName
		}
		forums = append(forums, models.ForumSummary{
			Name:        sr.DisplayName,
			Title:       title,
			Description: sr.PublicDescription,
			Subscribers: sr.Subscribers,
			ActiveUsers: active,
			GrowthRate:  growthRate(active, sr.Subscribers),
			URL:         "https://reddit.com" + link,
		})
	}
	return forums, nil
}

// growthRate is active users per hundred subscribers, one decimal place
func growthRate(active, subscribers int) float64 {
	if subscribers <= 0 {
		return 0
	}
	return math.Round(float64(active)/float64(subscribers)*1000) / 10
}
