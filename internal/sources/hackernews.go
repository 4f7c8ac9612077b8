package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	hackerNewsBaseURL  = "https://hacker-news.firebaseio.com/v0"
	hackerNewsMaxLimit = 200
)

// HackerNewsSource treats the Hacker News front page as a single forum
type HackerNewsSource struct {
	client  *resty.Client
	baseURL string
}

type hackerNewsItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource() *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", defaultRedditAgent),
		baseURL: hackerNewsBaseURL,
	}
}

// WithBaseURL points the source at an alternative API root
func (h *HackerNewsSource) WithBaseURL(baseURL string) *HackerNewsSource {
	h.baseURL = strings.TrimRight(baseURL, "/")
	return h
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // Hacker News API doesn't require authentication
}

func storyList(sort SortMode) string {
	switch sort {
	case SortNew:
		return "newstories"
	case SortTop:
		return "beststories"
	default:
		return "topstories"
	}
}

func (h *HackerNewsSource) FetchPosts(ctx context.Context, forum string, sort SortMode, limit int) ([]models.Post, error) {
	itemIDs, err := h.getStoryIDs(ctx, storyList(sort))
	if err != nil {
		return nil, &FetchError{Source: h.GetName(), Forum: forum, Err: err}
	}

	limit = clampLimit(limit, hackerNewsMaxLimit)
	if len(itemIDs) > limit {
		itemIDs = itemIDs[:limit]
	}

	posts := make([]models.Post, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		select {
		case <-ctx.Done():
			if len(posts) > 0 {
				logrus.Warnf("Hacker News fetch interrupted after %d items: %v", len(posts), ctx.Err())
				return posts, nil
			}
			return nil, &FetchError{Source: h.GetName(), Forum: forum, Err: ctx.Err()}
		default:
		}

		item, err := h.getItem(ctx, itemID)
		if err != nil {
			logrus.Debugf("Failed to get HN item %d: %v", itemID, err)
			continue
		}
		if item == nil || item.Deleted || item.Dead || item.Type != "story" {
			continue
		}

		posts = append(posts, models.Post{
			ID:           fmt.Sprintf("hackernews_%d", item.ID),
			Forum:        forum,
			Title:        item.Title,
			Body:         StripHTMLTags(item.Text),
			Author:       item.By,
			URL:          fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID),
			CreatedAt:    time.Unix(item.Time, 0).UTC(),
			Score:        item.Score,
			CommentCount: item.Descendants,
		})
	}

	return posts, nil
}

// FetchStats has nothing to report: Hacker News exposes no community counters
func (h *HackerNewsSource) FetchStats(ctx context.Context, forum string) (*models.ForumStats, error) {
	return &models.ForumStats{Name: forum, Title: "Hacker News"}, nil
}

func (h *HackerNewsSource) getStoryIDs(ctx context.Context, list string) ([]int, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/%s.json", h.baseURL, list))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var itemIDs []int
	if err := json.Unmarshal(resp.Body(), &itemIDs); err != nil {
		return nil, err
	}

	return itemIDs, nil
}

func (h *HackerNewsSource) getItem(ctx context.Context, itemID int) (*hackerNewsItem, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/item/%d.json", h.baseURL, itemID))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d for item %d", resp.StatusCode(), itemID)
	}

	var item hackerNewsItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, err
	}

	return &item, nil
}
