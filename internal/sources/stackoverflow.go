package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/go-resty/resty/v2"
)

const (
	stackExchangeBaseURL  = "https://api.stackexchange.com/2.3"
	stackOverflowMaxLimit = 100
)

// StackOverflowSource treats a Stack Overflow tag as a forum
type StackOverflowSource struct {
	client  *resty.Client
	baseURL string
}

type stackOverflowResponse struct {
	Items []stackOverflowQuestion `json:"items"`
}

type stackOverflowQuestion struct {
	QuestionID int      `json:"question_id"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       []string `json:"tags"`
	Owner      struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	CreationDate int64  `json:"creation_date"`
	Score        int    `json:"score"`
	AnswerCount  int    `json:"answer_count"`
	Link         string `json:"link"`
}

type stackOverflowTagResponse struct {
	Items []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"items"`
}

// NewStackOverflowSource creates a new Stack Overflow source
func NewStackOverflowSource() *StackOverflowSource {
	return &StackOverflowSource{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", defaultRedditAgent),
		baseURL: stackExchangeBaseURL,
	}
}

// WithBaseURL points the source at an alternative API root
func (s *StackOverflowSource) WithBaseURL(baseURL string) *StackOverflowSource {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

func (s *StackOverflowSource) GetName() string {
	return "stackoverflow"
}

func (s *StackOverflowSource) IsEnabled() bool {
	return true // Stack Overflow API doesn't require authentication for basic listings
}

func questionSort(sort SortMode) string {
	switch sort {
	case SortNew:
		return "creation"
	case SortTop:
		return "votes"
	default:
		return "hot"
	}
}

func (s *StackOverflowSource) FetchPosts(ctx context.Context, forum string, sort SortMode, limit int) ([]models.Post, error) {
	params := url.Values{}
	params.Set("order", "desc")
	params.Set("sort", questionSort(sort))
	params.Set("tagged", forum)
	params.Set("site", "stackoverflow")
	params.Set("pagesize", strconv.Itoa(clampLimit(limit, stackOverflowMaxLimit)))
	params.Set("filter", "withbody")

	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.baseURL + "/questions?" + params.Encode())
	if err != nil {
		return nil, &FetchError{Source: s.GetName(), Forum: forum, Err: err}
	}

	if resp.StatusCode() != 200 {
		return nil, fetchErrorf(s.GetName(), forum, "stack overflow API returned status %d", resp.StatusCode())
	}

	var listing stackOverflowResponse
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fetchErrorf(s.GetName(), forum, "failed to parse Stack Overflow response: %v", err)
	}

	posts := make([]models.Post, 0, len(listing.Items))
	for _, q := range listing.Items {
		posts = append(posts, models.Post{
			ID:           fmt.Sprintf("stackoverflow_%d", q.QuestionID),
			Forum:        forum,
			Title:        html.UnescapeString(q.Title),
			Body:         StripHTMLTags(q.Body),
			Author:       q.Owner.DisplayName,
			URL:          q.Link,
			CreatedAt:    time.Unix(q.CreationDate, 0).UTC(),
			Score:        q.Score,
			CommentCount: q.AnswerCount,
		})
	}

	return posts, nil
}

// FetchStats reports the number of questions carrying the tag as subscribers
func (s *StackOverflowSource) FetchStats(ctx context.Context, forum string) (*models.ForumStats, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/tags/%s/info?site=stackoverflow", s.baseURL, url.PathEscape(forum)))
	if err != nil {
		return nil, &FetchError{Source: s.GetName(), Forum: forum, Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, fetchErrorf(s.GetName(), forum, "stack overflow API returned status %d", resp.StatusCode())
	}

	var tags stackOverflowTagResponse
	if err := json.Unmarshal(resp.Body(), &tags); err != nil {
		return nil, fetchErrorf(s.GetName(), forum, "failed to parse Stack Overflow response: %v", err)
	}

	stats := &models.ForumStats{Name: forum, Title: "Stack Overflow [" + forum + "]"}
	if len(tags.Items) > 0 {
		stats.Subscribers = tags.Items[0].Count
	}
	return stats, nil
}

// StripHTMLTags turns an HTML fragment into plain text
func StripHTMLTags(content string) string {
	content = strings.ReplaceAll(content, "<p>", "\n")
	content = strings.ReplaceAll(content, "</p>", "\n")
	content = strings.ReplaceAll(content, "<br>", "\n")
	content = strings.ReplaceAll(content, "<br/>", "\n")
	content = strings.ReplaceAll(content, "<code>", "`")
	content = strings.ReplaceAll(content, "</code>", "`")

	for strings.Contains(content, "<") && strings.Contains(content, ">") {
		start := strings.Index(content, "<")
		end := strings.Index(content, ">")
		if start < end {
			content = content[:start] + content[end+1:]
		} else {
			break
		}
	}

	return strings.TrimSpace(html.UnescapeString(content))
}
