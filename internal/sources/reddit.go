package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditAuthURL   = "https://www.reddit.com/api/v1/access_token"

	redditMaxLimit     = 100
	defaultRedditAgent = "audience-insights/1.0"
)

// RedditSource lists subreddit posts. With client credentials it uses the
// OAuth API, otherwise the public JSON listings.
type RedditSource struct {
	clientID     string
	clientSecret string
	userAgent    string
	client       *resty.Client

	publicURL string
	oauthURL  string
	authURL   string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListingResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
}

type redditAboutResponse struct {
	Data struct {
		DisplayName     string `json:"display_name"`
		Title           string `json:"title"`
		Subscribers     int    `json:"subscribers"`
		ActiveUserCount int    `json:"active_user_count"`
		AccountsActive  int    `json:"accounts_active"`
	} `json:"data"`
}

// NewRedditSource creates a new Reddit source. Empty credentials select the
// public listing endpoints.
func NewRedditSource(clientID, clientSecret, userAgent string) *RedditSource {
	if userAgent == "" {
		userAgent = defaultRedditAgent
	}
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		client:       resty.New().SetTimeout(30 * time.Second),
		publicURL:    redditPublicURL,
		oauthURL:     redditOAuthURL,
		authURL:      redditAuthURL,
	}
}

// WithBaseURLs points the source at alternative endpoints
func (r *RedditSource) WithBaseURLs(publicURL, oauthURL, authURL string) *RedditSource {
	r.publicURL = strings.TrimRight(publicURL, "/")
	r.oauthURL = strings.TrimRight(oauthURL, "/")
	r.authURL = authURL
	return r
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

// IsEnabled is always true: without credentials the public API is used
func (r *RedditSource) IsEnabled() bool {
	return true
}

func (r *RedditSource) hasCredentials() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) FetchPosts(ctx context.Context, forum string, sort SortMode, limit int) ([]models.Post, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(clampLimit(limit, redditMaxLimit)))
	params.Set("raw_json", "1")
	if sort == SortTop {
		params.Set("t", "week")
	}

	var listing redditListingResponse
	if err := r.get(ctx, forum, fmt.Sprintf("/r/%s/%s", url.PathEscape(forum), ParseSortMode(string(sort))), params, &listing); err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.Stickied {
			continue
		}
		posts = append(posts, models.Post{
			ID:           fmt.Sprintf("reddit_%s", p.ID),
			Forum:        forum,
			Title:        p.Title,
			Body:         p.Selftext,
			Author:       p.Author,
			URL:          fmt.Sprintf("https://reddit.com%s", p.Permalink),
			CreatedAt:    time.Unix(int64(p.Created), 0).UTC(),
			Score:        p.Score,
			CommentCount: p.NumComments,
		})
	}

	logrus.Debugf("Fetched %d posts from r/%s (%s)", len(posts), forum, sort)
	return posts, nil
}

func (r *RedditSource) FetchStats(ctx context.Context, forum string) (*models.ForumStats, error) {
	var about redditAboutResponse
	if err := r.get(ctx, forum, fmt.Sprintf("/r/%s/about", url.PathEscape(forum)), nil, &about); err != nil {
		return nil, err
	}

	active := about.Data.ActiveUserCount
	if active == 0 {
		active = about.Data.AccountsActive
	}
	return &models.ForumStats{
		Name:        forum,
		Title:       about.Data.Title,
		Subscribers: about.Data.Subscribers,
		ActiveUsers: active,
	}, nil
}

func (r *RedditSource) get(ctx context.Context, forum, path string, params url.Values, out interface{}) error {
	req := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent)

	endpoint := r.publicURL + path + ".json"
	if r.hasCredentials() {
		token, err := r.token(ctx)
		if err != nil {
			return &FetchError{Source: r.GetName(), Forum: forum, Err: fmt.Errorf("reddit authentication failed: %w", err)}
		}
		req.SetHeader("Authorization", "Bearer "+token)
		endpoint = r.oauthURL + path
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return &FetchError{Source: r.GetName(), Forum: forum, Err: err}
	}
	if resp.StatusCode() != 200 {
		return fetchErrorf(r.GetName(), forum, "reddit API returned status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fetchErrorf(r.GetName(), forum, "malformed reddit response: %v", err)
	}
	return nil
}

// token returns a cached app-only token, refreshing it shortly before expiry
func (r *RedditSource) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.authURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}
