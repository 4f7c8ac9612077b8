package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *models.AnalysisReport {
	topics := make([]models.PhraseRecord, 0, 12)
	for i := 0; i < 12; i++ {
		topics = append(topics, models.PhraseRecord{Phrase: "topic" + string(rune('a'+i)), PostCount: 12 - i, Engagement: float64(100 - i)})
	}
	return &models.AnalysisReport{
		ID:             "report-1",
		GeneratedAt:    time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Forums:         []string{"golang", "stackoverflow:go"},
		TotalPosts:     42,
		TrendingTopics: topics,
		Themes: []models.ThemeBucket{{
			Theme:      "Pain Points",
			Count:      7,
			Percentage: 16.7,
			Examples: []models.ThemeExample{
				{Title: "Module proxy <timeouts> " + strings.Repeat("x", 200), URL: "https://reddit.com/r/golang/1"},
			},
		}},
		Sentiment: models.SentimentSummary{Average: 0.12, Positive: 20, Negative: 10, Neutral: 12, Total: 42},
		Errors:    []string{"hackernews: hacker news API returned status 500"},
	}
}

func TestBuildTeamsMessage(t *testing.T) {
	msg := BuildTeamsMessage(sampleReport())

	assert.Equal(t, "MessageCard", msg.Type)
	assert.Equal(t, "Audience digest - golang, stackoverflow:go", msg.Title)
	assert.Equal(t, "Analysed 42 posts from 2 forums", msg.Text)
	require.Len(t, msg.Sections, 4)

	topics := msg.Sections[1]
	assert.Equal(t, "Trending topics", topics.ActivityTitle)
	assert.Contains(t, topics.ActivityText, "1. **topica**")
	assert.Contains(t, topics.ActivityText, "10. **topicj**")
	assert.NotContains(t, topics.ActivityText, "topick")

	assert.Equal(t, "Pain Points", msg.Sections[2].Facts[0].Name)
	assert.Equal(t, "7 posts (16.7%)", msg.Sections[2].Facts[0].Value)
	assert.Contains(t, msg.Sections[3].ActivityText, "hackernews")
}

func TestBuildTeamsMessage_EmptyReport(t *testing.T) {
	msg := BuildTeamsMessage(&models.AnalysisReport{})
	require.Len(t, msg.Sections, 1)
	assert.Equal(t, "Sentiment", msg.Sections[0].ActivityTitle)
}

func TestBuildEmailHTML(t *testing.T) {
	html, err := BuildEmailHTML(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, html, "golang, stackoverflow:go")
	assert.Contains(t, html, "<strong>topica</strong>")
	assert.NotContains(t, html, "topick")
	assert.Contains(t, html, "Module proxy &lt;timeouts&gt;")
	assert.Contains(t, html, "...</a>")
	assert.Contains(t, html, "Unavailable forums")
}

func TestBuildEmailText(t *testing.T) {
	text := BuildEmailText(sampleReport())

	assert.Contains(t, text, "Posts analysed: 42")
	assert.Contains(t, text, "Sentiment: 0.12 average (20 positive, 10 negative, 12 neutral)")
	assert.Contains(t, text, " 1. topica (12 posts, engagement 100.0)")
	assert.NotContains(t, text, "topick")
	assert.Contains(t, text, "Pain Points: 7 posts (16.7%)")
	assert.Contains(t, text, "https://reddit.com/r/golang/1")
	assert.Contains(t, text, "UNAVAILABLE FORUMS")
}

func TestService_SendReport_Teams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, service.SendReport(sampleReport()))
	assert.Equal(t, "Audience digest - golang, stackoverflow:go", received.Title)
}

func TestService_SendReport_TeamsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad card"))
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := service.SendReport(sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams webhook returned status 400")
}

func TestService_SendReport_NoChannels(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendReport(sampleReport()))
}
