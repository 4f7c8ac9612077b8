package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const digestTopics = 10

// Service sends audience digests via Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendReport delivers a digest to every configured channel
func (s *Service) SendReport(report *models.AnalysisReport) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Sent audience digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Sent audience digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(report *models.AnalysisReport) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(BuildTeamsMessage(report)).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

// BuildTeamsMessage renders a report as a Teams message card
func BuildTeamsMessage(report *models.AnalysisReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Audience digest - %s", strings.Join(report.Forums, ", ")),
		Text:    fmt.Sprintf("Analysed %d posts from %d forums", report.TotalPosts, len(report.Forums)),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Sentiment",
		Facts: []TeamsFact{
			{Name: "Average", Value: fmt.Sprintf("%.2f", report.Sentiment.Average)},
			{Name: "Positive", Value: fmt.Sprintf("%d", report.Sentiment.Positive)},
			{Name: "Negative", Value: fmt.Sprintf("%d", report.Sentiment.Negative)},
			{Name: "Neutral", Value: fmt.Sprintf("%d", report.Sentiment.Neutral)},
			{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	if len(report.TrendingTopics) > 0 {
		var lines []string
		for i, topic := range report.TrendingTopics {
			if i >= digestTopics {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. **%s** - %d posts, engagement %.1f", i+1, topic.Phrase, topic.PostCount, topic.Engagement))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Trending topics",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.Themes) > 0 {
		var facts []TeamsFact
		for _, theme := range report.Themes {
			facts = append(facts, TeamsFact{
				Name:  theme.Theme,
				Value: fmt.Sprintf("%d posts (%.1f%%)", theme.Count, theme.Percentage),
			})
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Themes",
			Facts:         facts,
		})
	}

	if len(report.Errors) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Unavailable forums",
			ActivityText:  strings.Join(report.Errors, "\n\n"),
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.AnalysisReport) error {
	subject := fmt.Sprintf("Audience digest - %d posts from %d forums", report.TotalPosts, len(report.Forums))

	htmlBody, err := BuildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", BuildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Audience digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #ff4500; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .theme { border-left: 4px solid #ff4500; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .meta { color: #666; font-size: 0.9em; }
        .errors { color: #d13438; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Audience digest</h1>
        <p>{{join .Forums ", "}} - generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Posts analysed:</strong> {{.TotalPosts}}</p>
        <p><strong>Average sentiment:</strong> {{printf "%.2f" .Sentiment.Average}}
           ({{.Sentiment.Positive}} positive, {{.Sentiment.Negative}} negative, {{.Sentiment.Neutral}} neutral)</p>
    </div>

    {{if .TrendingTopics}}
    <h2>Trending topics</h2>
    <ol>
    {{range $i, $t := .TrendingTopics}}{{if lt $i 10}}
        <li><strong>{{$t.Phrase}}</strong> <span class="meta">{{$t.PostCount}} posts, engagement {{printf "%.1f" $t.Engagement}}</span></li>
    {{end}}{{end}}
    </ol>
    {{end}}

    {{if .Themes}}
    <h2>Themes</h2>
    {{range .Themes}}
        <div class="theme">
            <strong>{{.Theme}}</strong> <span class="meta">{{.Count}} posts ({{printf "%.1f" .Percentage}}%)</span>
            <ul>
            {{range .Examples}}<li><a href="{{.URL}}" target="_blank">{{.Title | truncate 120}}</a></li>{{end}}
            </ul>
        </div>
    {{end}}
    {{end}}

    {{if .Errors}}
    <div class="errors">
        <h2>Unavailable forums</h2>
        {{range .Errors}}<p>{{.}}</p>{{end}}
    </div>
    {{end}}
</body>
</html>
`

// BuildEmailHTML renders a report as an HTML email body
func BuildEmailHTML(report *models.AnalysisReport) (string, error) {
	t := template.New("email").Funcs(template.FuncMap{
		"join": strings.Join,
		"truncate": func(length int, s string) string {
			r := []rune(s)
			if len(r) <= length {
				return s
			}
			return string(r[:length]) + "..."
		},
	})

	t, err := t.Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// BuildEmailText renders a report as a plain-text email body
func BuildEmailText(report *models.AnalysisReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Audience digest - %s\n", strings.Join(report.Forums, ", ")))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Posts analysed: %d\n", report.TotalPosts))
	text.WriteString(fmt.Sprintf("Sentiment: %.2f average (%d positive, %d negative, %d neutral)\n",
		report.Sentiment.Average, report.Sentiment.Positive, report.Sentiment.Negative, report.Sentiment.Neutral))

	if len(report.TrendingTopics) > 0 {
		text.WriteString("\nTRENDING TOPICS\n")
		text.WriteString("===============\n")
		for i, topic := range report.TrendingTopics {
			if i >= digestTopics {
				break
			}
			text.WriteString(fmt.Sprintf("%2d. %s (%d posts, engagement %.1f)\n", i+1, topic.Phrase, topic.PostCount, topic.Engagement))
		}
	}

	if len(report.Themes) > 0 {
		text.WriteString("\nTHEMES\n")
		text.WriteString("======\n")
		for _, theme := range report.Themes {
			text.WriteString(fmt.Sprintf("%s: %d posts (%.1f%%), avg sentiment %.2f\n",
				theme.Theme, theme.Count, theme.Percentage, theme.AvgSentiment))
			for _, ex := range theme.Examples {
				text.WriteString(fmt.Sprintf("   - %s\n     %s\n", ex.Title, ex.URL))
			}
		}
	}

	if len(report.Errors) > 0 {
		text.WriteString("\nUNAVAILABLE FORUMS\n")
		text.WriteString("==================\n")
		for _, e := range report.Errors {
			text.WriteString(e + "\n")
		}
	}

	return text.String()
}
