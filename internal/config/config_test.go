package config

import (
	"testing"
	"time"

	"github.com/forumlens/audience-insights/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUDIENCES", "golang, rust ,,stackoverflow:go")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"golang", "rust", "stackoverflow:go"}, cfg.Audiences)
	assert.Equal(t, "daily", cfg.AnalysisSchedule)
	assert.Equal(t, 100, cfg.PostLimit)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.False(t, cfg.NotificationsEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ANALYSIS_SCHEDULE", "off")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("TOP_N", "7")
	t.Setenv("KEEP_PUNCTUATION", "true")
	t.Setenv("TEAMS_WEBHOOK_URL", "https://example.invalid/hook")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 7, cfg.TopN)
	assert.True(t, cfg.KeepPunctuation)
	assert.True(t, cfg.NotificationsEnabled())
}

func validConfig() *Config {
	return &Config{
		Audiences:        []string{"golang"},
		AnalysisSchedule: "weekly",
		PostLimit:        50,
		MinPostCount:     2,
		TopN:             20,
		PerThemeExamples: 5,
		StorageBackend:   "none",
	}
}

func TestConfig_validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad schedule", func(c *Config) { c.AnalysisSchedule = "hourly" }, "ANALYSIS_SCHEDULE"},
		{"missing audiences", func(c *Config) { c.Audiences = nil }, "AUDIENCES"},
		{"schedule off without audiences", func(c *Config) { c.AnalysisSchedule = "off"; c.Audiences = nil }, ""},
		{"zero post limit", func(c *Config) { c.PostLimit = 0 }, "POST_LIMIT"},
		{"zero top n", func(c *Config) { c.TopN = 0 }, "TOP_N"},
		{"azure without account", func(c *Config) { c.StorageBackend = "azure" }, "AZURE_STORAGE_ACCOUNT"},
		{"sqlite without path", func(c *Config) { c.StorageBackend = "sqlite" }, "SQLITE_PATH"},
		{"unknown backend", func(c *Config) { c.StorageBackend = "s3" }, "STORAGE_BACKEND"},
		{"email without smtp", func(c *Config) { c.NotificationEmail = "team@example.com" }, "SMTP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseThemeRules(t *testing.T) {
	data := []byte(`
themes:
  - label: Tooling
    keywords: [gopls, "go vet", delve]
  - label: Performance
    pattern: '\b(?:slow|latency|allocat)'
`)

	rules, err := ParseThemeRules(data)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "Tooling", rules[0].Label)
	assert.True(t, rules[0].Matcher.Match("gopls keeps crashing"))
	assert.True(t, rules[1].Matcher.Match("reducing allocations in hot paths"))
	assert.False(t, rules[1].Matcher.Match("fast builds"))
}

func TestParseThemeRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"both pattern and keywords", "themes:\n  - label: X\n    pattern: a\n    keywords: [b]\n"},
		{"neither", "themes:\n  - label: X\n"},
		{"bad regex", "themes:\n  - label: X\n    pattern: '(open'\n"},
		{"bad yaml", "themes: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseThemeRules([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadThemeRules_EmptyPath(t *testing.T) {
	rules, err := LoadThemeRules("")
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestConfig_AnalyzerOptions(t *testing.T) {
	cfg := validConfig()
	cfg.ExtraStopwords = []string{"golang"}
	cfg.TopN = 5

	opts, err := cfg.AnalyzerOptions()
	require.NoError(t, err)
	assert.Nil(t, opts.ThemeRules)
	assert.Equal(t, 5, opts.TopN)
	assert.Contains(t, opts.Stopwords, "golang")
	assert.Contains(t, opts.Stopwords, "the")

	_, err = analysis.New(opts)
	assert.NoError(t, err)
}
