package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forumlens/audience-insights/internal/analysis"
)

// ThemeRuleFile is the YAML layout of a custom theme table
type ThemeRuleFile struct {
	Themes []ThemeRuleSpec `yaml:"themes"`
}

// ThemeRuleSpec describes one theme by regex or keyword list
type ThemeRuleSpec struct {
	Label    string   `yaml:"label"`
	Pattern  string   `yaml:"pattern,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
}

// LoadThemeRules reads a theme table from a YAML file. An empty path returns
// nil, which selects the built-in table.
func LoadThemeRules(path string) ([]analysis.ThemeRule, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme rules file %s: %w", path, err)
	}

	return ParseThemeRules(data)
}

// ParseThemeRules builds theme rules from YAML
func ParseThemeRules(data []byte) ([]analysis.ThemeRule, error) {
	var file ThemeRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse theme rules: %w", err)
	}

	rules := make([]analysis.ThemeRule, 0, len(file.Themes))
	for i, spec := range file.Themes {
		var (
			matcher analysis.Matcher
			err     error
		)
		switch {
		case spec.Pattern != "" && len(spec.Keywords) > 0:
			return nil, fmt.Errorf("theme %d (%s): set either pattern or keywords, not both", i, spec.Label)
		case spec.Pattern != "":
			matcher, err = analysis.NewRegexMatcher(spec.Pattern)
		case len(spec.Keywords) > 0:
			matcher, err = analysis.NewKeywordMatcher(spec.Keywords...)
		default:
			return nil, fmt.Errorf("theme %d (%s): pattern or keywords required", i, spec.Label)
		}
		if err != nil {
			return nil, fmt.Errorf("theme %d (%s): %w", i, spec.Label, err)
		}
		rules = append(rules, analysis.ThemeRule{Label: spec.Label, Matcher: matcher})
	}

	return rules, nil
}

// AnalyzerOptions maps the configuration onto analyzer options
func (c *Config) AnalyzerOptions() (analysis.Options, error) {
	rules, err := LoadThemeRules(c.ThemeRulesFile)
	if err != nil {
		return analysis.Options{}, err
	}

	var stopwords []string
	if len(c.ExtraStopwords) > 0 {
		stopwords = append(analysis.DefaultStopwords(), c.ExtraStopwords...)
	}

	return analysis.Options{
		ThemeRules:       rules,
		Stopwords:        stopwords,
		MinPostCount:     c.MinPostCount,
		TopN:             c.TopN,
		PerThemeExamples: c.PerThemeExamples,
		BodyPrefix:       c.BodyPrefix,
		KeepPunctuation:  c.KeepPunctuation,
	}, nil
}
