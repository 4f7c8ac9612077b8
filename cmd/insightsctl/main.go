// insightsctl runs one-off audience analyses from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forumlens/audience-insights/internal/analysis"
	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/models"
	"github.com/forumlens/audience-insights/internal/notifications"
	"github.com/forumlens/audience-insights/internal/sources"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "insightsctl",
	Short:         "Analyse what forum audiences talk about",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		// one-shot runs never schedule, so AUDIENCES is optional here
		if os.Getenv("ANALYSIS_SCHEDULE") == "" {
			os.Setenv("ANALYSIS_SCHEDULE", "off")
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logrus.SetLevel(logrus.WarnLevel)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose || cfg.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(discoverCmd)
}

func newRegistry() *sources.Registry {
	return sources.NewRegistry(
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent),
		sources.NewHackerNewsSource(),
		sources.NewStackOverflowSource(),
	)
}

func newAnalyzer() (*analysis.Analyzer, error) {
	opts, err := cfg.AnalyzerOptions()
	if err != nil {
		return nil, err
	}
	return analysis.New(opts)
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [forum...]",
	Short: "Fetch and analyse one or more forums",
	Long: `Fetch recent posts from each forum and print trending topics, themes
and sentiment. Forums are "name" (Reddit), "hackernews" or
"stackoverflow:<tag>". Without arguments the configured AUDIENCES are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		forums := args
		if len(forums) == 0 {
			forums = cfg.Audiences
		}
		if len(forums) == 0 {
			return fmt.Errorf("no forums given and AUDIENCES is empty")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		sortFlag, _ := cmd.Flags().GetString("sort")
		format, _ := cmd.Flags().GetString("format")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		analyzer, err := newAnalyzer()
		if err != nil {
			return err
		}
		merger := analysis.NewMerger(analyzer, newRegistry(), analysis.MergerOptions{
			Sort:          sources.ParseSortMode(sortFlag),
			FetchTimeout:  cfg.FetchTimeout,
			MaxConcurrent: cfg.MaxConcurrent,
		})

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		report, err := merger.AnalyzeSources(ctx, forums, limit)
		if err != nil {
			return err
		}
		return printReport(report, format)
	},
}

func init() {
	analyzeCmd.Flags().IntP("limit", "n", 100, "posts to fetch per forum")
	analyzeCmd.Flags().StringP("sort", "s", "hot", "listing order (hot, new, top)")
	analyzeCmd.Flags().StringP("format", "f", "text", "output format (text, json, html)")
	analyzeCmd.Flags().Duration("timeout", 5*time.Minute, "overall run timeout")
}

func printReport(report *models.AnalysisReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "html":
		html, err := notifications.BuildEmailHTML(report)
		if err != nil {
			return err
		}
		fmt.Println(html)
		return nil
	case "text":
		fmt.Println(notifications.BuildEmailText(report))
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// --- Themes Command ---

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List the theme rules in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := config.LoadThemeRules(cfg.ThemeRulesFile)
		if err != nil {
			return err
		}
		if rules == nil {
			rules = analysis.DefaultThemeRules()
		}
		// constructing the analyzer validates the table
		if _, err := newAnalyzer(); err != nil {
			return err
		}

		for _, rule := range rules {
			fmt.Printf("%-20s %s\n", rule.Label, describeMatcher(rule.Matcher))
		}
		return nil
	},
}

func describeMatcher(m analysis.Matcher) string {
	switch v := m.(type) {
	case *analysis.KeywordMatcher:
		return "keywords: " + strings.Join(v.Keywords(), ", ")
	case *analysis.RegexMatcher:
		return "pattern: " + v.String()
	default:
		return fmt.Sprintf("%T", m)
	}
}

// --- Sources Command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources [forum...]",
	Short: "Check that each forum can be fetched",
	RunE: func(cmd *cobra.Command, args []string) error {
		forums := args
		if len(forums) == 0 {
			forums = []string{"golang", "hackernews", "stackoverflow:go"}
		}
		registry := newRegistry()

		failed := 0
		for _, forum := range forums {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
			posts, err := registry.FetchPosts(ctx, forum, sources.SortNew, 3)
			cancel()

			if err != nil {
				failed++
				fmt.Printf("%-25s ERROR %v\n", forum, err)
				continue
			}
			sample := ""
			if len(posts) > 0 {
				sample = posts[0].Title
			}
			fmt.Printf("%-25s OK    %d posts  %q\n", forum, len(posts), sample)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d forums failed", failed, len(forums))
		}
		return nil
	},
}

// --- Discover Command ---

var discoverCmd = &cobra.Command{
	Use:   "discover [query]",
	Short: "Search subreddits, or list popular ones by growth rate",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		reddit := sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent)
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
		defer cancel()

		var (
			forums []models.ForumSummary
			err    error
		)
		if len(args) == 1 {
			forums, err = reddit.SearchForums(ctx, args[0], limit)
		} else {
			forums, err = reddit.PopularForums(ctx, limit)
		}
		if err != nil {
			return err
		}
		return printForums(os.Stdout, forums, format)
	},
}

func init() {
	discoverCmd.Flags().IntP("limit", "n", 0, "maximum forums to list (default 10 for search, 20 for popular)")
	discoverCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}

func printForums(w io.Writer, forums []models.ForumSummary, format string) error {
	switch format {
	case "json":
		if forums == nil {
			forums = []models.ForumSummary{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(forums)
	case "text":
		if len(forums) == 0 {
			fmt.Fprintln(w, "no forums found")
			return nil
		}
		for _, f := range forums {
			fmt.Fprintf(w, "%-25s %10d subscribers %7d active %6.1f%%  %s\n",
				f.Name, f.Subscribers, f.ActiveUsers, f.GrowthRate, f.Title)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
