package analysis

import (
	"math"
	"sort"

	"github.com/forumlens/audience-insights/internal/models"
)

type phraseTally struct {
	posts    int
	score    int
	comments int
	forums   map[string]struct{}
}

// phraseTable is the unfiltered phrase accumulator of a batch. It is kept
// whole until ranking so that batches can be summed before the minimum
// post count is applied.
type phraseTable map[string]*phraseTally

func (t phraseTable) add(phrases map[string]struct{}, post models.Post) {
	for phrase := range phrases {
		tally, ok := t[phrase]
		if !ok {
			tally = &phraseTally{forums: make(map[string]struct{})}
			t[phrase] = tally
		}
		tally.posts++
		tally.score += post.Score
		tally.comments += post.CommentCount
		if post.Forum != "" {
			tally.forums[post.Forum] = struct{}{}
		}
	}
}

func (t phraseTable) merge(other phraseTable) {
	for phrase, o := range other {
		tally, ok := t[phrase]
		if !ok {
			tally = &phraseTally{forums: make(map[string]struct{})}
			t[phrase] = tally
		}
		tally.posts += o.posts
		tally.score += o.score
		tally.comments += o.comments
		for f := range o.forums {
			tally.forums[f] = struct{}{}
		}
	}
}

// rank filters phrases seen in fewer than minPostCount posts, sorts the rest
// by engagement and keeps the first topN.
func (t phraseTable) rank(minPostCount, topN int) []models.PhraseRecord {
	records := make([]models.PhraseRecord, 0)
	for phrase, tally := range t {
		if tally.posts < minPostCount {
			continue
		}
		records = append(records, models.PhraseRecord{
			Phrase:     phrase,
			PostCount:  tally.posts,
			Score:      tally.score,
			Comments:   tally.comments,
			Engagement: Engagement(tally.score, tally.comments),
			Forums:     sortedKeys(tally.forums),
		})
	}

	sortPhrases(records)

	if topN > 0 && len(records) > topN {
		records = records[:topN]
	}
	return records
}

// sortPhrases orders by engagement, then post count, then phrase text
func sortPhrases(records []models.PhraseRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Engagement != b.Engagement {
			return a.Engagement > b.Engagement
		}
		if a.PostCount != b.PostCount {
			return a.PostCount > b.PostCount
		}
		return a.Phrase < b.Phrase
	})
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
