package analysis

import (
	"strings"

	"github.com/forumlens/audience-insights/internal/models"
)

// Estimator scores the polarity of normalized text in [-1, 1]
type Estimator interface {
	Polarity(text string) float64
}

var positiveLexicon = map[string]float64{
	"amazing": 0.8, "awesome": 0.8, "beautiful": 0.7, "best": 1.0, "better": 0.5, "brilliant": 0.8,
	"cool": 0.4, "easy": 0.4, "enjoy": 0.5, "excellent": 1.0, "excited": 0.6, "fantastic": 0.8,
	"fast": 0.2, "fixed": 0.3, "fun": 0.5, "glad": 0.5, "good": 0.7, "great": 0.8, "happy": 0.8,
	"helpful": 0.6, "impressive": 0.7, "interesting": 0.5, "love": 0.5, "nice": 0.6, "perfect": 1.0,
	"recommend": 0.4, "solved": 0.4, "success": 0.5, "thanks": 0.2, "useful": 0.5, "win": 0.6,
	"wonderful": 1.0, "works": 0.3,
}

var negativeLexicon = map[string]float64{
	"angry": 0.5, "annoying": 0.6, "awful": 1.0, "bad": 0.7, "broken": 0.4, "bug": 0.3,
	"confusing": 0.4, "crash": 0.5, "disappointed": 0.7, "error": 0.3, "expensive": 0.5, "fail": 0.5,
	"failed": 0.5, "frustrated": 0.7, "frustrating": 0.7, "hate": 0.8, "horrible": 1.0, "issue": 0.2,
	"lost": 0.3, "poor": 0.4, "problem": 0.3, "sad": 0.5, "scam": 0.8, "slow": 0.3, "stuck": 0.4,
	"terrible": 1.0, "ugly": 0.7, "useless": 0.6, "worse": 0.6, "worst": 1.0, "wrong": 0.5,
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {},
}

// Normalization splits contractions: "don't" becomes "don t". A stem only
// negates when the next token is "t", so "won" on its own is left alone.
var contractionStems = map[string]struct{}{
	"ain": {}, "aren": {}, "can": {}, "couldn": {}, "didn": {}, "doesn": {}, "don": {},
	"hasn": {}, "haven": {}, "isn": {}, "shouldn": {}, "wasn": {}, "weren": {}, "won": {},
	"wouldn": {},
}

var intensifiers = map[string]float64{
	"very": 1.3, "really": 1.3, "extremely": 1.5, "super": 1.3, "so": 1.2,
}

const (
	negationFactor = -0.5
	negationWindow = 3

	// averages are rounded so merge order cannot change the last bits
	averagePlaces = 6
)

// LexiconEstimator is a word-list polarity estimator. Negators within a short
// window flip and dampen the next sentiment word; intensifiers scale it.
type LexiconEstimator struct{}

// NewLexiconEstimator creates the default estimator
func NewLexiconEstimator() *LexiconEstimator {
	return &LexiconEstimator{}
}

func (e *LexiconEstimator) Polarity(text string) float64 {
	var (
		total   float64
		matched int
		negate  int // remaining tokens the pending negation applies to
		boost   = 1.0
	)

	tokens := strings.Fields(text)
	for i := range tokens {
		tokens[i] = strings.Trim(tokens[i], "?!.")
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if _, ok := negators[tok]; ok {
			negate = negationWindow
			continue
		}
		if _, ok := contractionStems[tok]; ok && i+1 < len(tokens) && tokens[i+1] == "t" {
			negate = negationWindow
			i++
			continue
		}
		if factor, ok := intensifiers[tok]; ok {
			boost = factor
			continue
		}

		value, ok := positiveLexicon[tok]
		if !ok {
			if neg, found := negativeLexicon[tok]; found {
				value, ok = -neg, true
			}
		}

		if ok {
			value *= boost
			if negate > 0 {
				value *= negationFactor
			}
			total += value
			matched++
			negate = 0
			boost = 1.0
			continue
		}

		if negate > 0 {
			negate--
		}
		boost = 1.0
	}

	if matched == 0 {
		return 0
	}
	return clamp(total/float64(matched), -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type sentimentTally struct {
	sum      float64
	positive int
	negative int
	neutral  int
}

func (t *sentimentTally) add(polarity float64) {
	t.sum += polarity
	switch {
	case polarity > 0:
		t.positive++
	case polarity < 0:
		t.negative++
	default:
		t.neutral++
	}
}

func (t *sentimentTally) merge(other sentimentTally) {
	t.sum += other.sum
	t.positive += other.positive
	t.negative += other.negative
	t.neutral += other.neutral
}

func (t sentimentTally) summary() models.SentimentSummary {
	total := t.positive + t.negative + t.neutral
	s := models.SentimentSummary{
		Positive: t.positive,
		Negative: t.negative,
		Neutral:  t.neutral,
		Total:    total,
	}
	if total > 0 {
		s.Average = roundTo(clamp(t.sum/float64(total), -1, 1), averagePlaces)
	}
	return s
}
