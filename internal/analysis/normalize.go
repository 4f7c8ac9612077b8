package analysis

import (
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)

	// Everything that is not a letter, digit, whitespace or question mark
	strictCharPattern = regexp.MustCompile(`[^\p{L}\p{N}\s?]`)
	// Same as above but also keeps sentence punctuation
	looseCharPattern = regexp.MustCompile(`[^\p{L}\p{N}\s?!.]`)
)

// Normalizer cleans raw post text before tokenization. It holds no mutable
// state and can be shared between goroutines.
type Normalizer struct {
	keepPunctuation bool
}

// NewNormalizer creates a normalizer. When keepPunctuation is set, '!' and
// '.' survive cleaning in addition to '?'.
func NewNormalizer(keepPunctuation bool) *Normalizer {
	return &Normalizer{keepPunctuation: keepPunctuation}
}

// Normalize lowercases text, strips URLs and unsupported characters and
// collapses whitespace. Normalizing an already normalized string returns it
// unchanged.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := strings.ToLower(raw)
	text = urlPattern.ReplaceAllString(text, " ")
	if n.keepPunctuation {
		text = looseCharPattern.ReplaceAllString(text, " ")
	} else {
		text = strictCharPattern.ReplaceAllString(text, " ")
	}

	return strings.Join(strings.Fields(text), " ")
}

// Tokens returns the normalized text split on whitespace, in order
func (n *Normalizer) Tokens(raw string) []string {
	return strings.Fields(n.Normalize(raw))
}

// truncateRunes returns at most limit runes of s
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
