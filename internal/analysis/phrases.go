package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minPhraseTokenLength = 3

// defaultStopwords is the English stopword list extended with platform noise
var defaultStopwords = []string{
	"a", "about", "above", "after", "again", "against", "ain", "all", "am", "an", "and", "any", "are",
	"aren", "aren't", "as", "at", "be", "because", "been", "before", "being", "below", "between",
	"both", "but", "by", "can", "couldn", "couldn't", "d", "did", "didn", "didn't", "do", "does",
	"doesn", "doesn't", "doing", "don", "don't", "down", "during", "each", "few", "for", "from",
	"further", "had", "hadn", "hadn't", "has", "hasn", "hasn't", "have", "haven", "haven't", "having",
	"he", "her", "here", "hers", "herself", "him", "himself", "his", "how", "i", "if", "in", "into",
	"is", "isn", "isn't", "it", "it's", "its", "itself", "just", "ll", "m", "ma", "me", "mightn",
	"mightn't", "more", "most", "mustn", "mustn't", "my", "myself", "needn", "needn't", "no", "nor",
	"not", "now", "o", "of", "off", "on", "once", "only", "or", "other", "our", "ours", "ourselves",
	"out", "over", "own", "re", "s", "same", "shan", "shan't", "she", "she's", "should", "should've",
	"shouldn", "shouldn't", "so", "some", "such", "t", "than", "that", "that'll", "the", "their",
	"theirs", "them", "themselves", "then", "there", "these", "they", "this", "those", "through",
	"to", "too", "under", "until", "up", "ve", "very", "was", "wasn", "wasn't", "we", "were",
	"weren", "weren't", "what", "when", "where", "which", "while", "who", "whom", "why", "will",
	"with", "won", "won't", "wouldn", "wouldn't", "y", "you", "you'd", "you'll", "you're",
	"you've", "your", "yours", "yourself", "yourselves",
	// platform noise
	"http", "https", "www", "com", "reddit",
}

// DefaultStopwords returns a copy of the built-in stopword list
func DefaultStopwords() []string {
	out := make([]string, len(defaultStopwords))
	copy(out, defaultStopwords)
	return out
}

func newStopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// ExtractPhrases returns the distinct candidate phrases of a token sequence:
// every qualifying token, and every adjacent pair of qualifying tokens.
func ExtractPhrases(tokens []string, stopwords map[string]struct{}) map[string]struct{} {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.Trim(tok, "?!.")
		if tok != "" {
			words = append(words, tok)
		}
	}

	phrases := make(map[string]struct{})
	for i, w := range words {
		if !isCandidate(w, stopwords) {
			continue
		}
		phrases[w] = struct{}{}
		if i+1 < len(words) && isCandidate(words[i+1], stopwords) {
			phrases[w+" "+words[i+1]] = struct{}{}
		}
	}
	return phrases
}

func isCandidate(word string, stopwords map[string]struct{}) bool {
	if utf8.RuneCountInString(word) < minPhraseTokenLength {
		return false
	}
	if isNumeric(word) {
		return false
	}
	_, stop := stopwords[word]
	return !stop
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
