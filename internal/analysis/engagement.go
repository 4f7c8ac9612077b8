package analysis

import "github.com/forumlens/audience-insights/internal/models"

// Engagement weights. Score is weighted higher than discussion volume.
const (
	ScoreWeight   = 0.7
	CommentWeight = 0.3
)

// Engagement combines a score and a comment count into one ranking value
func Engagement(score, comments int) float64 {
	return ScoreWeight*float64(score) + CommentWeight*float64(comments)
}

// PostEngagement returns the engagement of a single post
func PostEngagement(post models.Post) float64 {
	return Engagement(post.Score, post.CommentCount)
}
