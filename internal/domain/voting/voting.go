// Package voting computes a committee's aggregate outcome from individual
// reviewer feedback.
//
// Feedback records are joined to committee members by case-insensitive
// email. Records from reviewers who are not members are ignored.
package voting

import (
	"math"
	"strings"

	"github.com/dalemusser/recruithub/internal/domain/models"
)

// HireThreshold is the minimum average score for a hire under the average mechanism.
const HireThreshold = 6.0

// Result is the recomputed part of models.VotingResults.
type Result struct {
	SubmittedCount       int
	AverageScore         float64
	RecommendationCounts models.RecommendationCounts
	Recommendation       string
}

// Calculate recomputes the outcome for members under the given mechanism.
// It has no side effects; calling it twice with the same input gives the same result.
func Calculate(members []models.CommitteeMember, records []models.ManagerFeedback, mechanism string) Result {
	var res Result

	emails := make(map[string]struct{}, len(members))
	for _, m := range members {
		emails[foldEmail(m.Email)] = struct{}{}
		switch m.Status {
		case models.MemberSubmitted:
			res.SubmittedCount++
		case models.MemberPending:
			res.RecommendationCounts.Pending++
		}
	}

	var sum float64
	var scored int
	for _, fb := range records {
		if _, ok := emails[foldEmail(fb.ReviewerEmail)]; !ok {
			continue
		}
		if fb.OverallScore != nil {
			sum += *fb.OverallScore
			scored++
		}
		switch fb.Recommendation {
		case models.FeedbackRecommend:
			res.RecommendationCounts.Recommend++
		case models.FeedbackNotRecommend:
			res.RecommendationCounts.NotRecommend++
		}
	}
	if scored > 0 {
		res.AverageScore = round1(sum / float64(scored))
	}

	res.Recommendation = decide(mechanism, res.AverageScore, res.RecommendationCounts)
	return res
}

// decide applies a voting mechanism. Unknown mechanisms fall back to average.
func decide(mechanism string, avg float64, c models.RecommendationCounts) string {
	switch mechanism {
	case models.VotingMajority:
		switch {
		case c.Recommend > c.NotRecommend:
			return models.RecommendationHire
		case c.NotRecommend > c.Recommend:
			return models.RecommendationReject
		default:
			return models.RecommendationPending
		}
	case models.VotingConsensus:
		if c.Pending > 0 {
			return models.RecommendationPending
		}
		if c.NotRecommend > 0 {
			return models.RecommendationReject
		}
		if c.Recommend > 0 {
			return models.RecommendationHire
		}
		return models.RecommendationPending
	default:
		// Average never yields pending, even with a single submission.
		if avg >= HireThreshold {
			return models.RecommendationHire
		}
		return models.RecommendationReject
	}
}

// IsValidMechanism reports whether m names a supported voting mechanism.
func IsValidMechanism(m string) bool {
	switch m {
	case models.VotingAverage, models.VotingMajority, models.VotingConsensus:
		return true
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func foldEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
