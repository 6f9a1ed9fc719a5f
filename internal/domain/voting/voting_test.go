package voting

import (
	"testing"

	"github.com/dalemusser/recruithub/internal/domain/models"
)

func score(v float64) *float64 { return &v }

func member(email, status string) models.CommitteeMember {
	return models.CommitteeMember{Email: email, Status: status, Role: models.RoleInterviewer}
}

func feedback(email, rec string, s *float64) models.ManagerFeedback {
	return models.ManagerFeedback{ReviewerEmail: email, Recommendation: rec, OverallScore: s}
}

func TestCalculate_MajorityScenario(t *testing.T) {
	members := []models.CommitteeMember{
		member("a@test.com", models.MemberSubmitted),
		member("b@test.com", models.MemberSubmitted),
		member("c@test.com", models.MemberPending),
		member("d@test.com", models.MemberPending),
	}
	records := []models.ManagerFeedback{
		feedback("a@test.com", models.FeedbackRecommend, score(8)),
		feedback("B@Test.com", models.FeedbackRecommend, score(7)),
	}

	res := Calculate(members, records, models.VotingMajority)

	if res.SubmittedCount != 2 {
		t.Errorf("SubmittedCount: got %d, want 2", res.SubmittedCount)
	}
	if res.AverageScore != 7.5 {
		t.Errorf("AverageScore: got %v, want 7.5", res.AverageScore)
	}
	if res.Recommendation != models.RecommendationHire {
		t.Errorf("Recommendation: got %q, want %q", res.Recommendation, models.RecommendationHire)
	}
	if res.RecommendationCounts.Pending != 2 {
		t.Errorf("Pending: got %d, want 2", res.RecommendationCounts.Pending)
	}
}

func TestCalculate_MajorityTieIsPending(t *testing.T) {
	members := []models.CommitteeMember{
		member("a@test.com", models.MemberSubmitted),
		member("b@test.com", models.MemberSubmitted),
		member("c@test.com", models.MemberSubmitted),
		member("d@test.com", models.MemberSubmitted),
	}
	records := []models.ManagerFeedback{
		feedback("a@test.com", models.FeedbackRecommend, score(8)),
		feedback("b@test.com", models.FeedbackRecommend, score(7)),
		feedback("c@test.com", models.FeedbackNotRecommend, score(3)),
		feedback("d@test.com", models.FeedbackNotRecommend, score(4)),
	}

	res := Calculate(members, records, models.VotingMajority)
	if res.Recommendation != models.RecommendationPending {
		t.Errorf("Recommendation: got %q, want pending", res.Recommendation)
	}
}

func TestCalculate_Consensus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		recs     []string
		want     string
	}{
		{
			name:     "one reject with others pending",
			statuses: []string{models.MemberSubmitted, models.MemberPending, models.MemberPending},
			recs:     []string{models.FeedbackNotRecommend},
			want:     models.RecommendationPending,
		},
		{
			name:     "one reject two recommend all submitted",
			statuses: []string{models.MemberSubmitted, models.MemberSubmitted, models.MemberSubmitted},
			recs:     []string{models.FeedbackNotRecommend, models.FeedbackRecommend, models.FeedbackRecommend},
			want:     models.RecommendationReject,
		},
		{
			name:     "all recommend",
			statuses: []string{models.MemberSubmitted, models.MemberSubmitted, models.MemberSubmitted},
			recs:     []string{models.FeedbackRecommend, models.FeedbackRecommend, models.FeedbackRecommend},
			want:     models.RecommendationHire,
		},
		{
			name:     "all submitted but undecided",
			statuses: []string{models.MemberSubmitted, models.MemberSubmitted, models.MemberSubmitted},
			recs:     []string{models.FeedbackPending, models.FeedbackPending, models.FeedbackPending},
			want:     models.RecommendationPending,
		},
	}

	emails := []string{"a@test.com", "b@test.com", "c@test.com"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var members []models.CommitteeMember
			for i, st := range tt.statuses {
				members = append(members, member(emails[i], st))
			}
			var records []models.ManagerFeedback
			for i, rec := range tt.recs {
				records = append(records, feedback(emails[i], rec, nil))
			}
			res := Calculate(members, records, models.VotingConsensus)
			if res.Recommendation != tt.want {
				t.Errorf("Recommendation: got %q, want %q", res.Recommendation, tt.want)
			}
		})
	}
}

func TestCalculate_AverageNeverPending(t *testing.T) {
	members := []models.CommitteeMember{
		member("a@test.com", models.MemberSubmitted),
		member("b@test.com", models.MemberPending),
	}

	res := Calculate(members, []models.ManagerFeedback{feedback("a@test.com", models.FeedbackPending, score(6))}, models.VotingAverage)
	if res.Recommendation != models.RecommendationHire {
		t.Errorf("score 6: got %q, want hire", res.Recommendation)
	}

	res = Calculate(members, nil, models.VotingAverage)
	if res.Recommendation != models.RecommendationReject {
		t.Errorf("no scores: got %q, want reject", res.Recommendation)
	}
	if res.AverageScore != 0 {
		t.Errorf("no scores: average got %v, want 0", res.AverageScore)
	}
}

func TestCalculate_IgnoresNonMembersAndNullScores(t *testing.T) {
	members := []models.CommitteeMember{
		member("a@test.com", models.MemberSubmitted),
		member("b@test.com", models.MemberSubmitted),
	}
	records := []models.ManagerFeedback{
		feedback("a@test.com", models.FeedbackRecommend, score(9)),
		feedback("b@test.com", models.FeedbackRecommend, nil),
		feedback("outsider@test.com", models.FeedbackNotRecommend, score(1)),
	}

	res := Calculate(members, records, models.VotingMajority)
	if res.AverageScore != 9 {
		t.Errorf("AverageScore: got %v, want 9", res.AverageScore)
	}
	if res.RecommendationCounts.NotRecommend != 0 {
		t.Errorf("NotRecommend: got %d, want 0", res.RecommendationCounts.NotRecommend)
	}
	if res.RecommendationCounts.Recommend != 2 {
		t.Errorf("Recommend: got %d, want 2", res.RecommendationCounts.Recommend)
	}
}

func TestCalculate_RoundsToOneDecimal(t *testing.T) {
	members := []models.CommitteeMember{
		member("a@test.com", models.MemberSubmitted),
		member("b@test.com", models.MemberSubmitted),
		member("c@test.com", models.MemberSubmitted),
	}
	records := []models.ManagerFeedback{
		feedback("a@test.com", models.FeedbackRecommend, score(7)),
		feedback("b@test.com", models.FeedbackRecommend, score(8)),
		feedback("c@test.com", models.FeedbackRecommend, score(8)),
	}

	res := Calculate(members, records, models.VotingAverage)
	if res.AverageScore != 7.7 {
		t.Errorf("AverageScore: got %v, want 7.7", res.AverageScore)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	members := []models.CommitteeMember{
		member("a@test.com", models.MemberSubmitted),
		member("b@test.com", models.MemberPending),
	}
	records := []models.ManagerFeedback{feedback("a@test.com", models.FeedbackRecommend, score(5))}

	first := Calculate(members, records, models.VotingMajority)
	second := Calculate(members, records, models.VotingMajority)
	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestIsValidMechanism(t *testing.T) {
	for _, m := range []string{"average", "majority", "consensus"} {
		if !IsValidMechanism(m) {
			t.Errorf("IsValidMechanism(%q) = false, want true", m)
		}
	}
	if IsValidMechanism("plurality") {
		t.Error("IsValidMechanism(plurality) = true, want false")
	}
}
