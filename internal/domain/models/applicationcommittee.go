// internal/domain/models/applicationcommittee.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Committee statuses. Completed and cancelled are terminal.
const (
	CommitteeActive    = "active"
	CommitteeCompleted = "completed"
	CommitteeCancelled = "cancelled"
)

// Member statuses.
const (
	MemberPending   = "pending"
	MemberSubmitted = "submitted"
	MemberSkipped   = "skipped"
)

// Overall recommendations.
const (
	RecommendationHire    = "hire"
	RecommendationReject  = "reject"
	RecommendationPending = "pending"
)

// ApplicationCommittee is the live reviewer panel for one application.
//
// NOTE:
//   - Version is bumped on every write; writers replace the document only
//     when the version they loaded is still current.
//   - AssignedApplicationID mirrors ApplicationID while the committee is not
//     cancelled. A unique sparse index on it allows a new committee to be
//     assigned once the previous one has been cancelled.
type ApplicationCommittee struct {
	ID                    primitive.ObjectID  `bson:"_id" json:"id"`
	ApplicationID         primitive.ObjectID  `bson:"application_id" json:"application_id"`
	AssignedApplicationID *primitive.ObjectID `bson:"assigned_application_id,omitempty" json:"-"`
	TemplateID            *primitive.ObjectID `bson:"template_id,omitempty" json:"template_id,omitempty"`

	Members       []CommitteeMember `bson:"members" json:"members"`
	Status        string            `bson:"status" json:"status"`
	VotingResults VotingResults     `bson:"voting_results" json:"voting_results"`
	Settings      CommitteeSettings `bson:"settings" json:"settings"`

	CreatedBy *primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`

	CompletedAt          *time.Time          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CompletionNotifiedAt *time.Time          `bson:"completion_notified_at,omitempty" json:"completion_notified_at,omitempty"`
	CancelledAt          *time.Time          `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CancelledBy          *primitive.ObjectID `bson:"cancelled_by,omitempty" json:"cancelled_by,omitempty"`
	CancellationReason   string              `bson:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CommitteeMember is one reviewer seat and its submission state.
// Email must not change for the life of the committee.
type CommitteeMember struct {
	UserID         primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Email          string              `bson:"email" json:"email"`
	Name           string              `bson:"name" json:"name"`
	Role           string              `bson:"role" json:"role"`
	IsPrimary      bool                `bson:"is_primary,omitempty" json:"is_primary,omitempty"`
	Status         string              `bson:"status" json:"status"`
	TokenID        *primitive.ObjectID `bson:"token_id,omitempty" json:"token_id,omitempty"`
	NotifiedAt     *time.Time          `bson:"notified_at,omitempty" json:"notified_at,omitempty"`
	SubmittedAt    *time.Time          `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
	ReminderSentAt *time.Time          `bson:"reminder_sent_at,omitempty" json:"reminder_sent_at,omitempty"`
	ReminderCount  int                 `bson:"reminder_count" json:"reminder_count"`
}

// VotingResults is the aggregate computed from member feedback.
type VotingResults struct {
	TotalMembers         int                  `bson:"total_members" json:"total_members"`
	SubmittedCount       int                  `bson:"submitted_count" json:"submitted_count"`
	AverageScore         float64              `bson:"average_score" json:"average_score"`
	Recommendation       string               `bson:"recommendation" json:"recommendation"`
	RecommendationCounts RecommendationCounts `bson:"recommendation_counts" json:"recommendation_counts"`
	LastCalculatedAt     *time.Time           `bson:"last_calculated_at,omitempty" json:"last_calculated_at,omitempty"`
}

// RecommendationCounts tallies individual recommendations. Pending counts
// members who have not submitted yet.
type RecommendationCounts struct {
	Recommend    int `bson:"recommend" json:"recommend"`
	NotRecommend int `bson:"not_recommend" json:"not_recommend"`
	Pending      int `bson:"pending" json:"pending"`
}

// CommitteeSettings are fixed at creation time.
type CommitteeSettings struct {
	MinFeedbackRequired int        `bson:"min_feedback_required" json:"min_feedback_required"`
	RequireAllFeedback  bool       `bson:"require_all_feedback" json:"require_all_feedback"`
	FeedbackDeadline    *time.Time `bson:"feedback_deadline,omitempty" json:"feedback_deadline,omitempty"`
	VotingMechanism     string     `bson:"voting_mechanism" json:"voting_mechanism"`
}

// IsTerminal reports whether the committee can no longer change.
func (c *ApplicationCommittee) IsTerminal() bool {
	return c.Status == CommitteeCompleted || c.Status == CommitteeCancelled
}

// MemberIndex returns the index of the member with the given user ID, or -1.
func (c *ApplicationCommittee) MemberIndex(userID primitive.ObjectID) int {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return i
		}
	}
	return -1
}
