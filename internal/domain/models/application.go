// internal/domain/models/application.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Individual reviewer recommendations.
const (
	FeedbackRecommend    = "recommend"
	FeedbackNotRecommend = "not_recommend"
	FeedbackPending      = "pending"
)

// Application is a candidate's application to a job. Only the fields the
// committee workflow reads are modelled here.
type Application struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	JobID          primitive.ObjectID `bson:"job_id,omitempty" json:"job_id,omitempty"`
	JobTitle       string             `bson:"job_title" json:"job_title"`
	CandidateName  string             `bson:"candidate_name" json:"candidate_name"`
	CandidateEmail string             `bson:"candidate_email" json:"candidate_email"`
	Status         string             `bson:"status" json:"status"`

	// ManagerFeedback holds every submitted reviewer evaluation.
	ManagerFeedback []ManagerFeedback `bson:"manager_feedback" json:"manager_feedback"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ManagerFeedback is one reviewer's evaluation of an application.
// OverallScore is on a 0-10 scale; nil means the reviewer gave no score.
type ManagerFeedback struct {
	ID             string              `bson:"id" json:"id"`
	TokenID        *primitive.ObjectID `bson:"token_id,omitempty" json:"-"`
	ReviewerEmail  string              `bson:"reviewer_email" json:"reviewer_email"`
	ReviewerName   string              `bson:"reviewer_name" json:"reviewer_name"`
	Role           string              `bson:"role" json:"role"`
	OverallScore   *float64            `bson:"overall_score,omitempty" json:"overall_score,omitempty"`
	Recommendation string              `bson:"recommendation" json:"recommendation"`
	Notes          string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Strengths      []string            `bson:"strengths,omitempty" json:"strengths,omitempty"`
	Weaknesses     []string            `bson:"weaknesses,omitempty" json:"weaknesses,omitempty"`
	SubmittedAt    time.Time           `bson:"submitted_at" json:"submitted_at"`
}
