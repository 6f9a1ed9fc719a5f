// internal/domain/models/committeetemplate.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template types.
const (
	TemplateTypeDepartment = "department"
	TemplateTypeCategory   = "category"
	TemplateTypeGeneral    = "general"
)

// Voting mechanisms.
const (
	VotingAverage   = "average"
	VotingMajority  = "majority"
	VotingConsensus = "consensus"
)

// CommitteeTemplate is a reusable reviewer panel definition.
// Templates are never hard-deleted; IsActive=false hides them.
//
// At most one active department template may exist per Department value
// (enforced by a partial unique index).
type CommitteeTemplate struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Name       string             `bson:"name" json:"name"`
	NameCI     string             `bson:"name_ci" json:"name_ci"`
	Type       string             `bson:"type" json:"type"` // department | category | general
	Department string             `bson:"department,omitempty" json:"department,omitempty"`
	Category   string             `bson:"category,omitempty" json:"category,omitempty"`

	Members  []TemplateMember `bson:"members" json:"members"`
	Settings TemplateSettings `bson:"settings" json:"settings"`

	IsActive  bool                `bson:"is_active" json:"is_active"`
	CreatedBy *primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// TemplateMember is one default seat on a template.
type TemplateMember struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role      string             `bson:"role" json:"role"`
	IsPrimary bool               `bson:"is_primary" json:"is_primary"`
}

// TemplateSettings are the voting defaults a template hands to new committees.
type TemplateSettings struct {
	MinFeedbackRequired  int    `bson:"min_feedback_required" json:"min_feedback_required"`
	RequireAllFeedback   bool   `bson:"require_all_feedback" json:"require_all_feedback"`
	FeedbackDeadlineDays int    `bson:"feedback_deadline_days" json:"feedback_deadline_days"`
	VotingMechanism      string `bson:"voting_mechanism" json:"voting_mechanism"`
}
