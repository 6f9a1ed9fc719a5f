// internal/domain/models/feedbacktoken.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feedback token statuses.
const (
	TokenActive   = "active"
	TokenRedeemed = "redeemed"
	TokenExpired  = "expired"
	TokenRevoked  = "revoked"
)

// FeedbackToken grants one reviewer login-free access to submit feedback for
// one application. Only a hash of the token is stored; the plain value is
// handed out once, at issue time.
type FeedbackToken struct {
	ID                     primitive.ObjectID  `bson:"_id" json:"id"`
	TokenHash              string              `bson:"token_hash" json:"-"`
	ApplicationID          primitive.ObjectID  `bson:"application_id" json:"application_id"`
	ApplicationCommitteeID *primitive.ObjectID `bson:"application_committee_id,omitempty" json:"application_committee_id,omitempty"`
	ReviewerEmail          string              `bson:"reviewer_email" json:"reviewer_email"`
	ReviewerName           string              `bson:"reviewer_name" json:"reviewer_name"`
	CommitteeRole          string              `bson:"committee_role" json:"committee_role"`
	Status                 string              `bson:"status" json:"status"`
	ExpiresAt              time.Time           `bson:"expires_at" json:"expires_at"`
	EmailSentAt            *time.Time          `bson:"email_sent_at,omitempty" json:"email_sent_at,omitempty"`
	RedeemedAt             *time.Time          `bson:"redeemed_at,omitempty" json:"redeemed_at,omitempty"`
	CreatedBy              *primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt              time.Time           `bson:"created_at" json:"created_at"`
}
