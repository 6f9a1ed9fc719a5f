// internal/domain/models/notificationpreference.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification event types a user can opt out of.
const (
	NotifyFeedbackRequest    = "feedback_request"
	NotifyFeedbackReminder   = "feedback_reminder"
	NotifyCommitteeCompleted = "committee_completed"
)

// NotificationPreference records which notification events a user has disabled.
// A missing document means every event is allowed.
type NotificationPreference struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	DisabledEvents []string           `bson:"disabled_events" json:"disabled_events"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}
