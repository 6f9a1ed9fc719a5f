package metricsstore

import (
	"context"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of totals reported by the committee stats endpoint.
type Counts struct {
	ActiveCommittees    int64 `json:"active_committees"`
	CompletedCommittees int64 `json:"completed_committees"`
	CancelledCommittees int64 `json:"cancelled_committees"`
	LiveTokens          int64 `json:"live_tokens"`
	ActiveTemplates     int64 `json:"active_templates"`
}

// FetchCounts returns high-level committee counts.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchCounts(ctx context.Context, db *mongo.Database) Counts {
	var out Counts

	committees := db.Collection("application_committees")
	for status, dst := range map[string]*int64{
		models.CommitteeActive:    &out.ActiveCommittees,
		models.CommitteeCompleted: &out.CompletedCommittees,
		models.CommitteeCancelled: &out.CancelledCommittees,
	} {
		if n, err := committees.CountDocuments(ctx, bson.M{"status": status}); err == nil {
			*dst = n
		}
	}

	tokenFilter := bson.M{"status": models.TokenActive, "expires_at": bson.M{"$gte": time.Now()}}
	if n, err := db.Collection("feedback_tokens").CountDocuments(ctx, tokenFilter); err == nil {
		out.LiveTokens = n
	}

	if n, err := db.Collection("committee_templates").CountDocuments(ctx, bson.M{"is_active": true}); err == nil {
		out.ActiveTemplates = n
	}

	return out
}
