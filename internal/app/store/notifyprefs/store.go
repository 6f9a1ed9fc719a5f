// internal/app/store/notifyprefs/store.go
package notifyprefs

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store keeps per-user notification opt-outs. A user with no document
// receives everything.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notification_preferences")}
}

// Get returns the user's preferences, or an empty preference when none exist.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID) (models.NotificationPreference, error) {
	var p models.NotificationPreference
	err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NotificationPreference{UserID: userID, DisabledEvents: []string{}}, nil
	}
	if err != nil {
		return models.NotificationPreference{}, err
	}
	return p, nil
}

// Disable opts the user out of eventType.
func (s *Store) Disable(ctx context.Context, userID primitive.ObjectID, eventType string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$addToSet":    bson.M{"disabled_events": eventType},
			"$set":         bson.M{"updated_at": time.Now().UTC()},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// Enable opts the user back in to eventType.
func (s *Store) Enable(ctx context.Context, userID primitive.ObjectID, eventType string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$pull": bson.M{"disabled_events": eventType},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

// ShouldNotify reports whether the user accepts eventType notifications.
func (s *Store) ShouldNotify(ctx context.Context, userID primitive.ObjectID, eventType string) (bool, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return !slices.Contains(p.DisabledEvents, eventType), nil
}
