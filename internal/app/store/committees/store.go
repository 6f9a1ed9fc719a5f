// internal/app/store/committees/store.go
package committeestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrVersionConflict is returned by Replace when the stored committee has
// moved past the version the caller loaded.
var ErrVersionConflict = errors.New("committee was modified concurrently")

// Store persists application committees.
//
// Every write goes through Replace, which is conditional on the version the
// caller read, or through a single-field conditional update that also bumps
// the version.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("application_committees")}
}

// Create inserts a new committee. It returns committee.ErrAlreadyAssigned when
// the application already has a committee that is not cancelled.
func (s *Store) Create(ctx context.Context, c *models.ApplicationCommittee) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.Version = 1
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return committee.ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

// GetByID loads a committee.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ApplicationCommittee, error) {
	var c models.ApplicationCommittee
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, committee.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByApplication returns the application's current committee: the one that
// is not cancelled, or else the most recently created one.
func (s *Store) GetByApplication(ctx context.Context, applicationID primitive.ObjectID) (*models.ApplicationCommittee, error) {
	var c models.ApplicationCommittee
	err := s.c.FindOne(ctx, bson.M{"assigned_application_id": applicationID}).Decode(&c)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if err := s.c.FindOne(ctx, bson.M{"application_id": applicationID}, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, committee.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Replace writes c if the stored version still equals c.Version, then bumps
// c.Version. It returns ErrVersionConflict otherwise.
func (s *Store) Replace(ctx context.Context, c *models.ApplicationCommittee) error {
	loaded := c.Version
	c.Version = loaded + 1
	c.UpdatedAt = time.Now()

	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": c.ID, "version": loaded}, c)
	if err != nil {
		c.Version = loaded
		if wafflemongo.IsDup(err) {
			return committee.ErrAlreadyAssigned
		}
		return err
	}
	if res.MatchedCount == 0 {
		c.Version = loaded
		return ErrVersionConflict
	}
	return nil
}

// ClaimCompletionNotice marks a completed committee's completion notice as
// handed off. It reports true for exactly one caller per committee.
func (s *Store) ClaimCompletionNotice(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                    id,
			"status":                 models.CommitteeCompleted,
			"completion_notified_at": bson.M{"$exists": false},
		},
		bson.M{
			"$set": bson.M{"completion_notified_at": now, "updated_at": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ListReminderCandidates returns active committees whose deadline falls in
// [now, now+window].
func (s *Store) ListReminderCandidates(ctx context.Context, now time.Time, window time.Duration) ([]models.ApplicationCommittee, error) {
	filter := bson.M{
		"status": models.CommitteeActive,
		"settings.feedback_deadline": bson.M{
			"$gte": now,
			"$lte": now.Add(window),
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "settings.feedback_deadline", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ApplicationCommittee
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
