// internal/app/store/applications/store.go
package applicationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("application not found")

// Store reads applications and owns their embedded feedback records.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("applications")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Application, error) {
	var a models.Application
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts an application. Application intake lives elsewhere; this
// exists for seeding and tests.
func (s *Store) Create(ctx context.Context, a models.Application) (models.Application, error) {
	now := time.Now().UTC()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.ManagerFeedback == nil {
		a.ManagerFeedback = []models.ManagerFeedback{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Application{}, err
	}
	return a, nil
}

// AddFeedback appends rec to the application's feedback records and returns
// the stored record. When rec carries a token ID that is already present the
// call is a no-op, so a retried submission cannot create a second record.
func (s *Store) AddFeedback(ctx context.Context, applicationID primitive.ObjectID, rec models.ManagerFeedback) (models.ManagerFeedback, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}

	filter := bson.M{"_id": applicationID}
	if rec.TokenID != nil {
		filter["manager_feedback.token_id"] = bson.M{"$ne": rec.TokenID}
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"manager_feedback": rec},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return models.ManagerFeedback{}, err
	}
	if res.MatchedCount == 1 {
		return rec, nil
	}

	// Either the application is missing or the record is already there.
	if rec.TokenID == nil {
		return models.ManagerFeedback{}, ErrNotFound
	}
	existing, err := s.feedbackByToken(ctx, applicationID, *rec.TokenID)
	if err != nil {
		return models.ManagerFeedback{}, err
	}
	return *existing, nil
}

func (s *Store) feedbackByToken(ctx context.Context, applicationID, tokenID primitive.ObjectID) (*models.ManagerFeedback, error) {
	records, err := s.ListFeedback(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].TokenID != nil && *records[i].TokenID == tokenID {
			return &records[i], nil
		}
	}
	return nil, ErrNotFound
}

// RemoveFeedbackByToken deletes the record written for tokenID, if any.
func (s *Store) RemoveFeedbackByToken(ctx context.Context, applicationID, tokenID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": applicationID},
		bson.M{"$pull": bson.M{"manager_feedback": bson.M{"token_id": tokenID}}},
	)
	return err
}

// ListFeedback returns the application's feedback records.
func (s *Store) ListFeedback(ctx context.Context, applicationID primitive.ObjectID) ([]models.ManagerFeedback, error) {
	var doc struct {
		ManagerFeedback []models.ManagerFeedback `bson:"manager_feedback"`
	}
	opts := options.FindOne().SetProjection(bson.M{"manager_feedback": 1})
	if err := s.c.FindOne(ctx, bson.M{"_id": applicationID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.ManagerFeedback, nil
}
