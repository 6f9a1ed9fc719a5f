// internal/app/store/committeetemplates/store.go
package templatestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/dalemusser/recruithub/internal/domain/voting"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound = errors.New("committee template not found")
	// ErrDuplicateDepartment is returned when a department already has an active template.
	ErrDuplicateDepartment = errors.New("an active template already exists for this department")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid committee template")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("committee_templates")}
}

// Validate checks a template's structural rules.
func Validate(t models.CommitteeTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch t.Type {
	case models.TemplateTypeDepartment:
		if strings.TrimSpace(t.Department) == "" {
			return fmt.Errorf("%w: department templates need a department", ErrInvalid)
		}
	case models.TemplateTypeCategory:
		if strings.TrimSpace(t.Category) == "" {
			return fmt.Errorf("%w: category templates need a category", ErrInvalid)
		}
	case models.TemplateTypeGeneral:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, t.Type)
	}

	seen := make(map[primitive.ObjectID]struct{}, len(t.Members))
	for _, m := range t.Members {
		if m.UserID.IsZero() {
			return fmt.Errorf("%w: member without user id", ErrInvalid)
		}
		if _, dup := seen[m.UserID]; dup {
			return fmt.Errorf("%w: duplicate member %s", ErrInvalid, m.UserID.Hex())
		}
		seen[m.UserID] = struct{}{}
	}

	st := t.Settings
	if st.MinFeedbackRequired < 1 {
		return fmt.Errorf("%w: min_feedback_required must be at least 1", ErrInvalid)
	}
	if st.FeedbackDeadlineDays < 0 {
		return fmt.Errorf("%w: feedback_deadline_days must not be negative", ErrInvalid)
	}
	if !voting.IsValidMechanism(st.VotingMechanism) {
		return fmt.Errorf("%w: unknown voting mechanism %q", ErrInvalid, st.VotingMechanism)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.CommitteeTemplate, error) {
	var t models.CommitteeTemplate
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetForDepartment returns the active department template for department.
func (s *Store) GetForDepartment(ctx context.Context, department string) (*models.CommitteeTemplate, error) {
	var t models.CommitteeTemplate
	err := s.c.FindOne(ctx, bson.M{
		"type":       models.TemplateTypeDepartment,
		"department": strings.TrimSpace(department),
		"is_active":  true,
	}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t models.CommitteeTemplate) (models.CommitteeTemplate, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Department = strings.TrimSpace(t.Department)
	t.Category = strings.TrimSpace(t.Category)
	if err := Validate(t); err != nil {
		return models.CommitteeTemplate{}, err
	}

	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.NameCI = text.Fold(t.Name)
	t.IsActive = true
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Members == nil {
		t.Members = []models.TemplateMember{}
	}

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CommitteeTemplate{}, ErrDuplicateDepartment
		}
		return models.CommitteeTemplate{}, err
	}
	return t, nil
}

// Update replaces a template's editable fields. Committees already created
// from it keep their own copies.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, t models.CommitteeTemplate) error {
	t.Name = strings.TrimSpace(t.Name)
	if err := Validate(t); err != nil {
		return err
	}
	if t.Members == nil {
		t.Members = []models.TemplateMember{}
	}
	set := bson.M{
		"name":       t.Name,
		"name_ci":    text.Fold(t.Name),
		"type":       t.Type,
		"department": strings.TrimSpace(t.Department),
		"category":   strings.TrimSpace(t.Category),
		"members":    t.Members,
		"settings":   t.Settings,
		"updated_at": time.Now().UTC(),
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateDepartment
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete deactivates a template. Templates are never removed.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilter narrows List. Zero values match everything active.
type ListFilter struct {
	Type            string
	Department      string
	IncludeInactive bool
}

// List returns templates sorted by folded name.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.CommitteeTemplate, error) {
	q := bson.M{}
	if !f.IncludeInactive {
		q["is_active"] = true
	}
	if f.Type != "" {
		q["type"] = f.Type
	}
	if f.Department != "" {
		q["department"] = f.Department
	}

	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CommitteeTemplate
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
