package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an active test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Role:       role,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateHRManager creates a test HR manager.
func (f *Fixtures) CreateHRManager(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleHRManager)
}

// CreateApplication creates a test application with no feedback.
func (f *Fixtures) CreateApplication(ctx context.Context, candidateName, jobTitle string) models.Application {
	f.t.Helper()

	now := time.Now().UTC()
	app := models.Application{
		ID:              primitive.NewObjectID(),
		JobTitle:        jobTitle,
		CandidateName:   candidateName,
		CandidateEmail:  "candidate@example.com",
		Status:          "interviewing",
		ManagerFeedback: []models.ManagerFeedback{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := f.db.Collection("applications").InsertOne(ctx, app); err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}
	return app
}

// CreateTemplate creates an active general template seating the given users
// with their own roles.
func (f *Fixtures) CreateTemplate(ctx context.Context, name string, settings models.TemplateSettings, members ...models.User) models.CommitteeTemplate {
	f.t.Helper()

	now := time.Now().UTC()
	tm := make([]models.TemplateMember, 0, len(members))
	for i, u := range members {
		tm = append(tm, models.TemplateMember{UserID: u.ID, Role: u.Role, IsPrimary: i == 0})
	}
	if settings.VotingMechanism == "" {
		settings.VotingMechanism = models.VotingAverage
	}
	tpl := models.CommitteeTemplate{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Type:      models.TemplateTypeGeneral,
		Members:   tm,
		Settings:  settings,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("committee_templates").InsertOne(ctx, tpl); err != nil {
		f.t.Fatalf("failed to create test template: %v", err)
	}
	return tpl
}
