package applicationstore_test

import (
	"errors"
	"testing"

	applicationstore "github.com/dalemusser/recruithub/internal/app/store/applications"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/dalemusser/recruithub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func score(v float64) *float64 { return &v }

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Application{
		CandidateName: "Jordan Smith",
		JobTitle:      "Backend Engineer",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CandidateName != "Jordan Smith" {
		t.Errorf("CandidateName: got %q", got.CandidateName)
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, applicationstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_AddFeedback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	app, err := store.Create(ctx, models.Application{CandidateName: "C"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tokenID := primitive.NewObjectID()
	rec, err := store.AddFeedback(ctx, app.ID, models.ManagerFeedback{
		TokenID:        &tokenID,
		ReviewerEmail:  "alice@test.com",
		Recommendation: models.FeedbackRecommend,
		OverallScore:   score(8),
	})
	if err != nil {
		t.Fatalf("AddFeedback failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected record ID to be generated")
	}
	if rec.SubmittedAt.IsZero() {
		t.Error("expected SubmittedAt to be set")
	}

	// Same token again is a no-op returning the stored record.
	again, err := store.AddFeedback(ctx, app.ID, models.ManagerFeedback{
		TokenID:        &tokenID,
		ReviewerEmail:  "alice@test.com",
		Recommendation: models.FeedbackNotRecommend,
	})
	if err != nil {
		t.Fatalf("repeat AddFeedback failed: %v", err)
	}
	if again.ID != rec.ID {
		t.Errorf("expected existing record %s, got %s", rec.ID, again.ID)
	}

	records, err := store.ListFeedback(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Recommendation != models.FeedbackRecommend {
		t.Errorf("record was overwritten: %q", records[0].Recommendation)
	}
}

func TestStore_AddFeedback_MissingApplication(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tokenID := primitive.NewObjectID()
	_, err := store.AddFeedback(ctx, primitive.NewObjectID(), models.ManagerFeedback{TokenID: &tokenID})
	if !errors.Is(err, applicationstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RemoveFeedbackByToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	app, err := store.Create(ctx, models.Application{CandidateName: "C"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	keep := primitive.NewObjectID()
	drop := primitive.NewObjectID()
	for _, id := range []primitive.ObjectID{keep, drop} {
		id := id
		if _, err := store.AddFeedback(ctx, app.ID, models.ManagerFeedback{TokenID: &id, Recommendation: models.FeedbackPending}); err != nil {
			t.Fatalf("AddFeedback failed: %v", err)
		}
	}

	if err := store.RemoveFeedbackByToken(ctx, app.ID, drop); err != nil {
		t.Fatalf("RemoveFeedbackByToken failed: %v", err)
	}
	// Removing twice is harmless.
	if err := store.RemoveFeedbackByToken(ctx, app.ID, drop); err != nil {
		t.Fatalf("second RemoveFeedbackByToken failed: %v", err)
	}

	records, err := store.ListFeedback(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(records) != 1 || records[0].TokenID == nil || *records[0].TokenID != keep {
		t.Errorf("unexpected records after removal: %+v", records)
	}
}
