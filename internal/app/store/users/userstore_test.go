package userstore_test

import (
	"errors"
	"testing"
	"time"

	userstore "github.com/dalemusser/recruithub/internal/app/store/users"
	"github.com/dalemusser/recruithub/internal/app/system/status"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/dalemusser/recruithub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "  Alice Reviewer ",
		Email:    "Alice@Example.COM",
		Role:     "Interviewer",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.FullName != "Alice Reviewer" {
		t.Errorf("expected trimmed name, got %q", created.FullName)
	}
	if created.FullNameCI == "" {
		t.Error("expected FullNameCI to be set")
	}
	if created.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", created.Email)
	}
	if created.Role != models.RoleInterviewer {
		t.Errorf("expected normalized role, got %q", created.Role)
	}
	if created.Status != status.Active {
		t.Errorf("expected status 'active', got %q", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name string
		user models.User
	}{
		{"bad role", models.User{FullName: "X", Email: "x@example.com", Role: "member"}},
		{"bad status", models.User{FullName: "X", Email: "x@example.com", Role: models.RoleAdmin, Status: "paused"}},
		{"missing email", models.User{FullName: "X", Role: models.RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.user); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{FullName: "One", Email: "dup@example.com", Role: models.RoleAdmin}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{FullName: "Two", Email: "DUP@example.com", Role: models.RoleAdmin})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateUser(ctx, "Bob", "bob@example.com", models.RoleTechnicalLead)

	got, err := store.GetByEmail(ctx, "  BOB@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("got user %s, want %s", got.ID.Hex(), u.ID.Hex())
	}

	if _, err := store.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateUser(ctx, "Carol", "carol@example.com", models.RoleHiringManager)

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Email != "carol@example.com" {
		t.Errorf("Email: got %q", got.Email)
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	missing := primitive.NewObjectID()
	byID, err := store.GetByIDs(ctx, []primitive.ObjectID{u.ID, missing})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(byID) != 1 {
		t.Errorf("expected 1 user, got %d", len(byID))
	}
	if _, ok := byID[u.ID]; !ok {
		t.Error("expected existing user in result")
	}
}

func TestStore_FindHRManager(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.FindHRManager(ctx); !errors.Is(err, userstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no HR manager, got %v", err)
	}

	first, err := store.Create(ctx, models.User{FullName: "HR One", Email: "hr1@example.com", Role: models.RoleHRManager})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := store.Create(ctx, models.User{FullName: "HR Two", Email: "hr2@example.com", Role: models.RoleHRManager}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.FindHRManager(ctx)
	if err != nil {
		t.Fatalf("FindHRManager failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("expected earliest HR manager %s, got %s", first.ID.Hex(), got.ID.Hex())
	}

	// Disabled HR managers are skipped.
	if err := store.SetStatus(ctx, first.ID, status.Disabled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, err = store.FindHRManager(ctx)
	if err != nil {
		t.Fatalf("FindHRManager failed: %v", err)
	}
	if got.Email != "hr2@example.com" {
		t.Errorf("expected second HR manager, got %s", got.Email)
	}
}

func TestStore_SetStatus_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.SetStatus(ctx, primitive.NewObjectID(), status.Disabled); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
