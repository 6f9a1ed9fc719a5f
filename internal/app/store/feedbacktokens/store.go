// internal/app/store/feedbacktokens/store.go
package feedbacktokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/recruithub/internal/app/system/normalize"
	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/blake2b"
)

const (
	// TokenLength is the token size in bytes (32 bytes = 64 hex chars).
	TokenLength = 32
	// DefaultTTL is how long a token stays redeemable.
	DefaultTTL = 7 * 24 * time.Hour
)

// ErrRevoked is returned for a token that was revoked. It matches
// committee.ErrNotFound so callers without more context treat it as unknown.
var ErrRevoked = fmt.Errorf("%w: feedback token revoked", committee.ErrNotFound)

// Store manages feedback tokens. Plain token values are never stored.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("feedback_tokens"), now: time.Now}
}

// SetClock overrides the time source. Tests use it to step past expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// HashToken returns the stored form of a plain token.
func HashToken(plain string) string {
	sum := blake2b.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IssueParams describes the token to issue.
type IssueParams struct {
	ApplicationID primitive.ObjectID
	CommitteeID   *primitive.ObjectID
	ReviewerEmail string
	ReviewerName  string
	CommitteeRole string
	TTL           time.Duration
	CreatedBy     *primitive.ObjectID
}

// Issue creates a token and returns its plain value, which is not
// recoverable afterwards. For committee tokens it returns
// committee.ErrDuplicateActiveToken when the reviewer already holds a live one.
func (s *Store) Issue(ctx context.Context, p IssueParams) (string, *models.FeedbackToken, error) {
	// BSON dates carry millisecond precision.
	now := s.now().Truncate(time.Millisecond)
	email := normalize.Email(p.ReviewerEmail)
	if email == "" {
		return "", nil, fmt.Errorf("%w: reviewer email is required", committee.ErrInvalidInput)
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	// Stale active tokens still occupy the live-token index slot.
	if p.CommitteeID != nil {
		if _, err := s.c.UpdateMany(ctx,
			bson.M{
				"application_committee_id": p.CommitteeID,
				"reviewer_email":           email,
				"status":                   models.TokenActive,
				"expires_at":               bson.M{"$lt": now},
			},
			bson.M{"$set": bson.M{"status": models.TokenExpired}},
		); err != nil {
			return "", nil, fmt.Errorf("expire stale tokens: %w", err)
		}
	}

	plain, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	tok := models.FeedbackToken{
		ID:                     primitive.NewObjectID(),
		TokenHash:              HashToken(plain),
		ApplicationID:          p.ApplicationID,
		ApplicationCommitteeID: p.CommitteeID,
		ReviewerEmail:          email,
		ReviewerName:           normalize.Name(p.ReviewerName),
		CommitteeRole:          p.CommitteeRole,
		Status:                 models.TokenActive,
		ExpiresAt:              now.Add(ttl),
		CreatedBy:              p.CreatedBy,
		CreatedAt:              now,
	}
	if _, err := s.c.InsertOne(ctx, tok); err != nil {
		if wafflemongo.IsDup(err) {
			return "", nil, committee.ErrDuplicateActiveToken
		}
		return "", nil, err
	}
	return plain, &tok, nil
}

// GetByID loads a token by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.FeedbackToken, error) {
	var t models.FeedbackToken
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, committee.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Lookup returns the token for plain whatever its state.
func (s *Store) Lookup(ctx context.Context, plain string) (*models.FeedbackToken, error) {
	if plain == "" {
		return nil, committee.ErrNotFound
	}
	var t models.FeedbackToken
	if err := s.c.FindOne(ctx, bson.M{"token_hash": HashToken(plain)}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, committee.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Verify returns the token for plain if it is redeemable. It does not
// consume the token.
func (s *Store) Verify(ctx context.Context, plain string) (*models.FeedbackToken, error) {
	t, err := s.Lookup(ctx, plain)
	if err != nil {
		return nil, err
	}
	if err := classify(t, s.now()); err != nil {
		return nil, err
	}
	return t, nil
}

// classify maps a token's state to the error a presenter should see.
// A token is valid up to and including its expires_at instant.
func classify(t *models.FeedbackToken, now time.Time) error {
	switch t.Status {
	case models.TokenRedeemed:
		return committee.ErrTokenAlreadyRedeemed
	case models.TokenRevoked:
		return ErrRevoked
	case models.TokenExpired:
		return committee.ErrTokenExpired
	}
	if now.After(t.ExpiresAt) {
		return committee.ErrTokenExpired
	}
	return nil
}

// Redeem atomically consumes the token for plain. Exactly one caller
// succeeds for a given token; the others get the reason it is unusable.
func (s *Store) Redeem(ctx context.Context, plain string) (*models.FeedbackToken, error) {
	if plain == "" {
		return nil, committee.ErrNotFound
	}
	now := s.now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var t models.FeedbackToken
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{
			"token_hash": HashToken(plain),
			"status":     models.TokenActive,
			"expires_at": bson.M{"$gte": now},
		},
		bson.M{"$set": bson.M{"status": models.TokenRedeemed, "redeemed_at": now}},
		opts,
	).Decode(&t)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	if _, verr := s.Verify(ctx, plain); verr != nil {
		return nil, verr
	}
	// Lost a race between the conditional update and the re-read.
	return nil, committee.ErrTokenAlreadyRedeemed
}

// Release returns a redeemed token to active. It undoes Redeem when the
// submission it guarded could not be recorded.
func (s *Store) Release(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TokenRedeemed},
		bson.M{
			"$set":   bson.M{"status": models.TokenActive},
			"$unset": bson.M{"redeemed_at": ""},
		},
	)
	return err
}

// Revoke deactivates an active token.
func (s *Store) Revoke(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TokenActive},
		bson.M{"$set": bson.M{"status": models.TokenRevoked}},
	)
	return err
}

// Reinstate reactivates a revoked token that has not expired. It undoes
// Revoke when the link meant to replace it could not be delivered.
func (s *Store) Reinstate(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TokenRevoked, "expires_at": bson.M{"$gte": s.now()}},
		bson.M{"$set": bson.M{"status": models.TokenActive}},
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MarkSent records when the token's email was delivered.
func (s *Store) MarkSent(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"email_sent_at": at}})
	return err
}

// HasLive reports whether the reviewer holds an unexpired, unredeemed token
// for the committee.
func (s *Store) HasLive(ctx context.Context, committeeID primitive.ObjectID, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"application_committee_id": committeeID,
		"reviewer_email":           normalize.Email(email),
		"status":                   models.TokenActive,
		"expires_at":               bson.M{"$gte": s.now()},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeForCommittee revokes every active token of a committee and returns
// how many were revoked.
func (s *Store) RevokeForCommittee(ctx context.Context, committeeID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"application_committee_id": committeeID, "status": models.TokenActive},
		bson.M{"$set": bson.M{"status": models.TokenRevoked}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ExpireStale marks active tokens past their expiry as expired.
func (s *Store) ExpireStale(ctx context.Context) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": models.TokenActive, "expires_at": bson.M{"$lt": s.now()}},
		bson.M{"$set": bson.M{"status": models.TokenExpired}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
