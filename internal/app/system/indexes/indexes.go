// internal/app/system/indexes/indexes.go
package indexes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

Several correctness rules depend on these indexes, not just query speed:
  - one live committee per application (uniq_committees_assigned_application)
  - one live feedback token per reviewer and committee (uniq_tokens_live_reviewer)
  - one active department template per department (uniq_templates_active_department)
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"committee_templates", ensureCommitteeTemplates},
		{"application_committees", ensureApplicationCommittees},
		{"feedback_tokens", ensureFeedbackTokens},
		{"applications", ensureApplications},
		{"notification_preferences", ensureNotificationPreferences},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name          string   `bson:"name"`
	Key           bson.D   `bson:"key"`
	Unique        *bool    `bson:"unique,omitempty"`
	PartialFilter bson.Raw `bson:"partialFilterExpression,omitempty"`
}

type desiredIndex struct {
	model   mongo.IndexModel
	name    string
	unique  bool
	sig     string
	partial bson.Raw
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func describe(m mongo.IndexModel) (desiredIndex, error) {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options == nil {
		return d, nil
	}
	if m.Options.Name != nil {
		d.name = *m.Options.Name
	}
	if m.Options.Unique != nil {
		d.unique = *m.Options.Unique
	}
	if m.Options.PartialFilterExpression != nil {
		raw, err := bson.Marshal(m.Options.PartialFilterExpression)
		if err != nil {
			return d, fmt.Errorf("marshal partial filter: %w", err)
		}
		d.partial = raw
	}
	return d, nil
}

// sameOptions reports whether an existing index enforces the same rule as d.
func (d desiredIndex) sameOptions(ex existingIndex) bool {
	exUnique := ex.Unique != nil && *ex.Unique
	if exUnique != d.unique {
		return false
	}
	if len(d.partial) == 0 && len(ex.PartialFilter) == 0 {
		return true
	}
	return bytes.Equal(d.partial, ex.PartialFilter)
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func createErr(coll *mongo.Collection, d desiredIndex, err error) error {
	if isDuplicateKeyErr(err) && d.unique {
		helper := ""
		if coll.Name() == "users" && strings.Contains(d.sig, "email:1") {
			helper = ". Example finder:\n" +
				`db.users.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
		}
		return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)%s", coll.Name(), d.name, helper)
	}
	return fmt.Errorf("%s(%s): %w", coll.Name(), d.name, err)
}

// recreate drops the index named from and creates d in its place.
func recreate(ctx context.Context, coll *mongo.Collection, from string, d desiredIndex) error {
	if _, err := coll.Indexes().DropOne(ctx, from); err != nil {
		zap.L().Warn("drop existing index failed",
			zap.String("collection", coll.Name()),
			zap.String("name", from),
			zap.String("keys", d.sig),
			zap.Error(err))
		return fmt.Errorf("%s(%s): drop failed: %w", coll.Name(), d.name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		return createErr(coll, d, err)
	}
	return nil
}

func ensureOne(ctx context.Context, coll *mongo.Collection, d desiredIndex) error {
	start := time.Now()
	zap.L().Info("ensuring index",
		zap.String("collection", coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.Bool("unique", d.unique),
		zap.Bool("partial", len(d.partial) > 0))

	if ex, ok := listExisting(ctx, coll)[d.sig]; ok {
		switch {
		case d.sameOptions(ex) && (d.name == "" || ex.Name == d.name):
			zap.L().Info("reusing existing index",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name),
				zap.String("keys", d.sig),
				zap.String("took", time.Since(start).String()))
			return nil
		case d.sameOptions(ex):
			zap.L().Info("renaming index to align with desired name",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("to", d.name),
				zap.String("keys", d.sig))
		default:
			// Options mismatch (e.g., upgrading to unique or changing the partial filter).
			zap.L().Info("index options changed, recreating",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name),
				zap.String("keys", d.sig))
		}
		if err := recreate(ctx, coll, ex.Name, d); err != nil {
			return err
		}
		zap.L().Info("index dropped and recreated",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.String("took", time.Since(start).String()))
		return nil
	}

	created, err := coll.Indexes().CreateOne(ctx, d.model)
	if err == nil {
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("created_name", created),
			zap.String("keys", d.sig),
			zap.String("took", time.Since(start).String()))
		return nil
	}

	if isOptionsConflictErr(err) {
		// Lost a race with another process creating the same keys.
		if ex, ok := listExisting(ctx, coll)[d.sig]; ok {
			if d.sameOptions(ex) {
				zap.L().Info("reusing existing index (post-conflict)",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", d.sig))
				return nil
			}
			return recreate(ctx, coll, ex.Name, d)
		}
	}

	zap.L().Warn("index ensure failed",
		zap.String("collection", coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.String("took", time.Since(start).String()),
		zap.Error(err))
	return createErr(coll, d, err)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		d, err := describe(m)
		if err == nil {
			err = ensureOne(ctx, coll, d)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email is the join key between committee members and feedback records.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// HR manager lookup (earliest active) and role listings.
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_status_created_id"),
		},
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_fullnameci_id"),
		},
	})
}

func ensureCommitteeTemplates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("committee_templates")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one active template per department.
		{
			Keys: bson.D{{Key: "department", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "type", Value: "department"},
					{Key: "is_active", Value: true},
				}).
				SetName("uniq_templates_active_department"),
		},
		// Listing: filter by type/active, sorted by name.
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "is_active", Value: 1},
				{Key: "name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_templates_type_active_nameci_id"),
		},
	})
}

func ensureApplicationCommittees(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("application_committees")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One live committee per application. Cancel unsets the field.
		{
			Keys: bson.D{{Key: "assigned_application_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "assigned_application_id", Value: bson.D{{Key: "$exists", Value: true}}},
				}).
				SetName("uniq_committees_assigned_application"),
		},
		// Committee history per application (latest-first).
		{
			Keys:    bson.D{{Key: "application_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_committees_application_created"),
		},
		// Reminder sweep: active committees by deadline.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "settings.feedback_deadline", Value: 1},
			},
			Options: options.Index().SetName("idx_committees_status_deadline"),
		},
	})
}

func ensureFeedbackTokens(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("feedback_tokens")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Tokens are looked up by hash only.
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_tokens_hash"),
		},
		// One live token per reviewer per committee.
		{
			Keys: bson.D{
				{Key: "application_committee_id", Value: 1},
				{Key: "reviewer_email", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "status", Value: "active"},
					{Key: "application_committee_id", Value: bson.D{{Key: "$exists", Value: true}}},
				}).
				SetName("uniq_tokens_live_reviewer"),
		},
		{
			Keys:    bson.D{{Key: "application_id", Value: 1}},
			Options: options.Index().SetName("idx_tokens_application"),
		},
		// Stale token expiry.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_tokens_status_expires"),
		},
	})
}

func ensureApplications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("applications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "manager_feedback.token_id", Value: 1}},
			Options: options.Index().SetName("idx_applications_feedback_token"),
		},
	})
}

func ensureNotificationPreferences(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notification_preferences")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_notifyprefs_user"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Site-wide recent events (latest-first)
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		// Per-committee history
		{
			Keys:    bson.D{{Key: "committee_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_committee_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_type_timestamp"),
		},
	})
}
