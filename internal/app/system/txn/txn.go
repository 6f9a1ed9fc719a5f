// Package txn runs multi-document writes inside a MongoDB transaction when the
// deployment supports one.
//
// Standalone servers reject transactions. In that case Run logs once and
// executes fn directly, so fn must be written to be safe without isolation:
// every write it performs must be conditional or idempotent, and the caller
// must compensate on error.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// warned is set after the first fallback warning so standalone deployments
// do not log on every call.
var warned atomic.Bool

// Run executes fn inside a transaction on db's client. When transactions are
// not supported, fn is executed without one.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			fallbackWarn(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		fallbackWarn(log, err)
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, // IllegalOperation
			51,  // transaction numbers on non-replica-set
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }
	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("illegal operation"):
		return true
	}
	return false
}

func fallbackWarn(log *zap.Logger, err error) {
	if log == nil || !warned.CompareAndSwap(false, true) {
		return
	}
	log.Warn("transactions not supported; running without one", zap.Error(err))
}
