package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction runs fn inside a session transaction. fn receives the
// session context and must use it for every operation that belongs to the
// transaction.
func WithTransaction(ctx context.Context, db *mongo.Database, fn func(ctx context.Context) error) error {
	session, err := db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
