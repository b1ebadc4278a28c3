package tokens

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/models"
)

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(database.RefreshTokensCollection)}
}

func (s *MongoStore) Insert(ctx context.Context, token *models.RefreshToken) error {
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, token)
	return err
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&token)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *MongoStore) MarkRotated(ctx context.Context, id, replacedBy primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{
			"_id":       id,
			"revoked":   false,
			"rotatedAt": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"revoked":    true,
			"rotatedAt":  at,
			"replacedBy": replacedBy,
			"updatedAt":  at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) Revoke(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"revoked": true, "updatedAt": time.Now()}},
	)
	return err
}

func (s *MongoStore) RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
