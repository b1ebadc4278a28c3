package cart

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/catalog"
	"storefront/internal/database"
	"storefront/internal/models"
)

type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Cart(ctx context.Context, userID primitive.ObjectID) ([]models.LineItem, error) {
	var user struct {
		Cart []models.LineItem `bson:"cart"`
	}
	opts := options.FindOne().SetProjection(bson.M{"cart": 1})
	err := s.db.Collection(database.UsersCollection).FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user.Cart, nil
}

func (s *MongoStore) SaveCart(ctx context.Context, userID primitive.ObjectID, items []models.LineItem) error {
	res, err := s.db.Collection(database.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"cart": items, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) Product(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return catalog.FindProduct(ctx, s.db, bson.M{"_id": id})
}

func (s *MongoStore) Variant(ctx context.Context, id primitive.ObjectID) (*models.ProductVariant, error) {
	return catalog.FindVariant(ctx, s.db, id)
}
