package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
)

type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) collection() *mongo.Collection {
	return s.db.Collection(database.UsersCollection)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.collection().FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindByLogin(ctx context.Context, email, phone string) (*models.User, error) {
	if email != "" {
		return s.findOne(ctx, bson.M{"email": email})
	}
	return s.findOne(ctx, bson.M{"phone": phone})
}

func (s *MongoStore) Exists(ctx context.Context, email, phone string) (bool, error) {
	n, err := s.collection().CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"phone": phone},
	}})
	return n > 0, err
}

func (s *MongoStore) Insert(ctx context.Context, user *models.User) error {
	_, err := s.collection().InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *MongoStore) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.collection().UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	var user models.User
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
