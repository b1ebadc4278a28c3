package payments

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

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
	return s.db.Collection(database.PaymentsCollection)
}

func (s *MongoStore) Insert(ctx context.Context, p *models.Payment) error {
	res, err := s.collection().InsertOne(ctx, p)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = id
	}
	return nil
}

func (s *MongoStore) FindByTranID(ctx context.Context, tranID string) (*models.Payment, error) {
	var p models.Payment
	err := s.collection().FindOne(ctx, bson.M{"tran_id": tranID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) SetSessionKey(ctx context.Context, tranID, key string) error {
	_, err := s.collection().UpdateOne(ctx,
		bson.M{"tran_id": tranID},
		bson.M{"$set": bson.M{"session_key": key, "updatedAt": time.Now()}},
	)
	return err
}

func (s *MongoStore) SetStatus(ctx context.Context, tranID, from, to, validationID string) error {
	set := bson.M{"status": to, "updatedAt": time.Now()}
	if validationID != "" {
		set["val_id"] = validationID
	}
	res, err := s.collection().UpdateOne(ctx, bson.M{"tran_id": tranID, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrFinalized
	}
	return nil
}
