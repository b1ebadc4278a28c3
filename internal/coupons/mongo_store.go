package coupons

import (
	"context"
	"errors"

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
	return s.db.Collection(database.CouponsCollection)
}

func (s *MongoStore) Insert(ctx context.Context, c *models.Coupon) error {
	_, err := s.collection().InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrCodeTaken
	}
	return err
}

func (s *MongoStore) List(ctx context.Context, filter bson.M, page, limit int64) ([]models.Coupon, int64, error) {
	total, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip((page - 1) * limit).
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"usages": 0})
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	coupons := []models.Coupon{}
	if err := cursor.All(ctx, &coupons); err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

func (s *MongoStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Coupon, error) {
	var c models.Coupon
	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update writes the definition fields only. usedCount and usages belong to
// checkout and are never overwritten here.
func (s *MongoStore) Update(ctx context.Context, c *models.Coupon) error {
	res, err := s.collection().UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{
		"code":                 c.Code,
		"discountType":         c.DiscountType,
		"discountValue":        c.DiscountValue,
		"minOrderAmount":       c.MinOrderAmount,
		"maxDiscountAmount":    c.MaxDiscountAmount,
		"applicableProducts":   c.ApplicableProducts,
		"applicableCategories": c.ApplicableCategories,
		"usageLimit":           c.UsageLimit,
		"perUserLimit":         c.PerUserLimit,
		"isActive":             c.IsActive,
		"validFrom":            c.ValidFrom,
		"validUntil":           c.ValidUntil,
		"note":                 c.Note,
		"updatedAt":            c.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
