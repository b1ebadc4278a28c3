package orders

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/catalog"
	"storefront/internal/coupons"
	"storefront/internal/database"
	"storefront/internal/models"
)

// MongoStore implements Store on a replica set so checkout runs in a
// multi-document transaction.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTransaction(ctx, s.db, fn)
}

func (s *MongoStore) User(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(database.UsersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) ProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	return catalog.ProductsByIDs(ctx, s.db, ids)
}

func (s *MongoStore) VariantsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.ProductVariant, error) {
	return catalog.VariantsByIDs(ctx, s.db, ids)
}

func (s *MongoStore) CouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.Collection(database.CouponsCollection).FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, coupons.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (s *MongoStore) NextOrderNumber(ctx context.Context) (int64, error) {
	return database.NextSequence(ctx, s.db, database.OrderCounter)
}

func (s *MongoStore) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.Collection(database.OrdersCollection).InsertOne(ctx, order)
	return err
}

func (s *MongoStore) DecrementStock(ctx context.Context, changes []StockChange) error {
	if len(changes) == 0 {
		return nil
	}
	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(changes))
	for _, c := range changes {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": c.VariantID, "stock": bson.M{"$gte": c.Quantity}}).
			SetUpdate(bson.M{
				"$inc": bson.M{"stock": -c.Quantity},
				"$set": bson.M{"updatedAt": now},
			}))
	}
	res, err := s.db.Collection(database.VariantsCollection).
		BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return err
	}
	if res.MatchedCount < int64(len(changes)) {
		return ErrStockChanged
	}
	return nil
}

// recentUsages bounds the usage list embedded in a coupon document.
const recentUsages = 50

func (s *MongoStore) RedeemCoupon(ctx context.Context, couponID primitive.ObjectID, usage models.CouponUsage) error {
	filter := bson.M{
		"_id":   couponID,
		"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}},
	}
	res, err := s.db.Collection(database.CouponsCollection).UpdateOne(ctx, filter, redeemUpdate(usage))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return coupons.ErrUsageReached
	}

	_, err = s.db.Collection(database.CouponRedemptionsCollection).InsertOne(ctx, models.CouponRedemption{
		CouponID: couponID,
		UserID:   usage.UserID,
		OrderID:  usage.OrderID,
		UsedAt:   usage.UsedAt,
	})
	return err
}

func redeemUpdate(usage models.CouponUsage) bson.M {
	return bson.M{
		"$inc": bson.M{"usedCount": 1},
		"$push": bson.M{"usages": bson.M{
			"$each":  bson.A{usage},
			"$slice": -recentUsages,
		}},
		"$set": bson.M{"updatedAt": usage.UsedAt},
	}
}

func (s *MongoStore) CompleteCheckout(ctx context.Context, userID, orderID primitive.ObjectID) error {
	_, err := s.db.Collection(database.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":  bson.M{"cart": []models.LineItem{}, "updatedAt": time.Now()},
			"$push": bson.M{"orders": orderID},
		},
	)
	return err
}
