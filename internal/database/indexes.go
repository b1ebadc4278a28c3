package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/logger"
)

const (
	UsersCollection         = "users"
	ProductsCollection      = "products"
	VariantsCollection      = "productvariants"
	CategoriesCollection    = "categories"
	CouponsCollection       = "coupons"
	OrdersCollection        = "orders"
	RefreshTokensCollection = "refreshtokens"
	PaymentsCollection      = "payments"
	OTPCollection           = "otps"
	OTPIssuesCollection     = "otp_issues"

	CouponRedemptionsCollection = "couponredemptions"
)

func unique(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name).SetUnique(true)}
}

func plain(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

// expiring builds a TTL index that purges documents once the date in field has passed.
func expiring(name, field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetName(name).SetExpireAfterSeconds(0),
	}
}

// Indexes lists every index the application relies on, per collection.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		UsersCollection: {
			unique("email_unique", bson.D{{Key: "email", Value: 1}}),
			unique("phone_unique", bson.D{{Key: "phone", Value: 1}}),
		},
		ProductsCollection: {
			unique("slug_unique", bson.D{{Key: "slug", Value: 1}}),
			plain("category_index", bson.D{{Key: "category", Value: 1}}),
			mongo.IndexModel{
				Keys: bson.D{
					{Key: "title", Value: "text"},
					{Key: "description", Value: "text"},
					{Key: "tags", Value: "text"},
				},
				Options: options.Index().SetName("product_text"),
			},
		},
		VariantsCollection: {
			plain("productId_index", bson.D{{Key: "productId", Value: 1}}),
		},
		CategoriesCollection: {
			unique("slug_unique", bson.D{{Key: "slug", Value: 1}}),
			plain("parent_index", bson.D{{Key: "parent", Value: 1}}),
		},
		CouponsCollection: {
			unique("code_unique", bson.D{{Key: "code", Value: 1}}),
		},
		OrdersCollection: {
			unique("orderId_unique", bson.D{{Key: "orderId", Value: 1}}),
			plain("userId_index", bson.D{{Key: "userId", Value: 1}}),
			plain("status_index", bson.D{{Key: "status", Value: 1}}),
			plain("paymentStatus_index", bson.D{{Key: "paymentStatus", Value: 1}}),
			plain("createdAt_index", bson.D{{Key: "createdAt", Value: -1}}),
			plain("couponCode_index", bson.D{{Key: "couponCode", Value: 1}}),
		},
		RefreshTokensCollection: {
			plain("userId_index", bson.D{{Key: "userId", Value: 1}}),
			expiring("expiresAt_ttl", "expiresAt"),
		},
		CouponRedemptionsCollection: {
			plain("couponId_index", bson.D{{Key: "couponId", Value: 1}}),
		},
		PaymentsCollection: {
			unique("tranId_unique", bson.D{{Key: "tran_id", Value: 1}}),
		},
		CountersCollection: {
			unique("id_unique", bson.D{{Key: "id", Value: 1}}),
		},
		OTPCollection: {
			expiring("expiresAt_ttl", "expiresAt"),
		},
		OTPIssuesCollection: {
			expiring("expiresAt_ttl", "expiresAt"),
		},
	}
}

// EnsureIndexes creates every index, logging and collecting failures instead of
// stopping at the first one.
func EnsureIndexes(db *mongo.Database, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var failed []string
	for collection, models := range Indexes() {
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			log.Warn("ensure indexes failed",
				logger.String("collection", collection),
				logger.Error(err),
			)
			failed = append(failed, collection)
			continue
		}
		log.Debug("indexes ensured",
			logger.String("collection", collection),
			logger.Any("indexes", names),
		)
	}
	if len(failed) > 0 {
		return fmt.Errorf("index creation failed for %v", failed)
	}
	return nil
}
