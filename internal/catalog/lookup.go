package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/models"
)

func ProductsByIDs(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) ([]models.Product, error) {
	products := []models.Product{}
	if len(ids) == 0 {
		return products, nil
	}
	cursor, err := db.Collection(database.ProductsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func VariantsByIDs(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) ([]models.ProductVariant, error) {
	variants := []models.ProductVariant{}
	if len(ids) == 0 {
		return variants, nil
	}
	cursor, err := db.Collection(database.VariantsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &variants); err != nil {
		return nil, err
	}
	return variants, nil
}

func VariantsForProduct(ctx context.Context, db *mongo.Database, productID primitive.ObjectID) ([]models.ProductVariant, error) {
	variants := []models.ProductVariant{}
	cursor, err := db.Collection(database.VariantsCollection).Find(ctx, bson.M{"productId": productID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &variants); err != nil {
		return nil, err
	}
	return variants, nil
}

// FindProduct returns nil, nil when no product matches.
func FindProduct(ctx context.Context, db *mongo.Database, filter bson.M) (*models.Product, error) {
	var product models.Product
	err := db.Collection(database.ProductsCollection).FindOne(ctx, filter).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariant returns nil, nil when no variant matches.
func FindVariant(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := db.Collection(database.VariantsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&variant)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// IDOrSlug matches a document by ObjectID when ref parses as one, else by slug.
func IDOrSlug(ref string) bson.M {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return bson.M{"_id": id}
	}
	return bson.M{"slug": ref}
}
