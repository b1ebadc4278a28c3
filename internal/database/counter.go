package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

const (
	CountersCollection = "counters"
	OrderCounter       = "order"
	counterStart       = 10001
)

// NextSequence atomically increments the named counter and returns the new
// value. A missing counter is created so that its first value is 10001.
func NextSequence(ctx context.Context, db *mongo.Database, name string) (int64, error) {
	var counter models.Counter
	err := db.Collection(CountersCollection).
		FindOneAndUpdate(ctx, bson.M{"id": name}, sequenceUpdate(), sequenceOptions()).
		Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func sequenceUpdate() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"seq": bson.M{"$add": bson.A{
				bson.M{"$ifNull": bson.A{"$seq", counterStart - 1}},
				1,
			}},
		}}},
	}
}

func sequenceOptions() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
}
