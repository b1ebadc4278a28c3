package otp

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
)

// MongoStore is used when Redis is not configured. The TTL index on expiresAt
// purges stale entries; reads also ignore anything already past expiry.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

func (s *MongoStore) collection() *mongo.Collection {
	return s.db.Collection(database.OTPCollection)
}

func (s *MongoStore) issues() *mongo.Collection {
	return s.db.Collection(database.OTPIssuesCollection)
}

func (s *MongoStore) Save(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	doc := models.OTP{Email: email, CodeHash: codeHash, ExpiresAt: s.now().Add(ttl)}
	_, err := s.collection().ReplaceOne(ctx, bson.M{"_id": email}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, email string) (*Entry, error) {
	var doc models.OTP
	err := s.collection().FindOne(ctx, bson.M{"_id": email, "expiresAt": bson.M{"$gt": s.now()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Entry{CodeHash: doc.CodeHash, Attempts: doc.Attempts}, nil
}

func (s *MongoStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	var doc models.OTP
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": email},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	return doc.Attempts, err
}

func (s *MongoStore) Delete(ctx context.Context, email string) error {
	_, err := s.collection().DeleteOne(ctx, bson.M{"_id": email})
	return err
}

// CountIssue opens a new window when the stored one has lapsed, even if the
// TTL monitor has not removed it yet.
func (s *MongoStore) CountIssue(ctx context.Context, email string, window time.Duration) (int, error) {
	var doc models.OTPIssueWindow
	err := s.issues().FindOneAndUpdate(ctx,
		bson.M{"_id": email},
		issueWindowUpdate(s.now(), window),
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Count, nil
}

func issueWindowUpdate(now time.Time, window time.Duration) mongo.Pipeline {
	live := bson.M{"$gt": bson.A{"$expiresAt", now}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"count": bson.M{"$cond": bson.A{
				live,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$count", 0}}, 1}},
				1,
			}},
			"expiresAt": bson.M{"$cond": bson.A{live, "$expiresAt", now.Add(window)}},
		}}},
	}
}
