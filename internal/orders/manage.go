package orders

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/apperr"
	"storefront/internal/database"
	"storefront/internal/models"
)

// Query narrows the order list. UserID is forced for non admin callers.
type Query struct {
	UserID        *primitive.ObjectID
	Status        string
	PaymentStatus string
	PaymentMethod string
	CouponCode    string
	Search        string
	From          *time.Time
	To            *time.Time
	MinAmount     *float64
	MaxAmount     *float64
}

func (q Query) Filter() (bson.M, error) {
	filter := bson.M{}
	if q.UserID != nil {
		filter["userId"] = *q.UserID
	}
	if q.Status != "" {
		if !models.Contains(models.OrderStatuses, q.Status) {
			return nil, apperr.BadRequest("invalid status %q", q.Status)
		}
		filter["status"] = q.Status
	}
	if q.PaymentStatus != "" {
		if !models.Contains(models.PaymentStates, q.PaymentStatus) {
			return nil, apperr.BadRequest("invalid payment status %q", q.PaymentStatus)
		}
		filter["paymentStatus"] = q.PaymentStatus
	}
	if q.PaymentMethod != "" {
		if !models.Contains(models.PaymentMethods, q.PaymentMethod) {
			return nil, apperr.BadRequest("invalid payment method %q", q.PaymentMethod)
		}
		filter["paymentMethod"] = q.PaymentMethod
	}
	if code := strings.TrimSpace(q.CouponCode); code != "" {
		filter["couponCode"] = strings.ToUpper(code)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"orderId": pattern},
			bson.M{"name": pattern},
			bson.M{"phone": pattern},
		}
	}
	if q.From != nil || q.To != nil {
		created := bson.M{}
		if q.From != nil {
			created["$gte"] = *q.From
		}
		if q.To != nil {
			created["$lte"] = *q.To
		}
		filter["createdAt"] = created
	}
	if q.MinAmount != nil || q.MaxAmount != nil {
		amount := bson.M{}
		if q.MinAmount != nil {
			amount["$gte"] = *q.MinAmount
		}
		if q.MaxAmount != nil {
			amount["$lte"] = *q.MaxAmount
		}
		filter["totalAmount"] = amount
	}
	return filter, nil
}

// Update is an admin change to an order. Nil fields are left untouched.
type Update struct {
	Status         *string
	PaymentStatus  *string
	TrackingNumber *string
	Notes          *string
}

// Set builds the $set document for u, stamping shippedAt and deliveredAt when
// the status moves there.
func (u Update) Set(now time.Time) (bson.M, error) {
	set := bson.M{}
	if u.Status != nil {
		status := strings.TrimSpace(*u.Status)
		if !models.Contains(models.OrderStatuses, status) {
			return nil, apperr.BadRequest("invalid status %q", status)
		}
		set["status"] = status
		switch status {
		case models.OrderShipped:
			set["shippedAt"] = now
		case models.OrderDelivered:
			set["deliveredAt"] = now
		}
	}
	if u.PaymentStatus != nil {
		ps := strings.TrimSpace(*u.PaymentStatus)
		if !models.Contains(models.PaymentStates, ps) {
			return nil, apperr.BadRequest("invalid payment status %q", ps)
		}
		set["paymentStatus"] = ps
	}
	if u.TrackingNumber != nil {
		set["trackingNumber"] = strings.TrimSpace(*u.TrackingNumber)
	}
	if u.Notes != nil {
		set["notes"] = strings.TrimSpace(*u.Notes)
	}
	if len(set) == 0 {
		return nil, apperr.BadRequest("no changes supplied")
	}
	set["updatedAt"] = now
	return set, nil
}

// Repository reads and administers stored orders.
type Repository struct {
	db *mongo.Database
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, q Query, page, limit int64) ([]models.Order, int64, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, 0, err
	}
	col := r.db.Collection(database.OrdersCollection)
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Get finds an order by its public id (ORD-...) or its ObjectID.
func (r *Repository) Get(ctx context.Context, ref string) (*models.Order, error) {
	filter := bson.M{"orderId": ref}
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		filter = bson.M{"_id": id}
	}
	var order models.Order
	err := r.db.Collection(database.OrdersCollection).FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) Apply(ctx context.Context, ref string, u Update) (*models.Order, error) {
	order, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	set, err := u.Set(time.Now())
	if err != nil {
		return nil, err
	}
	var updated models.Order
	err = r.db.Collection(database.OrdersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": order.ID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPaymentState records a gateway outcome on the order referenced by ref.
// A successful payment also confirms a pending order. Once paid, an order
// keeps that payment status whatever later callbacks report.
func (r *Repository) SetPaymentState(ctx context.Context, ref string, paymentStatus string) error {
	order, err := r.Get(ctx, ref)
	if err != nil {
		return err
	}
	set, ok := paymentStateUpdate(order, paymentStatus, time.Now())
	if !ok {
		return nil
	}
	filter := bson.M{"_id": order.ID, "paymentStatus": bson.M{"$ne": models.PaymentStatusPaid}}
	_, err = r.db.Collection(database.OrdersCollection).UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}

func paymentStateUpdate(order *models.Order, paymentStatus string, now time.Time) (bson.M, bool) {
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, false
	}
	set := bson.M{"paymentStatus": paymentStatus, "updatedAt": now}
	if paymentStatus == models.PaymentStatusPaid && order.Status == models.OrderPending {
		set["status"] = models.OrderConfirmed
	}
	return set, true
}
