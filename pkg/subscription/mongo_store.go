package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const subscriptionsCollection = "subscriptions"

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Store over db's subscriptions collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(subscriptionsCollection)}
}

// EnsureIndexes creates the indexes the store relies on. The partial unique
// index on (owner_id, status=active) is what turns two concurrent checkout
// verifications for the same owner into a duplicate-key conflict instead of
// two active rows.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: string(StatusActive)}}),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription indexes: %w", err)
	}
	return nil
}

// subscriptionDoc is the persisted shape. UUIDs are stored as strings so
// documents stay readable in shell queries and dump tooling.
type subscriptionDoc struct {
	ID           string     `bson:"_id"`
	OwnerID      string     `bson:"owner_id"`
	PlanID       string     `bson:"plan_id"`
	Status       string     `bson:"status"`
	StartDate    time.Time  `bson:"start_date"`
	EndDate      time.Time  `bson:"end_date"`
	Amount       int64      `bson:"amount"`
	Currency     string     `bson:"currency"`
	PaymentID    string     `bson:"payment_id,omitempty"`
	OrderID      string     `bson:"order_id,omitempty"`
	Features     featureDoc `bson:"features"`
	AutoRenew    bool       `bson:"auto_renew"`
	CancelledAt  *time.Time `bson:"cancelled_at,omitempty"`
	CancelReason string     `bson:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

type featureDoc struct {
	MaxPatients       int64 `bson:"max_patients"`
	AdvancedReporting bool  `bson:"advanced_reporting"`
	PrioritySupport   bool  `bson:"priority_support"`
	APIAccess         bool  `bson:"api_access"`
	WhiteLabel        bool  `bson:"white_label"`
}

func toDoc(sub *Subscription) subscriptionDoc {
	return subscriptionDoc{
		ID:           sub.ID.String(),
		OwnerID:      sub.OwnerID.String(),
		PlanID:       sub.PlanID,
		Status:       string(sub.Status),
		StartDate:    sub.StartDate,
		EndDate:      sub.EndDate,
		Amount:       sub.Amount,
		Currency:     sub.Currency,
		PaymentID:    sub.PaymentID,
		OrderID:      sub.OrderID,
		Features:     featureDoc(sub.Features),
		AutoRenew:    sub.AutoRenew,
		CancelledAt:  sub.CancelledAt,
		CancelReason: sub.CancelReason,
		CreatedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
	}
}

func fromDoc(doc subscriptionDoc) (*Subscription, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription id %q: %w", doc.ID, err)
	}
	ownerID, err := uuid.Parse(doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", doc.OwnerID, err)
	}
	return &Subscription{
		ID:           id,
		OwnerID:      ownerID,
		PlanID:       doc.PlanID,
		Status:       Status(doc.Status),
		StartDate:    doc.StartDate,
		EndDate:      doc.EndDate,
		Amount:       doc.Amount,
		Currency:     doc.Currency,
		PaymentID:    doc.PaymentID,
		OrderID:      doc.OrderID,
		Features:     Features(doc.Features),
		AutoRenew:    doc.AutoRenew,
		CancelledAt:  doc.CancelledAt,
		CancelReason: doc.CancelReason,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) Insert(ctx context.Context, sub *Subscription) error {
	_, err := s.coll.InsertOne(ctx, toDoc(sub))
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

func (s *MongoStore) GetActive(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	filter := bson.D{
		{Key: "owner_id", Value: ownerID.String()},
		{Key: "status", Value: string(StatusActive)},
	}

	var doc subscriptionDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load active subscription: %w", err)
	}
	return fromDoc(doc)
}

func (s *MongoStore) MarkReplaced(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.transition(ctx, id, StatusReplaced, bson.D{
		{Key: "status", Value: string(StatusReplaced)},
		{Key: "updated_at", Value: at},
	})
}

func (s *MongoStore) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	// Filtering on status=active makes this a convergent write: a row the
	// sweep already flipped simply matches nothing.
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(StatusActive)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(StatusExpired)},
			{Key: "updated_at", Value: at},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to expire subscription: %w", err)
	}
	return nil
}

func (s *MongoStore) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason string) (*Subscription, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(StatusCancelled)},
		{Key: "cancelled_at", Value: at},
		{Key: "cancel_reason", Value: reason},
		{Key: "updated_at", Value: at},
	}}}

	var doc subscriptionDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(StatusActive)}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return fromDoc(doc)
}

func (s *MongoStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.coll.UpdateMany(ctx,
		bson.D{
			{Key: "status", Value: string(StatusActive)},
			{Key: "end_date", Value: bson.D{{Key: "$lte", Value: now}}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(StatusExpired)},
			{Key: "updated_at", Value: now},
		}}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired subscriptions: %w", err)
	}
	return result.ModifiedCount, nil
}

func (s *MongoStore) transition(ctx context.Context, id uuid.UUID, to Status, set bson.D) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(StatusActive)}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("failed to transition subscription to %s: %w", to, err)
	}
	if result.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}
