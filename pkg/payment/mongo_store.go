package payment

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

const ordersCollection = "payment_orders"

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Store over db's payment_orders collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(ordersCollection)}
}

// EnsureIndexes creates the indexes the store relies on. The unique index
// on order_id makes the gateway identifier a safe lookup key, and the
// (status, created_at) index backs the stale-order sweep and the finance
// aggregations.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create payment order indexes: %w", err)
	}
	return nil
}

type orderDoc struct {
	ID            string    `bson:"_id"`
	OwnerID       string    `bson:"owner_id"`
	PlanID        string    `bson:"plan_id"`
	OrderID       string    `bson:"order_id"`
	Amount        int64     `bson:"amount"`
	Currency      string    `bson:"currency"`
	Status        string    `bson:"status"`
	PaymentID     string    `bson:"payment_id,omitempty"`
	GatewayStatus string    `bson:"gateway_status,omitempty"`
	Signature     string    `bson:"signature,omitempty"`
	FailureReason string    `bson:"failure_reason,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toOrderDoc(order *Order) orderDoc {
	return orderDoc{
		ID:            order.ID.String(),
		OwnerID:       order.OwnerID.String(),
		PlanID:        order.PlanID,
		OrderID:       order.GatewayOrderID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Status:        string(order.Status),
		PaymentID:     order.PaymentID,
		GatewayStatus: order.GatewayStatus,
		Signature:     order.Signature,
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func fromOrderDoc(doc orderDoc) (*Order, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment order id %q: %w", doc.ID, err)
	}
	ownerID, err := uuid.Parse(doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", doc.OwnerID, err)
	}
	return &Order{
		ID:             id,
		OwnerID:        ownerID,
		PlanID:         doc.PlanID,
		GatewayOrderID: doc.OrderID,
		Amount:         doc.Amount,
		Currency:       doc.Currency,
		Status:         OrderStatus(doc.Status),
		PaymentID:      doc.PaymentID,
		GatewayStatus:  doc.GatewayStatus,
		Signature:      doc.Signature,
		FailureReason:  doc.FailureReason,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) Insert(ctx context.Context, order *Order) error {
	if _, err := s.coll.InsertOne(ctx, toOrderDoc(order)); err != nil {
		return fmt.Errorf("failed to insert payment order: %w", err)
	}
	return nil
}

func (s *MongoStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	var doc orderDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "order_id", Value: gatewayOrderID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment order: %w", err)
	}
	return fromOrderDoc(doc)
}

func (s *MongoStore) MarkCompleted(ctx context.Context, id uuid.UUID, paymentID, signature, gatewayStatus string, at time.Time) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(OrderCreated)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(OrderCompleted)},
			{Key: "payment_id", Value: paymentID},
			{Key: "gateway_status", Value: gatewayStatus},
			{Key: "signature", Value: signature},
			{Key: "updated_at", Value: at},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to complete payment order: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderAlreadyProcessed
	}
	return nil
}

func (s *MongoStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(OrderCreated)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(OrderFailed)},
			{Key: "failure_reason", Value: reason},
			{Key: "updated_at", Value: at},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to fail payment order: %w", err)
	}
	return nil
}

func (s *MongoStore) CancelStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.coll.UpdateMany(ctx,
		bson.D{
			{Key: "status", Value: string(OrderCreated)},
			{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoff}}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(OrderCancelled)},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale payment orders: %w", err)
	}
	return result.ModifiedCount, nil
}
