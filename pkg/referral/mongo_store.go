package referral

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

const referralsCollection = "referrals"

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Store over db's referrals collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(referralsCollection)}
}

// EnsureIndexes creates the indexes the store relies on. The unique
// (referrer_id, referred_email) pair blocks duplicate invites, and the
// unique sparse code index makes invite links unambiguous.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "referrer_id", Value: 1}, {Key: "referred_email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "referred_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create referral indexes: %w", err)
	}
	return nil
}

type referralDoc struct {
	ID            string     `bson:"_id"`
	ReferrerID    string     `bson:"referrer_id"`
	ReferredEmail string     `bson:"referred_email"`
	ReferredID    string     `bson:"referred_id,omitempty"`
	Code          string     `bson:"code"`
	Status        string     `bson:"status"`
	RewardAmount  int64      `bson:"reward_amount"`
	RegisteredAt  *time.Time `bson:"registered_at,omitempty"`
	AcceptedAt    *time.Time `bson:"accepted_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func toReferralDoc(ref *Referral) referralDoc {
	doc := referralDoc{
		ID:            ref.ID.String(),
		ReferrerID:    ref.ReferrerID.String(),
		ReferredEmail: ref.ReferredEmail,
		Code:          ref.Code,
		Status:        string(ref.Status),
		RewardAmount:  ref.RewardAmount,
		RegisteredAt:  ref.RegisteredAt,
		AcceptedAt:    ref.AcceptedAt,
		CreatedAt:     ref.CreatedAt,
		UpdatedAt:     ref.UpdatedAt,
	}
	if ref.ReferredID != nil {
		doc.ReferredID = ref.ReferredID.String()
	}
	return doc
}

func fromReferralDoc(doc referralDoc) (*Referral, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid referral id %q: %w", doc.ID, err)
	}
	referrerID, err := uuid.Parse(doc.ReferrerID)
	if err != nil {
		return nil, fmt.Errorf("invalid referrer id %q: %w", doc.ReferrerID, err)
	}

	ref := &Referral{
		ID:            id,
		ReferrerID:    referrerID,
		ReferredEmail: doc.ReferredEmail,
		Code:          doc.Code,
		Status:        Status(doc.Status),
		RewardAmount:  doc.RewardAmount,
		RegisteredAt:  doc.RegisteredAt,
		AcceptedAt:    doc.AcceptedAt,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.ReferredID != "" {
		referredID, err := uuid.Parse(doc.ReferredID)
		if err != nil {
			return nil, fmt.Errorf("invalid referred id %q: %w", doc.ReferredID, err)
		}
		ref.ReferredID = &referredID
	}
	return ref, nil
}

func (s *MongoStore) Insert(ctx context.Context, ref *Referral) error {
	_, err := s.coll.InsertOne(ctx, toReferralDoc(ref))
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyInvited
	}
	if err != nil {
		return fmt.Errorf("failed to insert referral: %w", err)
	}
	return nil
}

func (s *MongoStore) GetByCode(ctx context.Context, code string) (*Referral, error) {
	return s.findOne(ctx, bson.D{{Key: "code", Value: code}})
}

func (s *MongoStore) GetByReferredID(ctx context.Context, referredID uuid.UUID) (*Referral, error) {
	return s.findOne(ctx, bson.D{{Key: "referred_id", Value: referredID.String()}})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*Referral, error) {
	var doc referralDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReferralNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load referral: %w", err)
	}
	return fromReferralDoc(doc)
}

func (s *MongoStore) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]Referral, error) {
	cursor, err := s.coll.Find(ctx,
		bson.D{{Key: "referrer_id", Value: referrerID.String()}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer cursor.Close(ctx)

	var refs []Referral
	for cursor.Next(ctx) {
		var doc referralDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode referral: %w", err)
		}
		ref, err := fromReferralDoc(doc)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *ref)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referrals: %w", err)
	}
	return refs, nil
}

func (s *MongoStore) MarkRegistered(ctx context.Context, id uuid.UUID, referredID uuid.UUID, at time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(StatusPending)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(StatusRegistered)},
			{Key: "referred_id", Value: referredID.String()},
			{Key: "registered_at", Value: at},
			{Key: "updated_at", Value: at},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark referral registered: %w", err)
	}
	return nil
}

func (s *MongoStore) MarkAccepted(ctx context.Context, id uuid.UUID, reward int64, at time.Time) (bool, error) {
	result, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}, {Key: "status", Value: string(StatusRegistered)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(StatusAccepted)},
			{Key: "reward_amount", Value: reward},
			{Key: "accepted_at", Value: at},
			{Key: "updated_at", Value: at},
		}}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark referral accepted: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (s *MongoStore) StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (Stats, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "referrer_id", Value: referrerID.String()}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "rewards", Value: bson.D{{Key: "$sum", Value: "$reward_amount"}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate referral stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats Stats
	for cursor.Next(ctx) {
		var row struct {
			Status  string `bson:"_id"`
			Count   int64  `bson:"count"`
			Rewards int64  `bson:"rewards"`
		}
		if err := cursor.Decode(&row); err != nil {
			return Stats{}, fmt.Errorf("failed to decode referral stats: %w", err)
		}
		stats.Total += row.Count
		switch Status(row.Status) {
		case StatusPending:
			stats.Pending = row.Count
		case StatusRegistered:
			stats.Registered = row.Count
		case StatusAccepted:
			stats.Accepted = row.Count
			stats.TotalRewards = row.Rewards
		}
	}
	if err := cursor.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to iterate referral stats: %w", err)
	}
	return stats, nil
}
