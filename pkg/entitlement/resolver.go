package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// OwnerResolver maps an authenticated principal to the clinic owner whose
// subscription pays for the request.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, p Principal) (uuid.UUID, error)
}

// MongoOwnerResolver resolves staff principals through the staff and
// hospitals collections: staff → hospital → owner. Owner and admin
// principals resolve to themselves.
type MongoOwnerResolver struct {
	staff     *mongo.Collection
	hospitals *mongo.Collection
}

// NewMongoOwnerResolver creates a resolver over db's staff and hospitals
// collections.
func NewMongoOwnerResolver(db *mongo.Database) *MongoOwnerResolver {
	return &MongoOwnerResolver{
		staff:     db.Collection("staff"),
		hospitals: db.Collection("hospitals"),
	}
}

func (r *MongoOwnerResolver) ResolveOwner(ctx context.Context, p Principal) (uuid.UUID, error) {
	if p.Role != RoleStaff {
		return p.ID, nil
	}

	var staffDoc struct {
		HospitalID string `bson:"hospital_id"`
	}
	err := r.staff.FindOne(ctx, bson.D{{Key: "_id", Value: p.ID.String()}}).Decode(&staffDoc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return uuid.Nil, ErrOwnerNotResolved
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load staff record: %w", err)
	}

	var hospitalDoc struct {
		OwnerID string `bson:"owner_id"`
	}
	err = r.hospitals.FindOne(ctx, bson.D{{Key: "_id", Value: staffDoc.HospitalID}}).Decode(&hospitalDoc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return uuid.Nil, ErrOwnerNotResolved
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load hospital record: %w", err)
	}

	ownerID, err := uuid.Parse(hospitalDoc.OwnerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid hospital owner id %q: %w", hospitalDoc.OwnerID, err)
	}
	return ownerID, nil
}
