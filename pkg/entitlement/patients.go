package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoPatientCounter returns a PatientCounter over db's patients
// collection. Soft-deleted patients do not count against the quota.
func MongoPatientCounter(db *mongo.Database) PatientCounter {
	coll := db.Collection("patients")
	return func(ctx context.Context, ownerID uuid.UUID) (int64, error) {
		count, err := coll.CountDocuments(ctx, bson.D{
			{Key: "owner_id", Value: ownerID.String()},
			{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}},
		})
		if err != nil {
			return 0, fmt.Errorf("failed to count patients: %w", err)
		}
		return count, nil
	}
}
