package finance

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Summary is the headline revenue report. Amounts are in the smallest
// currency unit.
type Summary struct {
	TotalRevenue   int64          `json:"totalRevenue"`
	CompletedCount int64          `json:"completedCount"`
	PendingAmount  int64          `json:"pendingAmount"`
	PendingCount   int64          `json:"pendingCount"`
	Monthly        []MonthlyTotal `json:"monthly"`
}

// MonthlyTotal is one month's completed revenue.
type MonthlyTotal struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"`
	Revenue int64 `json:"revenue"`
	Count   int64 `json:"count"`
}

// Reporter computes revenue reports from the payment order collection.
type Reporter struct {
	orders *mongo.Collection
}

// NewReporter creates a Reporter over db's payment_orders collection.
func NewReporter(db *mongo.Database) *Reporter {
	return &Reporter{orders: db.Collection("payment_orders")}
}

// Summary aggregates total and pending revenue plus a monthly breakdown
// for completed orders since the given time. A zero since reports over all
// history.
func (r *Reporter) Summary(ctx context.Context, since time.Time) (Summary, error) {
	var summary Summary

	totals, err := r.statusTotals(ctx, since)
	if err != nil {
		return Summary{}, err
	}
	summary.TotalRevenue = totals["completed"].amount
	summary.CompletedCount = totals["completed"].count
	summary.PendingAmount = totals["created"].amount
	summary.PendingCount = totals["created"].count

	summary.Monthly, err = r.monthlyRevenue(ctx, since)
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

type statusTotal struct {
	amount int64
	count  int64
}

func (r *Reporter) statusTotals(ctx context.Context, since time.Time) (map[string]statusTotal, error) {
	cursor, err := r.orders.Aggregate(ctx, statusTotalsPipeline(since))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue totals: %w", err)
	}
	defer cursor.Close(ctx)

	totals := make(map[string]statusTotal)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Amount int64  `bson:"amount"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode revenue total: %w", err)
		}
		totals[row.Status] = statusTotal{amount: row.Amount, count: row.Count}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revenue totals: %w", err)
	}
	return totals, nil
}

func (r *Reporter) monthlyRevenue(ctx context.Context, since time.Time) ([]MonthlyTotal, error) {
	cursor, err := r.orders.Aggregate(ctx, monthlyRevenuePipeline(since))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly revenue: %w", err)
	}
	defer cursor.Close(ctx)

	var months []MonthlyTotal
	for cursor.Next(ctx) {
		var row struct {
			ID struct {
				Year  int `bson:"year"`
				Month int `bson:"month"`
			} `bson:"_id"`
			Revenue int64 `bson:"revenue"`
			Count   int64 `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode monthly revenue: %w", err)
		}
		months = append(months, MonthlyTotal{
			Year:    row.ID.Year,
			Month:   row.ID.Month,
			Revenue: row.Revenue,
			Count:   row.Count,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly revenue: %w", err)
	}
	return months, nil
}

// statusTotalsPipeline groups order amounts and counts by status.
func statusTotalsPipeline(since time.Time) mongo.Pipeline {
	match := bson.D{}
	if !since.IsZero() {
		match = append(match, bson.E{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}})
	}
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "amount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

// monthlyRevenuePipeline groups completed order amounts by calendar month,
// oldest first.
func monthlyRevenuePipeline(since time.Time) mongo.Pipeline {
	match := bson.D{{Key: "status", Value: "completed"}}
	if !since.IsZero() {
		match = append(match, bson.E{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}})
	}
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$created_at"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$created_at"}}},
			}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "_id.year", Value: 1},
			{Key: "_id.month", Value: 1},
		}}},
	}
}
