package repository

import (
	"context"
	"fmt"
	"skillgate/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsageRepo tracks billable applications per team billing cycle
type UsageRepo interface {
	CurrentUsage(ctx context.Context, team *model.Team) (*model.Usage, error)
	IncrementUsage(ctx context.Context, team *model.Team) error
}

type usageRepo struct {
	collection *mongo.Collection
}

func NewUsageRepo(db *mongo.Database) UsageRepo {
	return &usageRepo{
		collection: db.Collection("usage"),
	}
}

// EnsureUsageIndexes makes one usage document per team cycle
func EnsureUsageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("usage").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "teamId", Value: 1}, {Key: "cycleStart", Value: 1}},
		Options: options.Index().SetName("team_cycle_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create usage indexes: %w", err)
	}
	return nil
}

func (r *usageRepo) CurrentUsage(ctx context.Context, team *model.Team) (*model.Usage, error) {
	start, end := billingCycle(team)

	var usage model.Usage
	err := r.collection.FindOne(ctx, bson.M{"teamId": team.ID, "cycleStart": start}).Decode(&usage)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &model.Usage{TeamID: team.ID, CycleStart: start, CycleEnd: end}, nil
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return &usage, nil
}

func (r *usageRepo) IncrementUsage(ctx context.Context, team *model.Team) error {
	start, end := billingCycle(team)

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"teamId": team.ID, "cycleStart": start},
		bson.M{
			"$inc":         bson.M{"applications": 1},
			"$setOnInsert": bson.M{"cycleEnd": end},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// billingCycle uses the subscription period, falling back to the calendar month (UTC)
func billingCycle(team *model.Team) (time.Time, time.Time) {
	s := team.Subscription
	if !s.CurrentPeriodStart.IsZero() && !s.CurrentPeriodEnd.IsZero() {
		return s.CurrentPeriodStart.UTC(), s.CurrentPeriodEnd.UTC()
	}
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
