package repository

import (
	"context"
	"fmt"
	"skillgate/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TeamRepo reads teams and their jobs. Both are managed by the dashboard, not this service.
type TeamRepo interface {
	GetTeam(ctx context.Context, id string) (*model.Team, error)
	GetTeamByAPIKeyHash(ctx context.Context, hash string) (*model.Team, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

type teamRepo struct {
	teams *mongo.Collection
	jobs  *mongo.Collection
}

func NewTeamRepo(db *mongo.Database) TeamRepo {
	return &teamRepo{
		teams: db.Collection("teams"),
		jobs:  db.Collection("jobs"),
	}
}

// EnsureTeamIndexes makes API key lookups unique
func EnsureTeamIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("teams").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "apiKeyHash", Value: 1}},
		Options: options.Index().SetName("api_key_hash_unique").SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create team indexes: %w", err)
	}
	return nil
}

func (r *teamRepo) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var team model.Team
	err := r.teams.FindOne(ctx, bson.M{"_id": id}).Decode(&team)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

func (r *teamRepo) GetTeamByAPIKeyHash(ctx context.Context, hash string) (*model.Team, error) {
	var team model.Team
	err := r.teams.FindOne(ctx, bson.M{"apiKeyHash": hash}).Decode(&team)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team by api key: %w", err)
	}
	return &team, nil
}

func (r *teamRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := r.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}
