package repository

import (
	"context"
	"errors"
	"fmt"
	"skillgate/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateOpenAttempt is returned by Create when the email already has an
// in-progress attempt for the job.
var ErrDuplicateOpenAttempt = errors.New("open attempt already exists")

type AttemptRepo interface {
	Create(ctx context.Context, attempt *model.Attempt) error
	GetByID(ctx context.Context, id string) (*model.Attempt, error)

	// Lookups by (jobId, normalized email)
	FindOpen(ctx context.Context, jobID, email string) (*model.Attempt, error)
	FindLatest(ctx context.Context, jobID, email string, since time.Time) (*model.Attempt, error)
	FindLatestCompleted(ctx context.Context, jobID, email string, since time.Time) (*model.Attempt, error)
	CountInFlight(ctx context.Context, teamID string, since time.Time) (int, error)

	// Conditional writes: false means the attempt was no longer in progress
	SaveAnswer(ctx context.Context, id string, record model.AnswerRecord) (bool, error)
	Complete(ctx context.Context, id string, completion model.Completion) (bool, error)
	Abandon(ctx context.Context, id string, at time.Time) (bool, error)
}

type attemptRepo struct {
	collection *mongo.Collection
}

func NewAttemptRepo(db *mongo.Database) AttemptRepo {
	return &attemptRepo{
		collection: db.Collection("attempts"),
	}
}

// EnsureAttemptIndexes creates the lookup indexes and the one-open-attempt guard
func EnsureAttemptIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("attempts").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jobId", Value: 1}, {Key: "emailNormalized", Value: 1}, {Key: "startedAt", Value: -1}},
			Options: options.Index().SetName("job_email_started"),
		},
		{
			Keys: bson.D{{Key: "jobId", Value: 1}, {Key: "emailNormalized", Value: 1}},
			Options: options.Index().
				SetName("open_attempt_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.AttemptInProgress}),
		},
		{
			Keys:    bson.D{{Key: "teamId", Value: 1}, {Key: "status", Value: 1}, {Key: "startedAt", Value: -1}},
			Options: options.Index().SetName("team_status_started"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create attempt indexes: %w", err)
	}
	return nil
}

func (r *attemptRepo) Create(ctx context.Context, attempt *model.Attempt) error {
	_, err := r.collection.InsertOne(ctx, attempt)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOpenAttempt
		}
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) GetByID(ctx context.Context, id string) (*model.Attempt, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *attemptRepo) FindOpen(ctx context.Context, jobID, email string) (*model.Attempt, error) {
	filter := bson.M{
		"jobId":           jobID,
		"emailNormalized": email,
		"status":          model.AttemptInProgress,
	}
	return r.findOne(ctx, filter, newestFirst())
}

func (r *attemptRepo) FindLatest(ctx context.Context, jobID, email string, since time.Time) (*model.Attempt, error) {
	filter := bson.M{
		"jobId":           jobID,
		"emailNormalized": email,
		"startedAt":       bson.M{"$gte": since},
	}
	return r.findOne(ctx, filter, newestFirst())
}

func (r *attemptRepo) FindLatestCompleted(ctx context.Context, jobID, email string, since time.Time) (*model.Attempt, error) {
	filter := bson.M{
		"jobId":           jobID,
		"emailNormalized": email,
		"status":          model.AttemptCompleted,
		"completedAt":     bson.M{"$gte": since},
	}
	return r.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "completedAt", Value: -1}}))
}

func (r *attemptRepo) CountInFlight(ctx context.Context, teamID string, since time.Time) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"teamId":    teamID,
		"status":    model.AttemptInProgress,
		"startedAt": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight attempts: %w", err)
	}
	return int(n), nil
}

func (r *attemptRepo) SaveAnswer(ctx context.Context, id string, record model.AnswerRecord) (bool, error) {
	if !model.ValidQuestionID(record.QuestionID) {
		return false, fmt.Errorf("failed to save answer: invalid question id %q", record.QuestionID)
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.AttemptInProgress},
		bson.M{"$set": bson.M{"answers." + record.QuestionID: record}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to save answer: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *attemptRepo) Complete(ctx context.Context, id string, c model.Completion) (bool, error) {
	set := bson.M{
		"status":      model.AttemptCompleted,
		"completedAt": c.CompletedAt,
		"score":       c.Score,
		"passed":      c.Passed,
		"answers":     c.Answers,
	}
	if c.VerificationToken != "" {
		set["verificationToken"] = c.VerificationToken
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.AttemptInProgress, "completedAt": nil},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete attempt: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *attemptRepo) Abandon(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.AttemptInProgress},
		bson.M{"$set": bson.M{"status": model.AttemptAbandoned, "abandonedAt": at}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to abandon attempt: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *attemptRepo) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*model.Attempt, error) {
	var attempt model.Attempt
	var err error
	if opts != nil {
		err = r.collection.FindOne(ctx, filter, opts).Decode(&attempt)
	} else {
		err = r.collection.FindOne(ctx, filter).Decode(&attempt)
	}
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find attempt: %w", err)
	}
	if attempt.Answers == nil {
		attempt.Answers = make(map[string]model.AnswerRecord)
	}
	return &attempt, nil
}

func newestFirst() *options.FindOneOptions {
	return options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
}
