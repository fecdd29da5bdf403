package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"skillgate/internal/config"
	"skillgate/internal/logger"
	"skillgate/internal/model"
	"skillgate/internal/repository"
	"skillgate/internal/service"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var rootCmd = &cobra.Command{
	Use:          "skillgate-seed",
	Short:        "Seed a demo team, job, skills and questions",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().String("api-key", "", "Team API key to store (random when empty)")
	rootCmd.Flags().String("team", "team_demo", "Team id")
	rootCmd.Flags().String("job", "job_backend_dev", "Job id")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// seedQuestion is a question as the authoring side stores it
type seedQuestion struct {
	model.PoolQuestion `bson:",inline"`
	SkillID            string `bson:"skillId"`
	Active             bool   `bson:"active"`
}

func run(cmd *cobra.Command) error {
	cfg := config.Read()
	logger.Init(cfg.LogLevel, true)

	teamID, _ := cmd.Flags().GetString("team")
	jobID, _ := cmd.Flags().GetString("job")
	apiKey, _ := cmd.Flags().GetString("api-key")
	if apiKey == "" {
		b := make([]byte, 24)
		if _, err := rand.Read(b); err != nil {
			return err
		}
		apiKey = "sk_" + hex.EncodeToString(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureTeamIndexes(ctx, db); err != nil {
		return err
	}

	now := time.Now().UTC()
	team := model.Team{
		ID:         teamID,
		Name:       "Demo Co",
		APIKeyHash: service.HashAPIKey(apiKey),
		Subscription: model.Subscription{
			Status:             model.SubscriptionActive,
			CurrentPeriodStart: now.AddDate(0, 0, -1),
			CurrentPeriodEnd:   now.AddDate(0, 1, -1),
		},
		Billing:   model.BillingSettings{UsageCapEnabled: true, UsageCap: 100},
		CreatedAt: now,
	}

	skills := []model.Skill{
		{ID: "skill_go", Name: "Go", TimeLimitSec: 60, Active: true},
		{ID: "skill_sql", TeamID: teamID, Name: "SQL", Active: true},
	}

	questions := []seedQuestion{
		{SkillID: "skill_go", Active: true, PoolQuestion: model.PoolQuestion{
			ID: "q_go_channels", Type: model.QuestionTypeMultipleChoice, Weight: 3,
			Prompt: "What does a receive from a closed, empty channel return?",
			Config: model.QuestionConfig{
				Options:       []string{"The zero value", "It blocks forever", "It panics", "nil error"},
				CorrectOption: "The zero value",
			},
		}},
		{SkillID: "skill_go", Active: true, PoolQuestion: model.PoolQuestion{
			ID: "q_go_range", Type: model.QuestionTypeFillBlankBlocks, Weight: 2,
			Prompt: "Complete the loop over a slice",
			Config: model.QuestionConfig{
				Segments:    []string{"", " ", ", v := range xs {", "}"},
				Blanks:      []string{"for", "i"},
				ExtraValues: []string{"while", "each"},
			},
		}},
		{SkillID: "skill_go", Active: true, PoolQuestion: model.PoolQuestion{
			ID: "q_go_defer", Type: model.QuestionTypeMultipleChoice, Weight: 1, TimeLimitSec: 45,
			Prompt: "In which order do deferred calls run?",
			Config: model.QuestionConfig{
				Options:       []string{"LIFO", "FIFO", "Random", "Declaration order"},
				CorrectOption: "LIFO",
			},
		}},
		{SkillID: "skill_sql", Active: true, PoolQuestion: model.PoolQuestion{
			ID: "q_sql_join", Type: model.QuestionTypeMultipleChoice, Weight: 2,
			Prompt: "Which join keeps unmatched rows from the left table?",
			Config: model.QuestionConfig{
				Options:       []string{"LEFT JOIN", "INNER JOIN", "CROSS JOIN"},
				CorrectOption: "LEFT JOIN",
			},
		}},
		{SkillID: "skill_sql", Active: true, PoolQuestion: model.PoolQuestion{
			ID: "q_sql_select", Type: model.QuestionTypeFillBlankBlocks, Weight: 1,
			Prompt: "Complete the query",
			Config: model.QuestionConfig{
				Segments:    []string{"", " * ", " users ", " id = 1"},
				Blanks:      []string{"SELECT", "FROM", "WHERE"},
				ExtraValues: []string{"INTO", "HAVING"},
			},
		}},
	}

	job := model.Job{
		ID:            jobID,
		TeamID:        teamID,
		Title:         "Backend Developer",
		SkillIDs:      []string{"skill_go", "skill_sql"},
		PassThreshold: 70,
		QuestionCount: model.QuestionCountPolicy{
			Mode:     model.QuestionCountPerSkill,
			PerSkill: 2,
			Min:      2,
			Max:      10,
		},
		DefaultTimeLimitSec: 90,
		Active:              true,
		CreatedAt:           now,
	}

	upsert := options.Replace().SetUpsert(true)
	if _, err := db.Collection("teams").ReplaceOne(ctx, bson.M{"_id": team.ID}, team, upsert); err != nil {
		return fmt.Errorf("failed to seed team: %w", err)
	}
	for _, s := range skills {
		if _, err := db.Collection("skills").ReplaceOne(ctx, bson.M{"_id": s.ID}, s, upsert); err != nil {
			return fmt.Errorf("failed to seed skill %s: %w", s.ID, err)
		}
	}
	for _, q := range questions {
		if _, err := db.Collection("questions").ReplaceOne(ctx, bson.M{"_id": q.ID}, q, upsert); err != nil {
			return fmt.Errorf("failed to seed question %s: %w", q.ID, err)
		}
	}
	if _, err := db.Collection("jobs").ReplaceOne(ctx, bson.M{"_id": job.ID}, job, upsert); err != nil {
		return fmt.Errorf("failed to seed job: %w", err)
	}

	log.Info().
		Str("teamId", team.ID).
		Str("jobId", job.ID).
		Int("skills", len(skills)).
		Int("questions", len(questions)).
		Msg("Seed complete")
	fmt.Printf("Team API key: %s\n", apiKey)
	return nil
}
