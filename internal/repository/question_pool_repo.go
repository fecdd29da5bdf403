package repository

import (
	"context"
	"fmt"
	"skillgate/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QuestionPoolRepo returns the skills and questions a job's quiz may draw from
type QuestionPoolRepo interface {
	EligibleSkills(ctx context.Context, job *model.Job) ([]model.EligibleSkill, error)
}

// questionDoc is a question as stored by the authoring side
type questionDoc struct {
	model.PoolQuestion `bson:",inline"`
	SkillID            string `bson:"skillId"`
	Active             bool   `bson:"active"`
}

type questionPoolRepo struct {
	skills    *mongo.Collection
	questions *mongo.Collection
}

func NewQuestionPoolRepo(db *mongo.Database) QuestionPoolRepo {
	return &questionPoolRepo{
		skills:    db.Collection("skills"),
		questions: db.Collection("questions"),
	}
}

// EnsureQuestionIndexes indexes questions by skill
func EnsureQuestionIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("questions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "skillId", Value: 1}, {Key: "active", Value: 1}},
		Options: options.Index().SetName("skill_active"),
	})
	if err != nil {
		return fmt.Errorf("failed to create question indexes: %w", err)
	}
	return nil
}

// EligibleSkills keeps the job's skill order. Skills are eligible when active
// and either shared or owned by the job's team; inactive or ungradable
// questions are dropped. Time limits resolve question, then skill, then job default.
func (r *questionPoolRepo) EligibleSkills(ctx context.Context, job *model.Job) ([]model.EligibleSkill, error) {
	if len(job.SkillIDs) == 0 {
		return nil, nil
	}

	cursor, err := r.skills.Find(ctx, bson.M{
		"_id":    bson.M{"$in": job.SkillIDs},
		"active": true,
		"$or": bson.A{
			bson.M{"teamId": job.TeamID},
			bson.M{"teamId": bson.M{"$exists": false}},
			bson.M{"teamId": ""},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find skills: %w", err)
	}
	var skills []model.Skill
	if err := cursor.All(ctx, &skills); err != nil {
		return nil, fmt.Errorf("failed to decode skills: %w", err)
	}
	if len(skills) == 0 {
		return nil, nil
	}

	skillByID := make(map[string]model.Skill, len(skills))
	ids := make([]string, 0, len(skills))
	for _, s := range skills {
		skillByID[s.ID] = s
		ids = append(ids, s.ID)
	}

	cursor, err = r.questions.Find(ctx, bson.M{
		"skillId": bson.M{"$in": ids},
		"active":  true,
	}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find questions: %w", err)
	}
	var docs []questionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}

	bySkill := make(map[string][]model.PoolQuestion)
	for _, d := range docs {
		if !model.ValidQuestionID(d.ID) {
			log.Warn().Str("questionId", d.ID).Msg("Skipping question with an id unusable as an answer key")
			continue
		}
		if !d.Type.Valid() {
			log.Warn().Str("questionId", d.ID).Str("type", string(d.Type)).Msg("Skipping question with unknown type")
			continue
		}
		q := d.PoolQuestion
		if q.TimeLimitSec <= 0 {
			q.TimeLimitSec = skillByID[d.SkillID].TimeLimitSec
		}
		if q.TimeLimitSec <= 0 {
			q.TimeLimitSec = job.DefaultTimeLimitSec
		}
		bySkill[d.SkillID] = append(bySkill[d.SkillID], q)
	}

	var eligible []model.EligibleSkill
	for _, id := range job.SkillIDs {
		skill, ok := skillByID[id]
		if !ok {
			continue
		}
		eligible = append(eligible, model.EligibleSkill{
			SkillID:   skill.ID,
			SkillName: skill.Name,
			Questions: bySkill[id],
		})
	}
	return eligible, nil
}
