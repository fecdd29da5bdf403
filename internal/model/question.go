package model

import "strings"

// QuestionType defines how a question is answered and graded
type QuestionType string

const (
	QuestionTypeMultipleChoice  QuestionType = "multiple_choice"   // Single correct option, exact match
	QuestionTypeFillBlankBlocks QuestionType = "fill_blank_blocks" // Ordered blanks filled from a block pool
)

// Valid reports whether t is a question type this service can grade
func (t QuestionType) Valid() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeFillBlankBlocks
}

// QuestionConfig is the type-specific part of a question.
// Correct answers (CorrectOption, Blanks) must never leave the server.
type QuestionConfig struct {
	// multiple_choice
	Options       []string `json:"options,omitempty" bson:"options,omitempty"`
	CorrectOption string   `json:"correctOption,omitempty" bson:"correctOption,omitempty"`

	// fill_blank_blocks
	Segments    []string `json:"segments,omitempty" bson:"segments,omitempty"`       // Text around the blanks
	Blanks      []string `json:"blanks,omitempty" bson:"blanks,omitempty"`           // Expected value per blank, in blank order
	ExtraValues []string `json:"extraValues,omitempty" bson:"extraValues,omitempty"` // Decoy blocks
	OptionPool  []string `json:"optionPool,omitempty" bson:"optionPool,omitempty"`   // Shuffled Blanks+ExtraValues, set per attempt
}

// Clone returns a deep copy so a snapshot never aliases pool data
func (c QuestionConfig) Clone() QuestionConfig {
	return QuestionConfig{
		Options:       cloneStrings(c.Options),
		CorrectOption: c.CorrectOption,
		Segments:      cloneStrings(c.Segments),
		Blanks:        cloneStrings(c.Blanks),
		ExtraValues:   cloneStrings(c.ExtraValues),
		OptionPool:    cloneStrings(c.OptionPool),
	}
}

// ValidQuestionID reports whether id can key an attempt's answers map.
// Answers are stored under "answers.<id>", so dots, a leading '$' and NUL are rejected.
func ValidQuestionID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "$") && !strings.ContainsAny(id, ".\x00")
}

// PoolQuestion is a question candidate returned by the question pool
type PoolQuestion struct {
	ID           string         `json:"id" bson:"_id"`
	Type         QuestionType   `json:"type" bson:"type"`
	Prompt       string         `json:"prompt" bson:"prompt"`
	Config       QuestionConfig `json:"config" bson:"config"`
	ImageURL     string         `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Weight       float64        `json:"weight" bson:"weight"`
	TimeLimitSec int            `json:"timeLimitSec,omitempty" bson:"timeLimitSec,omitempty"` // Resolved: question, else skill, else job default
}

// EligibleSkill is one skill the pool currently permits for a job, with its candidates
type EligibleSkill struct {
	SkillID   string         `json:"skillId"`
	SkillName string         `json:"skillName"`
	Questions []PoolQuestion `json:"questions"`
}

// QuestionSnapshot is the frozen copy of a question as shown in one attempt.
// Scoring always runs against the snapshot, never against live question data.
type QuestionSnapshot struct {
	ID           string         `json:"id" bson:"id"`
	Type         QuestionType   `json:"type" bson:"type"`
	Prompt       string         `json:"prompt" bson:"prompt"`
	Config       QuestionConfig `json:"config" bson:"config"`
	ImageURL     string         `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	TimeLimitSec int            `json:"timeLimitSec,omitempty" bson:"timeLimitSec,omitempty"`
	SkillID      string         `json:"skillId" bson:"skillId"`
	SkillName    string         `json:"skillName" bson:"skillName"`
	Weight       float64        `json:"weight" bson:"weight"`
}

// PublicQuestion is what the quiz UI receives: no correct answers
type PublicQuestion struct {
	ID           string       `json:"id"`
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Options      []string     `json:"options,omitempty"` // multiple_choice options or fill_blank_blocks block pool
	Segments     []string     `json:"segments,omitempty"`
	BlankCount   int          `json:"blankCount,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	TimeLimitSec int          `json:"timeLimitSec,omitempty"`
	SkillName    string       `json:"skillName"`
}

// Public projects the snapshot for the candidate
func (q QuestionSnapshot) Public() PublicQuestion {
	pq := PublicQuestion{
		ID:           q.ID,
		Type:         q.Type,
		Prompt:       q.Prompt,
		ImageURL:     q.ImageURL,
		TimeLimitSec: q.TimeLimitSec,
		SkillName:    q.SkillName,
	}
	switch q.Type {
	case QuestionTypeMultipleChoice:
		pq.Options = cloneStrings(q.Config.Options)
	case QuestionTypeFillBlankBlocks:
		pq.Options = cloneStrings(q.Config.OptionPool)
		pq.Segments = cloneStrings(q.Config.Segments)
		pq.BlankCount = len(q.Config.Blanks)
	}
	return pq
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
