package model

import (
	"strings"
	"time"
)

// AttemptStatus is the stored lifecycle phase of an attempt.
// It mirrors CompletedAt/AbandonedAt so the store can index open attempts.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// QuizStatus is the candidate-facing state for an email + job pair
type QuizStatus string

const (
	QuizStatusNone       QuizStatus = "NONE"
	QuizStatusInProgress QuizStatus = "IN_PROGRESS"
	QuizStatusPassed     QuizStatus = "PASSED"
	QuizStatusFailed     QuizStatus = "FAILED"
	QuizStatusAbandoned  QuizStatus = "ABANDONED"
)

// Device is the request metadata captured when an attempt starts
type Device struct {
	UserAgent string `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	ClientIP  string `json:"clientIp,omitempty" bson:"clientIp,omitempty"`
}

// Attempt is one applicant's pass through one job's quiz
type Attempt struct {
	ID                string                  `json:"id" bson:"_id"`
	SessionToken      string                  `json:"-" bson:"sessionToken"`
	TeamID            string                  `json:"teamId" bson:"teamId"`
	JobID             string                  `json:"jobId" bson:"jobId"`
	Email             string                  `json:"email" bson:"email"`
	EmailNormalized   string                  `json:"-" bson:"emailNormalized"`
	Status            AttemptStatus           `json:"status" bson:"status"`
	PassThreshold     int                     `json:"passThreshold" bson:"passThreshold"` // Copied from the job at creation
	Questions         []QuestionSnapshot      `json:"-" bson:"questions"`
	Answers           map[string]AnswerRecord `json:"-" bson:"answers"` // Keyed by question id
	StartedAt         time.Time               `json:"startedAt" bson:"startedAt"`
	CompletedAt       *time.Time              `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	AbandonedAt       *time.Time              `json:"abandonedAt,omitempty" bson:"abandonedAt,omitempty"`
	Score             *int                    `json:"score,omitempty" bson:"score,omitempty"`
	Passed            *bool                   `json:"passed,omitempty" bson:"passed,omitempty"`
	RedirectToken     string                  `json:"-" bson:"redirectToken,omitempty"`
	VerificationToken string                  `json:"-" bson:"verificationToken,omitempty"`
	Device            Device                  `json:"device" bson:"device"`
}

// IsInProgress is true iff neither CompletedAt nor AbandonedAt is set
func (a *Attempt) IsInProgress() bool {
	return a.CompletedAt == nil && a.AbandonedAt == nil
}

// QuizStatus maps the stored attempt onto the candidate-facing state
func (a *Attempt) QuizStatus() QuizStatus {
	switch {
	case a.CompletedAt != nil:
		if a.Passed != nil && *a.Passed {
			return QuizStatusPassed
		}
		return QuizStatusFailed
	case a.AbandonedAt != nil:
		return QuizStatusAbandoned
	default:
		return QuizStatusInProgress
	}
}

// Question finds a snapshot question by id
func (a *Attempt) Question(id string) (QuestionSnapshot, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return QuestionSnapshot{}, false
}

// TotalTimeLimitSec sums the per-question limits; 0 means untimed
func (a *Attempt) TotalTimeLimitSec() int {
	total := 0
	for _, q := range a.Questions {
		total += q.TimeLimitSec
	}
	return total
}

// Completion is everything written when an attempt is finalized
type Completion struct {
	CompletedAt       time.Time
	Score             int
	Passed            bool
	Answers           map[string]AnswerRecord
	VerificationToken string
}

// NormalizeEmail is the matching form of an applicant email
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
