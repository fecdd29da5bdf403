package model

import "time"

// StartRequest is the request body for starting (or resuming) a quiz
type StartRequest struct {
	Email        string `json:"email"`
	JobID        string `json:"jobId"`
	RedirectPass string `json:"redirectPass"`
	RedirectFail string `json:"redirectFail"`

	// Filled from the HTTP request, not the body
	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
}

// StartResponse is returned for both a new and a resumed attempt
type StartResponse struct {
	AttemptID     string           `json:"attemptId"`
	SessionToken  string           `json:"sessionToken"`
	RedirectToken RedirectToken    `json:"redirectToken"`
	Questions     []PublicQuestion `json:"questions"`
	Answers       []AnswerRecord   `json:"answers"` // Saved progress, in question order
	TimeLimitSec  int              `json:"timeLimitSec,omitempty"`
	StartedAt     time.Time        `json:"startedAt"`
	Resumed       bool             `json:"resumed"`
}

// ProgressRequest is the request body for saving one answer
type ProgressRequest struct {
	QuestionID string      `json:"questionId"`
	Answer     AnswerValue `json:"answer"`
}

// SubmitRequest is the request body for finishing an attempt
type SubmitRequest struct {
	Answers []SubmittedAnswer `json:"answers"`
}

// SubmitResponse is the candidate-facing result of a submit
type SubmitResponse struct {
	Passed      bool   `json:"passed"`
	Score       int    `json:"score"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// StatusResponse is returned by the status lookup
type StatusResponse struct {
	Status QuizStatus `json:"status"`
}

// VerifyRequest is the body of a backend verification call
type VerifyRequest struct {
	Email string            `json:"email"`
	JobID string            `json:"jobId"`
	Token VerificationToken `json:"token,omitempty"` // Optional; must name the same attempt when set
}

// VerifyResponse confirms a candidate's outcome to a client backend
type VerifyResponse struct {
	Verified    bool       `json:"verified"`
	Passed      bool       `json:"passed"`
	Score       int        `json:"score"`
	AttemptID   string     `json:"attemptId,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AttemptEvent is pushed to a team's activity feed
type AttemptEvent struct {
	AttemptID string     `json:"attemptId"`
	JobID     string     `json:"jobId"`
	Email     string     `json:"email"`
	Status    QuizStatus `json:"status"`
	Score     *int       `json:"score,omitempty"`
	At        time.Time  `json:"at"`
}
