package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RedirectToken authorizes the post-quiz browser redirect.
// It is a distinct type from VerificationToken so the two cannot be swapped.
type RedirectToken string

// VerificationToken lets a client backend confirm a pass out-of-band
type VerificationToken string

// RedirectPayload binds an attempt to the client's pass/fail destinations
type RedirectPayload struct {
	RedirectPass string `json:"redirectPass"`
	RedirectFail string `json:"redirectFail"`
	AttemptID    string `json:"attemptId"`
	CompanyID    string `json:"companyId"`
	JobID        string `json:"jobId"`
}

// RedirectClaims are JWT claims for redirect tokens
type RedirectClaims struct {
	RedirectPass string `json:"rp"`
	RedirectFail string `json:"rf"`
	AttemptID    string `json:"aid"`
	CompanyID    string `json:"cid"`
	JobID        string `json:"jid"`
	jwt.RegisteredClaims
}

// VerificationPayload is the outcome a verification token vouches for
type VerificationPayload struct {
	AttemptID string    `json:"attemptId"`
	CompanyID string    `json:"companyId"`
	JobID     string    `json:"jobId"`
	Email     string    `json:"email"` // Normalized
	Score     int       `json:"score"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// VerificationClaims are JWT claims for verification tokens
type VerificationClaims struct {
	AttemptID string `json:"aid"`
	CompanyID string `json:"cid"`
	JobID     string `json:"jid"`
	Email     string `json:"eml"`
	Score     int    `json:"scr"`
	jwt.RegisteredClaims
}
