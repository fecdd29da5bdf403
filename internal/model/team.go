package model

import "time"

// Subscription statuses that allow new attempts
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

// Subscription is the billing state the team's plan is in
type Subscription struct {
	Status             string    `json:"status" bson:"status"`
	CurrentPeriodStart time.Time `json:"currentPeriodStart" bson:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd" bson:"currentPeriodEnd"`
}

// IsActive reports whether the subscription currently permits new attempts
func (s Subscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionActive && s.Status != SubscriptionTrialing {
		return false
	}
	return s.CurrentPeriodEnd.IsZero() || now.Before(s.CurrentPeriodEnd)
}

// BillingSettings configures the opt-in usage cap
type BillingSettings struct {
	UsageCapEnabled bool `json:"usageCapEnabled" bson:"usageCapEnabled"`
	UsageCap        int  `json:"usageCap" bson:"usageCap"` // Applications per billing cycle
}

// Team is a client company
type Team struct {
	ID           string          `json:"id" bson:"_id"`
	Name         string          `json:"name" bson:"name"`
	APIKeyHash   string          `json:"-" bson:"apiKeyHash"` // hex SHA-256 of the team API key
	Subscription Subscription    `json:"subscription" bson:"subscription"`
	Billing      BillingSettings `json:"billing" bson:"billing"`
	CreatedAt    time.Time       `json:"createdAt" bson:"createdAt"`
}

// Question count modes
const (
	QuestionCountFixed    = "fixed"
	QuestionCountPerSkill = "per_skill"
)

// QuestionCountPolicy decides how many questions an attempt gets
type QuestionCountPolicy struct {
	Mode     string `json:"mode" bson:"mode"`                             // fixed | per_skill
	Count    int    `json:"count,omitempty" bson:"count,omitempty"`       // fixed
	PerSkill int    `json:"perSkill,omitempty" bson:"perSkill,omitempty"` // per_skill
	Min      int    `json:"min,omitempty" bson:"min,omitempty"`
	Max      int    `json:"max,omitempty" bson:"max,omitempty"`
}

// Job is an opening a team screens applicants for
type Job struct {
	ID                  string              `json:"id" bson:"_id"`
	TeamID              string              `json:"teamId" bson:"teamId"`
	Title               string              `json:"title" bson:"title"`
	SkillIDs            []string            `json:"skillIds" bson:"skillIds"`
	PassThreshold       int                 `json:"passThreshold" bson:"passThreshold"` // Percent, 0-100
	QuestionCount       QuestionCountPolicy `json:"questionCount" bson:"questionCount"`
	DefaultTimeLimitSec int                 `json:"defaultTimeLimitSec" bson:"defaultTimeLimitSec"`
	Active              bool                `json:"active" bson:"active"`
	CreatedAt           time.Time           `json:"createdAt" bson:"createdAt"`
}

// Skill groups questions; only read here, authored elsewhere
type Skill struct {
	ID           string `json:"id" bson:"_id"`
	TeamID       string `json:"teamId,omitempty" bson:"teamId,omitempty"` // Empty for shared library skills
	Name         string `json:"name" bson:"name"`
	TimeLimitSec int    `json:"timeLimitSec,omitempty" bson:"timeLimitSec,omitempty"`
	Active       bool   `json:"active" bson:"active"`
}

// Usage is the billing usage of a team in its current cycle
type Usage struct {
	TeamID             string    `json:"teamId" bson:"teamId"`
	CycleStart         time.Time `json:"cycleStart" bson:"cycleStart"`
	CycleEnd           time.Time `json:"cycleEnd" bson:"cycleEnd"`
	ActualApplications int       `json:"actualApplications" bson:"applications"`
}

// RateLimitStatus is the answer of the rate/quota guard
type RateLimitStatus struct {
	Limited bool       `json:"limited"`
	ResetAt *time.Time `json:"resetAt,omitempty"`
}
