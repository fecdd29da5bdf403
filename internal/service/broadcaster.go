package service

// Feed event types pushed to team subscribers
const (
	EventAttemptStarted   = "attempt_started"
	EventAttemptCompleted = "attempt_completed"
	EventAttemptAbandoned = "attempt_abandoned"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToTeam(teamID string, msgType string, payload interface{})
}
