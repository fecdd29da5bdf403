package middleware

import (
	"context"
	"errors"
	"net/http"
	"skillgate/internal/model"
	"skillgate/internal/service"
	"strings"

	"github.com/rs/zerolog/hlog"
)

type contextKey string

const TeamIDKey contextKey = "teamId"

// TeamAuthenticator resolves a team API key
type TeamAuthenticator interface {
	AuthenticateTeam(ctx context.Context, apiKey string) (*model.Team, error)
}

// AuthMiddleware provides team API key authentication
type AuthMiddleware struct {
	teams TeamAuthenticator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(teams TeamAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{teams: teams}
}

// RequireTeam validates the team API key from the Authorization header
func (m *AuthMiddleware) RequireTeam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractBearerToken(r)
		if key == "" {
			writeUnauthorized(w, "missing authorization header")
			return
		}

		team, err := m.teams.AuthenticateTeam(r.Context(), key)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidAPIKey) {
				hlog.FromRequest(r).Error().Err(err).Msg("Team authentication failed")
			}
			writeUnauthorized(w, "invalid api key")
			return
		}

		ctx := context.WithValue(r.Context(), TeamIDKey, team.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTeamID extracts team ID from context
func GetTeamID(ctx context.Context) string {
	if v, ok := ctx.Value(TeamIDKey).(string); ok {
		return v
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
