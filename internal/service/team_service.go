package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"skillgate/internal/model"
	"skillgate/internal/repository"
)

var ErrInvalidAPIKey = errors.New("invalid api key")

// TeamService authenticates client backends by team API key
type TeamService struct {
	teamRepo repository.TeamRepo
}

// NewTeamService creates a new team service
func NewTeamService(teamRepo repository.TeamRepo) *TeamService {
	return &TeamService{teamRepo: teamRepo}
}

// AuthenticateTeam resolves an API key to its team
func (s *TeamService) AuthenticateTeam(ctx context.Context, apiKey string) (*model.Team, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}
	team, err := s.teamRepo.GetTeamByAPIKeyHash(ctx, HashAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate team: %w", err)
	}
	if team == nil {
		return nil, ErrInvalidAPIKey
	}
	return team, nil
}

// HashAPIKey is the stored form of a team API key
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
