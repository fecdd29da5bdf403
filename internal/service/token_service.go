package service

import (
	"errors"
	"fmt"
	"net/url"
	"skillgate/internal/model"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer             = "skillgate"
	redirectTokenAudience   = "skillgate:redirect"
	verifyTokenAudience     = "skillgate:verification"
	redirectStatusPassed    = "passed"
	redirectStatusFailed    = "failed"
	redirectStatusParameter = "status"
	redirectScoreParameter  = "score"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRedirectURL = errors.New("redirect url must be an absolute https url")
)

// TokenService signs and verifies the two attempt tokens: the redirect token
// for the browser hop and the verification token for client backends.
type TokenService struct {
	secret          []byte
	redirectTTL     time.Duration
	verificationTTL time.Duration
	now             func() time.Time
}

// NewTokenService creates a new token service. redirectTTL should be the attempt window.
func NewTokenService(secret string, redirectTTL, verificationTTL time.Duration) *TokenService {
	return &TokenService{
		secret:          []byte(secret),
		redirectTTL:     redirectTTL,
		verificationTTL: verificationTTL,
		now:             time.Now,
	}
}

// SignRedirect validates both destinations and signs the payload
func (s *TokenService) SignRedirect(p model.RedirectPayload) (model.RedirectToken, error) {
	if err := ValidateRedirectURL(p.RedirectPass); err != nil {
		return "", err
	}
	if err := ValidateRedirectURL(p.RedirectFail); err != nil {
		return "", err
	}

	now := s.now()
	claims := &model.RedirectClaims{
		RedirectPass: p.RedirectPass,
		RedirectFail: p.RedirectFail,
		AttemptID:    p.AttemptID,
		CompanyID:    p.CompanyID,
		JobID:        p.JobID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.AttemptID,
			Audience:  jwt.ClaimStrings{redirectTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.redirectTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign redirect token: %w", err)
	}
	return model.RedirectToken(signed), nil
}

// VerifyRedirect checks signature, audience and expiry, and re-validates the destinations
func (s *TokenService) VerifyRedirect(token model.RedirectToken) (*model.RedirectPayload, error) {
	claims := &model.RedirectClaims{}
	if err := s.parse(string(token), claims, redirectTokenAudience); err != nil {
		return nil, err
	}
	if ValidateRedirectURL(claims.RedirectPass) != nil || ValidateRedirectURL(claims.RedirectFail) != nil {
		return nil, ErrInvalidToken
	}

	return &model.RedirectPayload{
		RedirectPass: claims.RedirectPass,
		RedirectFail: claims.RedirectFail,
		AttemptID:    claims.AttemptID,
		CompanyID:    claims.CompanyID,
		JobID:        claims.JobID,
	}, nil
}

// SignVerification issues the backend verification token for a passed attempt
func (s *TokenService) SignVerification(p model.VerificationPayload) (model.VerificationToken, error) {
	issued := p.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	claims := &model.VerificationClaims{
		AttemptID: p.AttemptID,
		CompanyID: p.CompanyID,
		JobID:     p.JobID,
		Email:     p.Email,
		Score:     p.Score,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.AttemptID,
			Audience:  jwt.ClaimStrings{verifyTokenAudience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.verificationTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}
	return model.VerificationToken(signed), nil
}

// VerifyVerification checks a verification token
func (s *TokenService) VerifyVerification(token model.VerificationToken) (*model.VerificationPayload, error) {
	claims := &model.VerificationClaims{}
	if err := s.parse(string(token), claims, verifyTokenAudience); err != nil {
		return nil, err
	}

	p := &model.VerificationPayload{
		AttemptID: claims.AttemptID,
		CompanyID: claims.CompanyID,
		JobID:     claims.JobID,
		Email:     claims.Email,
		Score:     claims.Score,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	return p, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, audience string) error {
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ValidateRedirectURL accepts only absolute https URLs with a host and no credentials
func ValidateRedirectURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidRedirectURL
	}
	if u.Scheme != "https" || u.Host == "" || u.Hostname() == "" || u.User != nil || u.Opaque != "" {
		return ErrInvalidRedirectURL
	}
	return nil
}

// BuildRedirectURL picks the destination for the outcome and appends status and score,
// keeping any query the client put on the URL
func BuildRedirectURL(p *model.RedirectPayload, passed bool, score int) (string, error) {
	dest, status := p.RedirectFail, redirectStatusFailed
	if passed {
		dest, status = p.RedirectPass, redirectStatusPassed
	}
	if err := ValidateRedirectURL(dest); err != nil {
		return "", err
	}

	u, _ := url.Parse(dest)
	q := u.Query()
	q.Set(redirectStatusParameter, status)
	q.Set(redirectScoreParameter, strconv.Itoa(score))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
