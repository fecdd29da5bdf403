package service

import (
	"net/url"
	"skillgate/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(now time.Time) *TokenService {
	s := NewTokenService(testSecret, 24*time.Hour, 72*time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func testPayload() model.RedirectPayload {
	return model.RedirectPayload{
		RedirectPass: "https://client.example.com/apply/pass",
		RedirectFail: "https://client.example.com/apply/fail?ref=quiz",
		AttemptID:    "att-1",
		CompanyID:    "team-1",
		JobID:        "job-1",
	}
}

// flipChar changes one character of the token in place
func flipChar(token string, i int) string {
	b := []byte(token)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestRedirectToken_RoundTrip(t *testing.T) {
	s := newTestTokens(time.Now())
	p := testPayload()

	token, err := s.SignRedirect(p)
	require.NoError(t, err)

	got, err := s.VerifyRedirect(token)
	require.NoError(t, err)
	assert.Equal(t, p, *got)
}

func TestRedirectToken_TamperedFails(t *testing.T) {
	s := newTestTokens(time.Now())
	token, err := s.SignRedirect(testPayload())
	require.NoError(t, err)

	for pos := range len(token) {
		if token[pos] == '.' {
			continue
		}
		_, err := s.VerifyRedirect(model.RedirectToken(flipChar(string(token), pos)))
		assert.ErrorIs(t, err, ErrInvalidToken, "flip at %d", pos)
	}
}

func TestRedirectToken_LastSignatureCharTampered(t *testing.T) {
	s := newTestTokens(time.Now())
	token, err := s.SignRedirect(testPayload())
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := len(token) - 1
	for _, c := range []byte(alphabet) {
		if c == token[last] {
			continue
		}
		tampered := string(token[:last]) + string(c)
		_, err := s.VerifyRedirect(model.RedirectToken(tampered))
		assert.ErrorIs(t, err, ErrInvalidToken, "last char %q", c)
	}
}

func TestRedirectToken_Expired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestTokens(issued)
	token, err := s.SignRedirect(testPayload())
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(23 * time.Hour) }
	_, err = s.VerifyRedirect(token)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(25 * time.Hour) }
	_, err = s.VerifyRedirect(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedirectToken_WrongSecret(t *testing.T) {
	token, err := newTestTokens(time.Now()).SignRedirect(testPayload())
	require.NoError(t, err)

	other := NewTokenService("another-secret-another-secret-00", 24*time.Hour, 72*time.Hour)
	_, err = other.VerifyRedirect(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedirectToken_RejectsNonHTTPS(t *testing.T) {
	s := newTestTokens(time.Now())

	for _, bad := range []string{
		"http://client.example.com/pass",
		"javascript:alert(1)",
		"//client.example.com/pass",
		"https://",
		"https://user:pw@client.example.com/pass",
		"",
	} {
		p := testPayload()
		p.RedirectPass = bad
		_, err := s.SignRedirect(p)
		assert.ErrorIs(t, err, ErrInvalidRedirectURL, bad)
	}
}

func TestRedirectToken_EmptyAndGarbage(t *testing.T) {
	s := newTestTokens(time.Now())

	_, err := s.VerifyRedirect("")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.VerifyRedirect("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_AreNotInterchangeable(t *testing.T) {
	s := newTestTokens(time.Now())

	redirect, err := s.SignRedirect(testPayload())
	require.NoError(t, err)
	verification, err := s.SignVerification(model.VerificationPayload{
		AttemptID: "att-1", CompanyID: "team-1", JobID: "job-1", Email: "a@b.co", Score: 90,
	})
	require.NoError(t, err)

	_, err = s.VerifyVerification(model.VerificationToken(redirect))
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.VerifyRedirect(model.RedirectToken(verification))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerificationToken_RoundTripAndExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestTokens(issued)

	token, err := s.SignVerification(model.VerificationPayload{
		AttemptID: "att-1", CompanyID: "team-1", JobID: "job-1", Email: "a@b.co", Score: 90, IssuedAt: issued,
	})
	require.NoError(t, err)

	got, err := s.VerifyVerification(token)
	require.NoError(t, err)
	assert.Equal(t, "att-1", got.AttemptID)
	assert.Equal(t, "a@b.co", got.Email)
	assert.Equal(t, 90, got.Score)
	assert.True(t, got.IssuedAt.Equal(issued))

	// Outlives the 24h redirect window
	s.now = func() time.Time { return issued.Add(48 * time.Hour) }
	_, err = s.VerifyVerification(token)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(73 * time.Hour) }
	_, err = s.VerifyVerification(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBuildRedirectURL(t *testing.T) {
	p := testPayload()

	passURL, err := BuildRedirectURL(&p, true, 85)
	require.NoError(t, err)
	u, err := url.Parse(passURL)
	require.NoError(t, err)
	assert.Equal(t, "client.example.com", u.Host)
	assert.Equal(t, "/apply/pass", u.Path)
	assert.Equal(t, "passed", u.Query().Get("status"))
	assert.Equal(t, "85", u.Query().Get("score"))

	failURL, err := BuildRedirectURL(&p, false, 60)
	require.NoError(t, err)
	u, err = url.Parse(failURL)
	require.NoError(t, err)
	assert.Equal(t, "/apply/fail", u.Path)
	assert.Equal(t, "failed", u.Query().Get("status"))
	assert.Equal(t, "60", u.Query().Get("score"))
	assert.Equal(t, "quiz", u.Query().Get("ref"))
}

func TestBuildRedirectURL_OverridesClientStatus(t *testing.T) {
	p := testPayload()
	p.RedirectPass = "https://client.example.com/pass?status=failed&score=0"

	got, err := BuildRedirectURL(&p, true, 100)
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, []string{"passed"}, u.Query()["status"])
	assert.Equal(t, []string{"100"}, u.Query()["score"])
}
