package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"skillgate/internal/cache"
	"skillgate/internal/model"
	"skillgate/internal/repository"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	sessionTokenBytes = 32
	backgroundTimeout = 10 * time.Second
	startTimeout      = 10 * time.Second
)

var (
	ErrUnavailable      = errors.New("quiz unavailable")
	ErrInvalidSession   = errors.New("invalid session")
	ErrAlreadyCompleted = errors.New("attempt already completed")
	ErrMissingToken     = errors.New("attempt has no redirect token")
	ErrUnknownQuestion  = errors.New("question is not part of this attempt")
	ErrJobNotFound      = errors.New("job not found")
)

// unavailableError carries the internal reason behind a public ErrUnavailable.
// Only Error() reaches candidates.
type unavailableError struct {
	reason string
	err    error
}

func (e *unavailableError) Error() string        { return ErrUnavailable.Error() }
func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }
func (e *unavailableError) Unwrap() error        { return e.err }

// UnavailableReason returns the logged reason behind an ErrUnavailable, if any
func UnavailableReason(err error) string {
	var ue *unavailableError
	if errors.As(err, &ue) {
		return ue.reason
	}
	return ""
}

func unavailable(reason string, err error) error {
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("reason", reason).Msg("Quiz unavailable")
	return &unavailableError{reason: reason, err: err}
}

// AttemptService runs the attempt lifecycle: start/resume, progress, submit,
// abandon, status and backend verification. All state lives in the store.
type AttemptService struct {
	attemptRepo repository.AttemptRepo
	teamRepo    repository.TeamRepo
	poolRepo    repository.QuestionPoolRepo
	usageRepo   repository.UsageRepo
	rateLimit   cache.RateLimitCache
	poolCache   cache.PoolCache
	generator   *QuizGenerator
	tokens      *TokenService
	broadcaster Broadcaster

	window          time.Duration
	verificationTTL time.Duration
	now             func() time.Time

	starts     singleflight.Group
	background sync.WaitGroup
}

// NewAttemptService creates a new attempt service. window is the shared
// cooldown / status lookback / redirect token lifetime.
func NewAttemptService(
	attemptRepo repository.AttemptRepo,
	teamRepo repository.TeamRepo,
	poolRepo repository.QuestionPoolRepo,
	usageRepo repository.UsageRepo,
	rateLimit cache.RateLimitCache,
	generator *QuizGenerator,
	tokens *TokenService,
	window time.Duration,
	verificationTTL time.Duration,
) *AttemptService {
	return &AttemptService{
		attemptRepo:     attemptRepo,
		teamRepo:        teamRepo,
		poolRepo:        poolRepo,
		usageRepo:       usageRepo,
		rateLimit:       rateLimit,
		generator:       generator,
		tokens:          tokens,
		window:          window,
		verificationTTL: verificationTTL,
		now:             time.Now,
	}
}

// SetBroadcaster sets the broadcaster for team feed events
func (s *AttemptService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetPoolCache enables caching of eligible question pools
func (s *AttemptService) SetPoolCache(c cache.PoolCache) {
	s.poolCache = c
}

// WaitBackground blocks until fire-and-forget work (usage, rate counters) is done
func (s *AttemptService) WaitBackground() {
	s.background.Wait()
}

// Start returns the candidate's in-progress attempt for the job, or creates one.
// Every precondition failure is reported as ErrUnavailable.
func (s *AttemptService) Start(ctx context.Context, req model.StartRequest) (*model.StartResponse, error) {
	email := model.NormalizeEmail(req.Email)
	if email == "" || req.JobID == "" {
		return nil, unavailable("missing email or job", nil)
	}
	if err := ValidateRedirectURL(req.RedirectPass); err != nil {
		return nil, unavailable("invalid pass redirect url", err)
	}
	if err := ValidateRedirectURL(req.RedirectFail); err != nil {
		return nil, unavailable("invalid fail redirect url", err)
	}

	job, err := s.teamRepo.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, unavailable("job lookup failed", err)
	}
	if job == nil || !job.Active {
		return nil, unavailable("job not found or inactive", nil)
	}
	team, err := s.teamRepo.GetTeam(ctx, job.TeamID)
	if err != nil {
		return nil, unavailable("team lookup failed", err)
	}
	if team == nil || !team.Subscription.IsActive(s.now()) {
		return nil, unavailable("subscription inactive", nil)
	}

	// Collapse concurrent starts for the same candidate on this instance;
	// the unique open-attempt index covers other instances. The shared call
	// is detached from the leading caller's cancellation.
	v, err, _ := s.starts.Do(job.ID+"|"+email, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), startTimeout)
		defer cancel()
		return s.findOrCreate(sctx, job, team, email, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.StartResponse), nil
}

func (s *AttemptService) findOrCreate(ctx context.Context, job *model.Job, team *model.Team, email string, req model.StartRequest) (*model.StartResponse, error) {
	now := s.now()
	since := now.Add(-s.window)

	open, err := s.attemptRepo.FindOpen(ctx, job.ID, email)
	if err != nil {
		return nil, unavailable("open attempt lookup failed", err)
	}
	if open != nil {
		if !open.StartedAt.Before(since) {
			return s.startResponse(open, true), nil
		}
		// Outside the window the attempt can no longer be resumed; close it so a new one can open.
		if _, err := s.attemptRepo.Abandon(ctx, open.ID, now); err != nil {
			return nil, unavailable("stale attempt close failed", err)
		}
		log.Info().Str("attemptId", open.ID).Msg("Closed stale attempt")
	}

	latest, err := s.attemptRepo.FindLatest(ctx, job.ID, email, since)
	if err != nil {
		return nil, unavailable("latest attempt lookup failed", err)
	}
	if latest != nil {
		if latest.IsInProgress() {
			return s.startResponse(latest, true), nil
		}
		return nil, unavailable("cooldown: "+string(latest.QuizStatus()), nil)
	}

	limit, err := s.rateLimit.Check(ctx, req.ClientIP, email)
	if err != nil {
		return nil, unavailable("rate limit check failed", err)
	}
	if limit.Limited {
		return nil, unavailable("rate limited", nil)
	}

	pool, err := s.eligiblePool(ctx, job)
	if err != nil {
		return nil, unavailable("question pool lookup failed", err)
	}
	questions := s.generator.Generate(pool, QuestionCount(job.QuestionCount, pool))
	if len(questions) == 0 {
		return nil, unavailable("no eligible questions", nil)
	}

	if team.Billing.UsageCapEnabled {
		usage, err := s.usageRepo.CurrentUsage(ctx, team)
		if err != nil {
			return nil, unavailable("usage lookup failed", err)
		}
		inFlight, err := s.attemptRepo.CountInFlight(ctx, team.ID, since)
		if err != nil {
			return nil, unavailable("in-flight count failed", err)
		}
		if usage.ActualApplications+inFlight >= team.Billing.UsageCap {
			return nil, unavailable("usage cap reached", nil)
		}
	}

	sessionToken, err := newSessionToken()
	if err != nil {
		return nil, unavailable("session token generation failed", err)
	}

	attempt := &model.Attempt{
		ID:              uuid.NewString(),
		SessionToken:    sessionToken,
		TeamID:          team.ID,
		JobID:           job.ID,
		Email:           req.Email,
		EmailNormalized: email,
		Status:          model.AttemptInProgress,
		PassThreshold:   job.PassThreshold,
		Questions:       questions,
		Answers:         make(map[string]model.AnswerRecord),
		StartedAt:       now,
		Device: model.Device{
			UserAgent: req.UserAgent,
			ClientIP:  req.ClientIP,
		},
	}

	redirect, err := s.tokens.SignRedirect(model.RedirectPayload{
		RedirectPass: req.RedirectPass,
		RedirectFail: req.RedirectFail,
		AttemptID:    attempt.ID,
		CompanyID:    team.ID,
		JobID:        job.ID,
	})
	if err != nil {
		return nil, unavailable("redirect token signing failed", err)
	}
	attempt.RedirectToken = string(redirect)

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateOpenAttempt) {
			existing, ferr := s.attemptRepo.FindOpen(ctx, job.ID, email)
			if ferr == nil && existing != nil {
				log.Info().Str("attemptId", existing.ID).Msg("Concurrent start resolved to existing attempt")
				return s.startResponse(existing, true), nil
			}
			return nil, unavailable("duplicate open attempt", ferr)
		}
		return nil, unavailable("attempt insert failed", err)
	}

	log.Info().
		Str("attemptId", attempt.ID).
		Str("jobId", job.ID).
		Str("teamId", team.ID).
		Int("questions", len(questions)).
		Msg("Attempt started")

	s.goBackground(ctx, "rate_limit_record", func(ctx context.Context) error {
		return s.rateLimit.Record(ctx, req.ClientIP, email)
	})
	s.publish(EventAttemptStarted, attempt)

	return s.startResponse(attempt, false), nil
}

// SaveProgress stores (or overwrites) one answer; no scoring happens here
func (s *AttemptService) SaveProgress(ctx context.Context, attemptID, sessionToken, questionID string, answer model.AnswerValue) error {
	attempt, err := s.authorize(ctx, attemptID, sessionToken)
	if err != nil {
		return err
	}
	if !attempt.IsInProgress() {
		return ErrAlreadyCompleted
	}
	if _, ok := attempt.Question(questionID); !ok {
		return ErrUnknownQuestion
	}

	saved, err := s.attemptRepo.SaveAnswer(ctx, attempt.ID, model.AnswerRecord{
		QuestionID: questionID,
		Answer:     answer,
		AnsweredAt: s.now(),
	})
	if err != nil {
		return err
	}
	if !saved {
		return ErrAlreadyCompleted
	}
	return nil
}

// Submit scores the attempt against its frozen questions and finalizes it once.
// A result is returned alongside ErrMissingToken / ErrInvalidToken: the attempt
// is completed but there is no safe redirect.
func (s *AttemptService) Submit(ctx context.Context, attemptID, sessionToken string, answers []model.SubmittedAnswer) (*model.SubmitResponse, error) {
	attempt, err := s.authorize(ctx, attemptID, sessionToken)
	if err != nil {
		return nil, err
	}
	if !attempt.IsInProgress() {
		return nil, ErrAlreadyCompleted
	}

	now := s.now()
	merged := make(map[string]model.AnswerRecord, len(attempt.Answers)+len(answers))
	for id, rec := range attempt.Answers {
		merged[id] = rec
	}
	for _, a := range answers {
		if _, ok := attempt.Question(a.QuestionID); !ok {
			log.Warn().Str("attemptId", attempt.ID).Str("questionId", a.QuestionID).Msg("Ignoring answer to unknown question")
			continue
		}
		merged[a.QuestionID] = model.AnswerRecord{
			QuestionID: a.QuestionID,
			Answer:     a.Answer,
			AnsweredAt: now,
		}
	}

	grade := GradeAttempt(attempt.Questions, merged)
	passed := Passed(grade.Score, attempt.PassThreshold)

	var verification model.VerificationToken
	if passed {
		verification, err = s.tokens.SignVerification(model.VerificationPayload{
			AttemptID: attempt.ID,
			CompanyID: attempt.TeamID,
			JobID:     attempt.JobID,
			Email:     attempt.EmailNormalized,
			Score:     grade.Score,
			IssuedAt:  now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to issue verification token: %w", err)
		}
	}

	completed, err := s.attemptRepo.Complete(ctx, attempt.ID, model.Completion{
		CompletedAt:       now,
		Score:             grade.Score,
		Passed:            passed,
		Answers:           grade.Answers,
		VerificationToken: string(verification),
	})
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, ErrAlreadyCompleted
	}

	attempt.CompletedAt = &now
	attempt.Score = &grade.Score
	attempt.Passed = &passed
	attempt.Status = model.AttemptCompleted

	log.Info().
		Str("attemptId", attempt.ID).
		Int("score", grade.Score).
		Int("correct", grade.Correct).
		Int("total", grade.Total).
		Bool("passed", passed).
		Msg("Attempt completed")

	teamID := attempt.TeamID
	s.goBackground(ctx, "usage_increment", func(ctx context.Context) error {
		team, err := s.teamRepo.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return fmt.Errorf("team %s not found", teamID)
		}
		return s.usageRepo.IncrementUsage(ctx, team)
	})
	s.publish(EventAttemptCompleted, attempt)

	result := &model.SubmitResponse{Passed: passed, Score: grade.Score}

	if attempt.RedirectToken == "" {
		log.Error().Str("attemptId", attempt.ID).Msg("Completed attempt has no redirect token")
		return result, ErrMissingToken
	}
	payload, err := s.tokens.VerifyRedirect(model.RedirectToken(attempt.RedirectToken))
	if err != nil || payload.AttemptID != attempt.ID {
		log.Warn().Str("attemptId", attempt.ID).Msg("Redirect token rejected")
		return result, ErrInvalidToken
	}
	redirectURL, err := BuildRedirectURL(payload, passed, grade.Score)
	if err != nil {
		return result, ErrInvalidToken
	}
	result.RedirectURL = redirectURL
	return result, nil
}

// Abandon closes an in-progress attempt at the candidate's request
func (s *AttemptService) Abandon(ctx context.Context, attemptID, sessionToken string) error {
	attempt, err := s.authorize(ctx, attemptID, sessionToken)
	if err != nil {
		return err
	}
	if !attempt.IsInProgress() {
		return ErrAlreadyCompleted
	}

	now := s.now()
	ok, err := s.attemptRepo.Abandon(ctx, attempt.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyCompleted
	}

	attempt.AbandonedAt = &now
	attempt.Status = model.AttemptAbandoned
	log.Info().Str("attemptId", attempt.ID).Msg("Attempt abandoned")
	s.publish(EventAttemptAbandoned, attempt)
	return nil
}

// Status reports the candidate-facing state of the most recent attempt in the window
func (s *AttemptService) Status(ctx context.Context, email, jobID string) (model.QuizStatus, error) {
	email = model.NormalizeEmail(email)
	if email == "" || jobID == "" {
		return model.QuizStatusNone, nil
	}

	latest, err := s.attemptRepo.FindLatest(ctx, jobID, email, s.now().Add(-s.window))
	if err != nil {
		return "", unavailable("status lookup failed", err)
	}
	if latest == nil {
		return model.QuizStatusNone, nil
	}
	return latest.QuizStatus(), nil
}

// Verify confirms a candidate's outcome to the team that owns the job.
// Only a pass backed by a valid verification token is reported as verified.
func (s *AttemptService) Verify(ctx context.Context, teamID string, req model.VerifyRequest) (*model.VerifyResponse, error) {
	job, err := s.teamRepo.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.TeamID != teamID {
		return nil, ErrJobNotFound
	}

	email := model.NormalizeEmail(req.Email)
	attempt, err := s.attemptRepo.FindLatestCompleted(ctx, job.ID, email, s.now().Add(-s.verificationTTL))
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.CompletedAt == nil {
		return &model.VerifyResponse{}, nil
	}

	resp := &model.VerifyResponse{
		AttemptID:   attempt.ID,
		CompletedAt: attempt.CompletedAt,
	}
	if attempt.Score != nil {
		resp.Score = *attempt.Score
	}
	if attempt.Passed != nil {
		resp.Passed = *attempt.Passed
	}
	if !resp.Passed {
		return resp, nil
	}

	resp.Verified = s.verificationMatches(model.VerificationToken(attempt.VerificationToken), attempt)
	if resp.Verified && req.Token != "" {
		resp.Verified = s.verificationMatches(req.Token, attempt)
	}
	return resp, nil
}

func (s *AttemptService) verificationMatches(token model.VerificationToken, attempt *model.Attempt) bool {
	p, err := s.tokens.VerifyVerification(token)
	if err != nil {
		return false
	}
	return p.AttemptID == attempt.ID && p.JobID == attempt.JobID && p.Email == attempt.EmailNormalized
}

// authorize loads the attempt and checks the session token in constant time
func (s *AttemptService) authorize(ctx context.Context, attemptID, sessionToken string) (*model.Attempt, error) {
	if attemptID == "" || sessionToken == "" {
		return nil, ErrInvalidSession
	}
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt == nil {
		return nil, ErrInvalidSession
	}
	if subtle.ConstantTimeCompare([]byte(attempt.SessionToken), []byte(sessionToken)) != 1 {
		return nil, ErrInvalidSession
	}
	return attempt, nil
}

func (s *AttemptService) eligiblePool(ctx context.Context, job *model.Job) ([]model.EligibleSkill, error) {
	if s.poolCache != nil {
		pool, err := s.poolCache.GetPool(ctx, job.ID)
		if err != nil {
			log.Warn().Err(err).Str("jobId", job.ID).Msg("Pool cache read failed")
		} else if pool != nil {
			return pool, nil
		}
	}

	pool, err := s.poolRepo.EligibleSkills(ctx, job)
	if err != nil {
		return nil, err
	}

	if s.poolCache != nil {
		if err := s.poolCache.SetPool(ctx, job.ID, pool); err != nil {
			log.Warn().Err(err).Str("jobId", job.ID).Msg("Pool cache write failed")
		}
	}
	return pool, nil
}

func (s *AttemptService) startResponse(a *model.Attempt, resumed bool) *model.StartResponse {
	questions := make([]model.PublicQuestion, len(a.Questions))
	answers := make([]model.AnswerRecord, 0, len(a.Answers))
	for i, q := range a.Questions {
		questions[i] = q.Public()
		if rec, ok := a.Answers[q.ID]; ok {
			answers = append(answers, rec)
		}
	}
	return &model.StartResponse{
		AttemptID:     a.ID,
		SessionToken:  a.SessionToken,
		RedirectToken: model.RedirectToken(a.RedirectToken),
		Questions:     questions,
		Answers:       answers,
		TimeLimitSec:  a.TotalTimeLimitSec(),
		StartedAt:     a.StartedAt,
		Resumed:       resumed,
	}
}

func (s *AttemptService) publish(event string, a *model.Attempt) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToTeam(a.TeamID, event, model.AttemptEvent{
		AttemptID: a.ID,
		JobID:     a.JobID,
		Email:     a.Email,
		Status:    a.QuizStatus(),
		Score:     a.Score,
		At:        s.now(),
	})
}

// goBackground runs fn detached from the request; failures are only logged
func (s *AttemptService) goBackground(ctx context.Context, task string, fn func(ctx context.Context) error) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		if err := fn(bctx); err != nil {
			log.Warn().Err(err).Str("task", task).Msg("Background task failed")
		}
	}()
}

func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
