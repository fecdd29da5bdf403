package service

import (
	"context"
	"errors"
	"skillgate/internal/model"
	"skillgate/internal/repository"
	"sort"
	"sync"
	"time"
)

var errStoreDown = errors.New("store down")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeAttemptRepo mimics the Mongo repo, including the conditional updates
// and (when uniqueOpen is set) the unique open-attempt index
type fakeAttemptRepo struct {
	mu         sync.Mutex
	attempts   map[string]*model.Attempt
	uniqueOpen bool
	findErr    error
	creates    int
	// hidden is invisible to reads until a duplicate insert collides with it
	hidden string
	// onFindOpen runs before FindOpen and can fail it
	onFindOpen func(ctx context.Context) error
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[string]*model.Attempt), uniqueOpen: true}
}

func copyAttempt(a *model.Attempt) *model.Attempt {
	c := *a
	c.Answers = make(map[string]model.AnswerRecord, len(a.Answers))
	for k, v := range a.Answers {
		c.Answers[k] = v
	}
	return &c
}

func (r *fakeAttemptRepo) Create(ctx context.Context, a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uniqueOpen {
		for _, other := range r.attempts {
			if other.JobID == a.JobID && other.EmailNormalized == a.EmailNormalized && other.Status == model.AttemptInProgress {
				r.hidden = ""
				return repository.ErrDuplicateOpenAttempt
			}
		}
	}
	r.creates++
	r.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (r *fakeAttemptRepo) GetByID(ctx context.Context, id string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[id]; ok {
		return copyAttempt(a), nil
	}
	return nil, nil
}

func (r *fakeAttemptRepo) newest(match func(a *model.Attempt) bool, at func(a *model.Attempt) time.Time) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var found []*model.Attempt
	for _, a := range r.attempts {
		if a.ID != r.hidden && match(a) {
			found = append(found, a)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	sort.Slice(found, func(i, j int) bool { return at(found[i]).After(at(found[j])) })
	return copyAttempt(found[0]), nil
}

func startedAt(a *model.Attempt) time.Time { return a.StartedAt }

func (r *fakeAttemptRepo) FindOpen(ctx context.Context, jobID, email string) (*model.Attempt, error) {
	if r.onFindOpen != nil {
		if err := r.onFindOpen(ctx); err != nil {
			return nil, err
		}
	}
	return r.newest(func(a *model.Attempt) bool {
		return a.JobID == jobID && a.EmailNormalized == email && a.Status == model.AttemptInProgress
	}, startedAt)
}

func (r *fakeAttemptRepo) FindLatest(ctx context.Context, jobID, email string, since time.Time) (*model.Attempt, error) {
	return r.newest(func(a *model.Attempt) bool {
		return a.JobID == jobID && a.EmailNormalized == email && !a.StartedAt.Before(since)
	}, startedAt)
}

func (r *fakeAttemptRepo) FindLatestCompleted(ctx context.Context, jobID, email string, since time.Time) (*model.Attempt, error) {
	return r.newest(func(a *model.Attempt) bool {
		return a.JobID == jobID && a.EmailNormalized == email && a.Status == model.AttemptCompleted &&
			a.CompletedAt != nil && !a.CompletedAt.Before(since)
	}, func(a *model.Attempt) time.Time { return *a.CompletedAt })
}

func (r *fakeAttemptRepo) CountInFlight(ctx context.Context, teamID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.attempts {
		if a.TeamID == teamID && a.Status == model.AttemptInProgress && !a.StartedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeAttemptRepo) SaveAnswer(ctx context.Context, id string, rec model.AnswerRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return false, nil
	}
	a.Answers[rec.QuestionID] = rec
	return true, nil
}

func (r *fakeAttemptRepo) Complete(ctx context.Context, id string, c model.Completion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok || a.Status != model.AttemptInProgress || a.CompletedAt != nil {
		return false, nil
	}
	at, score, passed := c.CompletedAt, c.Score, c.Passed
	a.Status = model.AttemptCompleted
	a.CompletedAt = &at
	a.Score = &score
	a.Passed = &passed
	a.Answers = c.Answers
	a.VerificationToken = c.VerificationToken
	return true, nil
}

func (r *fakeAttemptRepo) Abandon(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return false, nil
	}
	a.Status = model.AttemptAbandoned
	a.AbandonedAt = &at
	return true, nil
}

func (r *fakeAttemptRepo) all() []*model.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Attempt, 0, len(r.attempts))
	for _, a := range r.attempts {
		out = append(out, copyAttempt(a))
	}
	return out
}

func (r *fakeAttemptRepo) update(id string, fn func(a *model.Attempt)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.attempts[id])
}

type fakeTeamRepo struct {
	teams map[string]*model.Team
	jobs  map[string]*model.Job
	err   error
}

func (r *fakeTeamRepo) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	if r.err != nil {
		return nil, r.err
	}
	if t, ok := r.teams[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (r *fakeTeamRepo) GetTeamByAPIKeyHash(ctx context.Context, hash string) (*model.Team, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, t := range r.teams {
		if t.APIKeyHash == hash {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeTeamRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if r.err != nil {
		return nil, r.err
	}
	if j, ok := r.jobs[id]; ok {
		c := *j
		return &c, nil
	}
	return nil, nil
}

type fakePoolRepo struct {
	mu     sync.Mutex
	skills []model.EligibleSkill
	err    error
	calls  int
}

func (r *fakePoolRepo) EligibleSkills(ctx context.Context, job *model.Job) ([]model.EligibleSkill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.skills, r.err
}

type fakeUsageRepo struct {
	mu           sync.Mutex
	applications int
	incErr       error
	increments   int
}

func (r *fakeUsageRepo) CurrentUsage(ctx context.Context, team *model.Team) (*model.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.Usage{TeamID: team.ID, ActualApplications: r.applications}, nil
}

func (r *fakeUsageRepo) IncrementUsage(ctx context.Context, team *model.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments++
	if r.incErr != nil {
		return r.incErr
	}
	r.applications++
	return nil
}

type fakeRateLimit struct {
	mu      sync.Mutex
	limited bool
	err     error
	records []string
}

func (f *fakeRateLimit) Check(ctx context.Context, ip, email string) (*model.RateLimitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &model.RateLimitStatus{Limited: f.limited}, nil
}

func (f *fakeRateLimit) Record(ctx context.Context, ip, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ip+"|"+email)
	return nil
}

type fakePoolCache struct {
	mu   sync.Mutex
	byID map[string][]model.EligibleSkill
}

func (c *fakePoolCache) SetPool(ctx context.Context, jobID string, pool []model.EligibleSkill) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[jobID] = pool
	return nil
}

func (c *fakePoolCache) GetPool(ctx context.Context, jobID string) ([]model.EligibleSkill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byID[jobID], nil
}

func (c *fakePoolCache) DeletePool(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, jobID)
	return nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) BroadcastToTeam(teamID string, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, teamID+":"+msgType)
}

func (b *fakeBroadcaster) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}
