package service

import (
	"math/rand/v2"
	"skillgate/internal/model"
	"sort"
)

// QuizGenerator selects and randomizes the questions of a new attempt.
// Selection is deterministic given the weights; only option order is random.
type QuizGenerator struct {
	shuffle func(n int, swap func(i, j int))
}

// NewQuizGenerator creates a generator backed by math/rand/v2
func NewQuizGenerator() *QuizGenerator {
	return &QuizGenerator{shuffle: rand.Shuffle}
}

type candidate struct {
	question  model.PoolQuestion
	skillID   string
	skillName string
	skillRank int
	pos       int
}

// Generate picks up to targetCount questions: first the best question of each
// skill (best skills first when there are more skills than slots), then the
// highest remaining weights across all skills. No question is picked twice.
// An empty pool yields an empty quiz.
func (g *QuizGenerator) Generate(skills []model.EligibleSkill, targetCount int) []model.QuestionSnapshot {
	if targetCount <= 0 {
		return nil
	}

	var perSkill [][]candidate
	for _, s := range skills {
		if len(s.Questions) == 0 {
			continue
		}
		cands := make([]candidate, len(s.Questions))
		for i, q := range s.Questions {
			cands[i] = candidate{question: q, skillID: s.SkillID, skillName: s.SkillName, pos: i}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].question.Weight > cands[j].question.Weight
		})
		perSkill = append(perSkill, cands)
	}
	if len(perSkill) == 0 {
		return nil
	}

	sort.SliceStable(perSkill, func(i, j int) bool {
		return perSkill[i][0].question.Weight > perSkill[j][0].question.Weight
	})
	for rank := range perSkill {
		for i := range perSkill[rank] {
			perSkill[rank][i].skillRank = rank
		}
	}

	picked := make([]candidate, 0, targetCount)
	seen := make(map[string]bool)
	take := func(c candidate) bool {
		if seen[c.question.ID] {
			return false
		}
		seen[c.question.ID] = true
		picked = append(picked, c)
		return true
	}

	// One representative per skill
	for _, cands := range perSkill {
		if len(picked) == targetCount {
			break
		}
		for _, c := range cands {
			if take(c) {
				break
			}
		}
	}

	// Fill by weight across all skills
	if len(picked) < targetCount {
		var rest []candidate
		for _, cands := range perSkill {
			for _, c := range cands {
				if !seen[c.question.ID] {
					rest = append(rest, c)
				}
			}
		}
		sort.SliceStable(rest, func(i, j int) bool {
			a, b := rest[i], rest[j]
			if a.question.Weight != b.question.Weight {
				return a.question.Weight > b.question.Weight
			}
			if a.skillRank != b.skillRank {
				return a.skillRank < b.skillRank
			}
			return a.pos < b.pos
		})
		for _, c := range rest {
			if len(picked) == targetCount {
				break
			}
			take(c)
		}
	}

	out := make([]model.QuestionSnapshot, len(picked))
	for i, c := range picked {
		out[i] = g.snapshot(c)
	}
	return out
}

// snapshot freezes a deep copy of the question with its per-attempt shuffle
func (g *QuizGenerator) snapshot(c candidate) model.QuestionSnapshot {
	q := c.question
	cfg := q.Config.Clone()

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		g.shuffleStrings(cfg.Options)
	case model.QuestionTypeFillBlankBlocks:
		pool := make([]string, 0, len(cfg.Blanks)+len(cfg.ExtraValues))
		pool = append(pool, cfg.Blanks...)
		pool = append(pool, cfg.ExtraValues...)
		g.shuffleStrings(pool)
		cfg.OptionPool = pool
	}

	return model.QuestionSnapshot{
		ID:           q.ID,
		Type:         q.Type,
		Prompt:       q.Prompt,
		Config:       cfg,
		ImageURL:     q.ImageURL,
		TimeLimitSec: q.TimeLimitSec,
		SkillID:      c.skillID,
		SkillName:    c.skillName,
		Weight:       q.Weight,
	}
}

func (g *QuizGenerator) shuffleStrings(s []string) {
	if len(s) < 2 {
		return
	}
	g.shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// QuestionCount resolves a job's question count policy against the number of
// skills that have at least one eligible question. A non-positive result
// falls back to one question per skill.
func QuestionCount(policy model.QuestionCountPolicy, skills []model.EligibleSkill) int {
	eligible := 0
	for _, s := range skills {
		if len(s.Questions) > 0 {
			eligible++
		}
	}

	var n int
	switch policy.Mode {
	case model.QuestionCountFixed:
		n = policy.Count
	case model.QuestionCountPerSkill:
		n = policy.PerSkill * eligible
	}
	if policy.Min > 0 && n < policy.Min {
		n = policy.Min
	}
	if policy.Max > 0 && n > policy.Max {
		n = policy.Max
	}
	if n <= 0 {
		n = eligible
	}
	return n
}
