package service

import (
	"fmt"
	"skillgate/internal/model"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcQuestion(id string, weight float64) model.PoolQuestion {
	return model.PoolQuestion{
		ID:     id,
		Type:   model.QuestionTypeMultipleChoice,
		Prompt: "prompt " + id,
		Weight: weight,
		Config: model.QuestionConfig{
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: "a",
		},
	}
}

func skill(id string, questions ...model.PoolQuestion) model.EligibleSkill {
	return model.EligibleSkill{SkillID: id, SkillName: "Skill " + id, Questions: questions}
}

// reverseShuffle is a deterministic stand-in for rand.Shuffle
func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func ids(qs []model.QuestionSnapshot) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestGenerate_TwoSkillsTargetFour(t *testing.T) {
	g := NewQuizGenerator()
	skills := []model.EligibleSkill{
		skill("s1", mcQuestion("a1", 1), mcQuestion("a2", 5), mcQuestion("a3", 3)),
		skill("s2", mcQuestion("b1", 4), mcQuestion("b2", 2), mcQuestion("b3", 6)),
	}

	got := g.Generate(skills, 4)

	require.Len(t, got, 4)
	seen := map[string]bool{}
	perSkill := map[string]int{}
	for _, q := range got {
		assert.False(t, seen[q.ID], "duplicate question %s", q.ID)
		seen[q.ID] = true
		perSkill[q.SkillID]++
	}
	assert.GreaterOrEqual(t, perSkill["s1"], 1)
	assert.GreaterOrEqual(t, perSkill["s2"], 1)

	// Best of each skill first, then highest remaining weights
	assert.Equal(t, []string{"b3", "a2", "b1", "a3"}, ids(got))
}

func TestGenerate_CoversEverySkillWhenTargetAllows(t *testing.T) {
	g := NewQuizGenerator()
	var skills []model.EligibleSkill
	for i := 0; i < 5; i++ {
		var qs []model.PoolQuestion
		for j := 0; j < 3; j++ {
			qs = append(qs, mcQuestion(fmt.Sprintf("s%d-q%d", i, j), float64(10*i+j)))
		}
		skills = append(skills, skill(fmt.Sprintf("s%d", i), qs...))
	}

	for target := 5; target <= 15; target++ {
		got := g.Generate(skills, target)
		require.Len(t, got, target)

		covered := map[string]bool{}
		for _, q := range got {
			covered[q.SkillID] = true
		}
		assert.Len(t, covered, 5, "target %d", target)
	}
}

func TestGenerate_FewerSlotsThanSkillsPrefersStrongestSkills(t *testing.T) {
	g := NewQuizGenerator()
	skills := []model.EligibleSkill{
		skill("low", mcQuestion("l1", 1)),
		skill("high", mcQuestion("h1", 9)),
		skill("mid", mcQuestion("m1", 5)),
	}

	got := g.Generate(skills, 2)

	assert.Equal(t, []string{"h1", "m1"}, ids(got))
}

func TestGenerate_NeverRepeatsAndCapsAtPoolSize(t *testing.T) {
	g := NewQuizGenerator()
	shared := mcQuestion("shared", 3)
	skills := []model.EligibleSkill{
		skill("s1", mcQuestion("a", 2), shared),
		skill("s2", shared),
	}

	got := g.Generate(skills, 10)

	assert.ElementsMatch(t, []string{"a", "shared"}, ids(got))
}

func TestGenerate_EmptyPool(t *testing.T) {
	g := NewQuizGenerator()

	assert.Empty(t, g.Generate(nil, 5))
	assert.Empty(t, g.Generate([]model.EligibleSkill{skill("s1"), skill("s2")}, 5))
	assert.Empty(t, g.Generate([]model.EligibleSkill{skill("s1", mcQuestion("a", 1))}, 0))
}

func TestGenerate_SkipsEmptySkills(t *testing.T) {
	g := NewQuizGenerator()
	skills := []model.EligibleSkill{
		skill("empty"),
		skill("s1", mcQuestion("a", 1), mcQuestion("b", 2)),
	}

	got := g.Generate(skills, 2)

	require.Len(t, got, 2)
	for _, q := range got {
		assert.Equal(t, "s1", q.SkillID)
	}
}

func TestGenerate_EqualWeightsKeepPoolOrder(t *testing.T) {
	g := NewQuizGenerator()
	skills := []model.EligibleSkill{
		skill("s1", mcQuestion("a", 1), mcQuestion("b", 1), mcQuestion("c", 1)),
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"a", "b"}, ids(g.Generate(skills, 2)))
	}
}

func TestGenerate_ShufflesMultipleChoiceOptions(t *testing.T) {
	g := &QuizGenerator{shuffle: reverseShuffle}
	pool := mcQuestion("a", 1)
	skills := []model.EligibleSkill{skill("s1", pool)}

	got := g.Generate(skills, 1)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"d", "c", "b", "a"}, got[0].Config.Options)
	assert.Equal(t, "a", got[0].Config.CorrectOption)
	// The pool's own slice is untouched
	assert.Equal(t, []string{"a", "b", "c", "d"}, pool.Config.Options)
}

func TestGenerate_FillBlankBuildsOptionPool(t *testing.T) {
	g := NewQuizGenerator()
	q := model.PoolQuestion{
		ID:     "fb",
		Type:   model.QuestionTypeFillBlankBlocks,
		Weight: 1,
		Config: model.QuestionConfig{
			Segments:    []string{"", " ", " ", " range"},
			Blanks:      []string{"for", "i", "in"},
			ExtraValues: []string{"while", "i"},
		},
	}

	got := g.Generate([]model.EligibleSkill{skill("s1", q)}, 1)

	require.Len(t, got, 1)
	pool := append([]string(nil), got[0].Config.OptionPool...)
	sort.Strings(pool)
	assert.Equal(t, []string{"for", "i", "i", "in", "while"}, pool)
	assert.Equal(t, []string{"for", "i", "in"}, got[0].Config.Blanks)
}

func TestGenerate_ShuffleIsPermutation(t *testing.T) {
	g := NewQuizGenerator()
	q := mcQuestion("a", 1)
	q.Config.Options = []string{"1", "2", "3", "4", "5", "6", "7", "8"}

	for i := 0; i < 20; i++ {
		got := g.Generate([]model.EligibleSkill{skill("s1", q)}, 1)
		require.Len(t, got, 1)
		assert.ElementsMatch(t, q.Config.Options, got[0].Config.Options)
	}
}

func TestGenerate_CarriesTimeLimitAndSkill(t *testing.T) {
	g := NewQuizGenerator()
	q := mcQuestion("a", 1)
	q.TimeLimitSec = 45
	q.ImageURL = "https://cdn.example.com/a.png"

	got := g.Generate([]model.EligibleSkill{skill("s1", q)}, 1)

	require.Len(t, got, 1)
	assert.Equal(t, 45, got[0].TimeLimitSec)
	assert.Equal(t, "Skill s1", got[0].SkillName)
	assert.Equal(t, "https://cdn.example.com/a.png", got[0].ImageURL)
}

func TestQuestionCount(t *testing.T) {
	three := []model.EligibleSkill{
		skill("a", mcQuestion("a1", 1)),
		skill("b", mcQuestion("b1", 1)),
		skill("c", mcQuestion("c1", 1)),
		skill("empty"),
	}

	tests := []struct {
		name   string
		policy model.QuestionCountPolicy
		want   int
	}{
		{"fixed", model.QuestionCountPolicy{Mode: model.QuestionCountFixed, Count: 7}, 7},
		{"per skill", model.QuestionCountPolicy{Mode: model.QuestionCountPerSkill, PerSkill: 2}, 6},
		{"per skill clamped to max", model.QuestionCountPolicy{Mode: model.QuestionCountPerSkill, PerSkill: 4, Max: 10}, 10},
		{"per skill clamped to min", model.QuestionCountPolicy{Mode: model.QuestionCountPerSkill, PerSkill: 1, Min: 5}, 5},
		{"fixed zero falls back", model.QuestionCountPolicy{Mode: model.QuestionCountFixed}, 3},
		{"unknown mode falls back", model.QuestionCountPolicy{Mode: "adaptive", Count: 9}, 3},
		{"empty policy falls back", model.QuestionCountPolicy{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuestionCount(tt.policy, three))
		})
	}
}
