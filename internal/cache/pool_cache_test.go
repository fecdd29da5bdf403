package cache

import (
	"context"
	"skillgate/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolCache_RoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewPoolCache(client, 30*time.Second)
	ctx := context.Background()

	got, err := c.GetPool(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got, "miss")

	pool := []model.EligibleSkill{{
		SkillID:   "s1",
		SkillName: "Go",
		Questions: []model.PoolQuestion{{
			ID:     "q1",
			Type:   model.QuestionTypeFillBlankBlocks,
			Weight: 2.5,
			Config: model.QuestionConfig{Segments: []string{"", " x"}, Blanks: []string{"var"}},
		}},
	}}
	require.NoError(t, c.SetPool(ctx, "job-1", pool))
	assert.Equal(t, 30*time.Second, mr.TTL("job:job-1:pool"))

	got, err = c.GetPool(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, pool, got)

	require.NoError(t, c.DeletePool(ctx, "job-1"))
	got, err = c.GetPool(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPoolCache_EmptyPoolIsAHit(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewPoolCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetPool(ctx, "job-1", nil))

	got, err := c.GetPool(ctx, "job-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPoolCache_Expires(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewPoolCache(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.SetPool(ctx, "job-1", []model.EligibleSkill{{SkillID: "s1"}}))
	mr.FastForward(31 * time.Second)

	got, err := c.GetPool(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
