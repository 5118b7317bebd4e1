package plan_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"novel-runtime/internal/plan"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jsonPlan = `{
  "title": "Lighthouse",
  "premise": "A keeper finds the lamp already lit.",
  "cast": [{"id": "mara", "name": "Mara", "goals": ["truth"]}],
  "signals": {"trust": {"min": 0, "max": 100, "default": 50}},
  "warmup": {"entry": "act-1/entry", "depth": 1},
  "params": {"primaryRuntimeSeeds": ["shore"]}
}`

const yamlPlan = `
title: Harbor
premise: Fog over the harbor.
signals:
  fear:
    min: 0
    max: 10
golden_rules:
  - never kill the narrator
`

func writePlan(t *testing.T, root, story, name, content string) {
	t.Helper()
	dir := filepath.Join(root, story, "story")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileSource_Load(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writePlan(t, first, "lighthouse", "plan.json", jsonPlan)
	writePlan(t, second, "harbor", "plan.yaml", yamlPlan)
	writePlan(t, second, "lighthouse", "plan.yaml", yamlPlan)

	src := plan.NewFileSource([]string{first, second}, zap.NewNop())
	ctx := context.Background()

	t.Run("json plan from first root wins", func(t *testing.T) {
		p, err := src.Load(ctx, "lighthouse")
		require.NoError(t, err)
		assert.Equal(t, "Lighthouse", p.Title)
		assert.Equal(t, 50.0, p.Signals["trust"].Initial())
		assert.Equal(t, 1, p.WarmupDepth())
		assert.Equal(t, []string{"shore"}, p.StringListParam("primaryRuntimeSeeds"))
	})

	t.Run("yaml plan", func(t *testing.T) {
		p, err := src.Load(ctx, "harbor")
		require.NoError(t, err)
		assert.Equal(t, 5.0, p.Signals["fear"].Initial())
		assert.Equal(t, []string{"never kill the narrator"}, p.AllRules())
	})

	t.Run("missing plan", func(t *testing.T) {
		_, err := src.Load(ctx, "nowhere")
		assert.True(t, errors.Is(err, models.ErrPlanNotFound))
	})

	t.Run("path traversal is not found", func(t *testing.T) {
		_, err := src.Load(ctx, "../lighthouse")
		assert.True(t, errors.Is(err, models.ErrPlanNotFound))
	})

	t.Run("list", func(t *testing.T) {
		stories, err := src.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"harbor", "lighthouse"}, stories)
	})
}

func TestFileSource_InvalidPlan(t *testing.T) {
	root := t.TempDir()
	writePlan(t, root, "broken", "plan.json", `{"premise": `)
	writePlan(t, root, "bounds", "plan.json", `{"signals": {"x": {"min": 5, "max": 1}}}`)

	src := plan.NewFileSource([]string{root}, zap.NewNop())
	_, err := src.Load(context.Background(), "broken")
	assert.True(t, errors.Is(err, models.ErrInvalidPlan))
	_, err = src.Load(context.Background(), "bounds")
	assert.True(t, errors.Is(err, models.ErrInvalidPlan))
}

type countingSource struct {
	plan.Source
	loads int
}

func (c *countingSource) Load(ctx context.Context, storyID string) (*models.StoryPlan, error) {
	c.loads++
	return c.Source.Load(ctx, storyID)
}

func TestStore_MemoizesAndInvalidates(t *testing.T) {
	root := t.TempDir()
	writePlan(t, root, "lighthouse", "plan.json", jsonPlan)
	src := &countingSource{Source: plan.NewFileSource([]string{root}, zap.NewNop())}
	store := plan.NewStore(src, zap.NewNop())
	ctx := context.Background()

	p1, err := store.GetPlan(ctx, "Lighthouse")
	require.NoError(t, err)
	p2, err := store.GetPlan(ctx, "lighthouse")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, src.loads)

	writePlan(t, root, "lighthouse", "plan.json", `{"title": "Lighthouse v2"}`)
	store.Invalidate("LIGHTHOUSE")
	p3, err := store.GetPlan(ctx, "lighthouse")
	require.NoError(t, err)
	assert.Equal(t, "Lighthouse v2", p3.Title)
	assert.Equal(t, "Lighthouse", p1.Title, "old plan is replaced, not mutated")
	assert.Equal(t, 2, src.loads)

	_, err = store.GetPlan(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrPlanNotFound))
	_, err = store.GetPlan(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrPlanNotFound))
	assert.Equal(t, 4, src.loads, "missing plans are not memoized")
}
