package warmup_test

import (
	"context"
	"errors"
	"testing"

	"novel-runtime/internal/script"
	"novel-runtime/internal/warmup"
	"novel-runtime/shared/interfaces/mocks"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(v int) *int { return &v }

func TestCollectSeeds(t *testing.T) {
	t.Run("Entry then primary then secondary without duplicates", func(t *testing.T) {
		plan := &models.StoryPlan{
			Warmup: models.Warmup{Entry: "runtime/act-1/entry.txt"},
			Params: map[string]interface{}{
				"primaryRuntimeSeeds":   []interface{}{"hub", "act-2/gate", "entry"},
				"secondaryRuntimeSeeds": []interface{}{"  ", 42, "act-2/gate", "side"},
			},
		}
		assert.Equal(t, []script.SliceID{"act-1/entry", "act-1/hub", "act-2/gate", "act-1/side"}, warmup.CollectSeeds(plan))
	})

	t.Run("Defaults to act-1/entry", func(t *testing.T) {
		assert.Equal(t, []script.SliceID{"act-1/entry"}, warmup.CollectSeeds(&models.StoryPlan{}))
		assert.Equal(t, []script.SliceID{"act-1/entry"}, warmup.CollectSeeds(nil))
	})

	t.Run("Invalid seeds are skipped", func(t *testing.T) {
		plan := &models.StoryPlan{
			Params: map[string]interface{}{"primaryRuntimeSeeds": []interface{}{"../secret", "cellar"}},
		}
		assert.Equal(t, []script.SliceID{"act-1/cellar"}, warmup.CollectSeeds(plan))
	})
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	plan := &models.StoryPlan{
		Warmup: models.Warmup{Entry: "entry", Depth: intPtr(1)},
		Params: map[string]interface{}{"primaryRuntimeSeeds": []interface{}{"hub"}},
	}

	t.Run("Reloads the plan and warms seeds as prefetch", func(t *testing.T) {
		plans := mocks.NewMockPlanProvider(t)
		ensurer := mocks.NewMockSliceEnsurer(t)
		plans.On("Invalidate", "marsh").Once()
		plans.On("GetPlan", mock.Anything, "marsh").Return(plan, nil).Once()
		opts := models.EnsureOptions{Prefetch: true, Depth: 1}
		ensurer.On("Ensure", mock.Anything, "marsh", "bootstrap-marsh", "act-1/entry", opts).Return("end;", nil).Once()
		ensurer.On("Ensure", mock.Anything, "marsh", "bootstrap-marsh", "act-1/hub", opts).
			Return("intro:x;\nend;", models.ErrSliceUnavailable).Once()

		report, err := warmup.New(plans, ensurer, zap.NewNop()).Bootstrap(ctx, "Marsh", "")
		require.NoError(t, err)
		assert.Equal(t, models.BootstrapReport{
			StoryID:   "marsh",
			SessionID: "bootstrap-marsh",
			Depth:     1,
			Seeds:     []string{"runtime/act-1/entry.txt"},
			Failed:    []string{"runtime/act-1/hub.txt"},
		}, report)
	})

	t.Run("Uses the caller session and default depth", func(t *testing.T) {
		plans := mocks.NewMockPlanProvider(t)
		ensurer := mocks.NewMockSliceEnsurer(t)
		plans.On("Invalidate", "marsh").Once()
		plans.On("GetPlan", mock.Anything, "marsh").Return(&models.StoryPlan{}, nil).Once()
		ensurer.On("Ensure", mock.Anything, "marsh", "alice", "act-1/entry",
			models.EnsureOptions{Prefetch: true, Depth: models.DefaultWarmupDepth}).Return("end;", nil).Once()

		report, err := warmup.New(plans, ensurer, zap.NewNop()).Bootstrap(ctx, "marsh", "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", report.SessionID)
		assert.Equal(t, models.DefaultWarmupDepth, report.Depth)
	})

	t.Run("Missing plan", func(t *testing.T) {
		plans := mocks.NewMockPlanProvider(t)
		ensurer := mocks.NewMockSliceEnsurer(t)
		plans.On("Invalidate", "ghost").Once()
		plans.On("GetPlan", mock.Anything, "ghost").Return(nil, models.ErrPlanNotFound).Once()

		_, err := warmup.New(plans, ensurer, zap.NewNop()).Bootstrap(ctx, "ghost", "")
		require.ErrorIs(t, err, models.ErrPlanNotFound)
		ensurer.AssertNotCalled(t, "Ensure", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWarmAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Warms every story under its warmup session", func(t *testing.T) {
		plans := mocks.NewMockPlanProvider(t)
		ensurer := mocks.NewMockSliceEnsurer(t)
		plans.On("ListStories", mock.Anything).Return([]string{"marsh", "tower"}, nil).Once()
		plans.On("GetPlan", mock.Anything, "marsh").Return(&models.StoryPlan{}, nil).Once()
		plans.On("GetPlan", mock.Anything, "tower").Return(nil, models.ErrInvalidPlan).Once()
		ensurer.On("Ensure", mock.Anything, "marsh", "warmup-marsh", "act-1/entry", mock.Anything).Return("end;", nil).Once()

		reports := warmup.New(plans, ensurer, zap.NewNop()).WarmAll(ctx)
		require.Len(t, reports, 1)
		assert.Equal(t, "warmup-marsh", reports[0].SessionID)
	})

	t.Run("Listing failure", func(t *testing.T) {
		plans := mocks.NewMockPlanProvider(t)
		ensurer := mocks.NewMockSliceEnsurer(t)
		plans.On("ListStories", mock.Anything).Return(nil, errors.New("disk gone")).Once()

		assert.Empty(t, warmup.New(plans, ensurer, zap.NewNop()).WarmAll(ctx))
	})
}
