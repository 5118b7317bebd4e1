package interfaces

import (
	"context"

	"novel-runtime/shared/models"
)

// PlanProvider отдает мемоизированные планы историй.
type PlanProvider interface {
	// GetPlan возвращает план или models.ErrPlanNotFound.
	GetPlan(ctx context.Context, storyID string) (*models.StoryPlan, error)
	// Invalidate сбрасывает мемоизированный план.
	Invalidate(storyID string)
	// ListStories перечисляет истории, у которых есть план.
	ListStories(ctx context.Context) ([]string, error)
}

// NarrativeTracker хранит recap и сигналы для пары (история, сессия).
type NarrativeTracker interface {
	Recap(storyID, sessionID string, plan *models.StoryPlan) string
	Signals(storyID, sessionID string, plan *models.StoryPlan) map[string]float64
	// Accept применяет принятый игроком слайс. Возвращает false, если слайс уже был применен последним.
	Accept(storyID, sessionID string, plan *models.StoryPlan, sliceID, text string) bool
}

// AIClient - черный ящик генерации текста.
type AIClient interface {
	GenerateText(ctx context.Context, req models.AIRequest) (string, models.UsageInfo, error)
	Model() string
}

// SliceGenerator превращает контекст в текст сцены. Никогда не возвращает ошибку:
// при полном провале отдается заглушка со стадией models.StageSentinel.
type SliceGenerator interface {
	Generate(ctx context.Context, gc models.GenerationContext) models.GeneratedSlice
}

// AttemptRecorder пишет журнал попыток генерации.
type AttemptRecorder interface {
	Record(rec models.AttemptRecord)
}

// SliceEnsurer - единственная точка входа для получения слайса.
type SliceEnsurer interface {
	Ensure(ctx context.Context, storyID, sessionID, sliceID string, opts models.EnsureOptions) (string, error)
}

// StoryBootstrapper прогревает входные слайсы истории.
type StoryBootstrapper interface {
	Bootstrap(ctx context.Context, storyID, sessionID string) (models.BootstrapReport, error)
}
