package plan

import (
	"context"
	"sync"

	"novel-runtime/shared/models"

	"go.uber.org/zap"
)

// Store мемоизирует планы по идентификатору истории.
// Одновременные первые загрузки одной истории не объединяются: чтение источника идемпотентно.
type Store struct {
	source Source
	logger *zap.Logger

	mu    sync.RWMutex
	plans map[string]*models.StoryPlan
}

// NewStore создает хранилище планов поверх источника.
func NewStore(source Source, logger *zap.Logger) *Store {
	return &Store{
		source: source,
		logger: logger.Named("PlanStore"),
		plans:  make(map[string]*models.StoryPlan),
	}
}

// GetPlan возвращает план истории. Отсутствие плана (models.ErrPlanNotFound) не кэшируется.
func (s *Store) GetPlan(ctx context.Context, storyID string) (*models.StoryPlan, error) {
	storyID = models.NormalizeStoryID(storyID)

	s.mu.RLock()
	plan, ok := s.plans[storyID]
	s.mu.RUnlock()
	if ok {
		return plan, nil
	}

	plan, err := s.source.Load(ctx, storyID)
	if err != nil {
		s.logger.Error("Failed to load plan", zap.String("storyID", storyID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.plans[storyID] = plan
	s.mu.Unlock()
	s.logger.Info("Plan cached", zap.String("storyID", storyID), zap.String("title", plan.Title))
	return plan, nil
}

// Invalidate сбрасывает мемоизированный план, следующий GetPlan перечитает источник.
func (s *Store) Invalidate(storyID string) {
	storyID = models.NormalizeStoryID(storyID)
	s.mu.Lock()
	delete(s.plans, storyID)
	s.mu.Unlock()
	s.logger.Info("Plan invalidated", zap.String("storyID", storyID))
}

// ListStories перечисляет истории, для которых в источнике есть план.
func (s *Store) ListStories(ctx context.Context) ([]string, error) {
	return s.source.List(ctx)
}
