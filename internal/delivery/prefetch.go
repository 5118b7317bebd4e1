package delivery

import (
	"context"
	"time"

	"novel-runtime/internal/script"
	"novel-runtime/shared/models"

	"go.uber.org/zap"
)

// schedule ставит в очередь префетч всех веток из последней строки слайса с глубиной depth-1.
// Не блокирует: при заполненной очереди задача отбрасывается.
func (s *Service) schedule(storyID, sessionID, text string, depth int) {
	if depth <= 0 {
		return
	}
	for _, target := range script.BranchTargets(text) {
		task := prefetchTask{storyID: storyID, sessionID: sessionID, sliceID: target, depth: depth - 1}
		select {
		case <-s.stop:
			return
		default:
		}
		select {
		case s.queue <- task:
			prefetchTasksTotal.WithLabelValues("enqueued").Inc()
		default:
			prefetchTasksTotal.WithLabelValues("dropped").Inc()
			s.logger.Warn("Prefetch queue is full, dropping task",
				zap.String("storyID", storyID), zap.String("sessionID", sessionID),
				zap.String("sliceID", string(target)), zap.Int("depth", task.depth))
		}
	}
}

// Start запускает воркеров префетча и чистильщик кэша. Повторный вызов ничего не делает.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go s.worker(ctx)
		}
		if s.cfg.SweepInterval > 0 {
			s.wg.Add(1)
			go s.janitor(ctx)
		}
		s.logger.Info("Prefetch workers started", zap.Int("workers", s.cfg.Workers), zap.Int("queue", s.cfg.QueueSize))
	})
}

// Stop останавливает воркеров и ждет их завершения. Задачи в очереди отбрасываются.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.logger.Info("Prefetch workers stopped")
	})
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case task := <-s.queue:
			_, err := s.Ensure(ctx, task.storyID, task.sessionID, string(task.sliceID),
				models.EnsureOptions{Prefetch: true, Depth: task.depth})
			if err != nil {
				s.logger.Warn("Prefetch failed",
					zap.String("storyID", task.storyID), zap.String("sessionID", task.sessionID),
					zap.String("sliceID", string(task.sliceID)), zap.Error(err))
			}
		}
	}
}

func (s *Service) janitor(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug("Expired slices swept", zap.Int("removed", removed))
			}
		}
	}
}
