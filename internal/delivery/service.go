// Package delivery - точка входа для получения слайсов: TTL-кэш, объединение
// одинаковых запросов в один полет и ограниченный по параллельности префетч веток.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"novel-runtime/internal/script"
	"novel-runtime/internal/shard"
	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Config - параметры кэша и префетча.
type Config struct {
	TTL           time.Duration
	DefaultDepth  int
	Concurrency   int // одновременных генераций на весь процесс
	Workers       int // воркеров префетча
	QueueSize     int
	SweepInterval time.Duration
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет часы кэша (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type prefetchTask struct {
	storyID   string
	sessionID string
	sliceID   script.SliceID
	depth     int
}

// Service реализует interfaces.SliceEnsurer.
type Service struct {
	plans     interfaces.PlanProvider
	tracker   interfaces.NarrativeTracker
	generator interfaces.SliceGenerator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	cache   *ttlStore
	flights []*singleflight.Group
	limiter *semaphore.Weighted

	queue     chan prefetchTask
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

var _ interfaces.SliceEnsurer = (*Service)(nil)

// NewService создает сервис выдачи слайсов. Воркеры префетча запускаются через Start.
func NewService(
	plans interfaces.PlanProvider,
	tracker interfaces.NarrativeTracker,
	generator interfaces.SliceGenerator,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.DefaultDepth < 0 {
		cfg.DefaultDepth = 0
	}
	s := &Service{
		plans:     plans,
		tracker:   tracker,
		generator: generator,
		cfg:       cfg,
		logger:    logger.Named("SliceDelivery"),
		now:       time.Now,
		limiter:   semaphore.NewWeighted(int64(cfg.Concurrency)),
		queue:     make(chan prefetchTask, cfg.QueueSize),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newTTLStore(cfg.TTL, s.now)
	s.flights = make([]*singleflight.Group, shard.DefaultCount)
	for i := range s.flights {
		s.flights[i] = &singleflight.Group{}
	}
	return s
}

func cacheKey(storyID, sessionID string, id script.SliceID) string {
	return storyID + "::" + sessionID + "::" + string(id)
}

// Ensure возвращает текст слайса. Текст всегда грамматически корректен; ошибка
// возвращается для ошибок конфигурации (нет плана, неверный id) и для заглушки
// (models.ErrSliceUnavailable).
func (s *Service) Ensure(ctx context.Context, storyID, sessionID, sliceID string, opts models.EnsureOptions) (string, error) {
	storyID = models.NormalizeStoryID(storyID)
	sessionID = models.NormalizeSessionID(sessionID)

	id, err := script.NormalizeSliceID(sliceID)
	if err != nil {
		return script.Notice(fmt.Sprintf("runtime slice %s is not a valid slice id", sliceID)), err
	}
	log := s.logger.With(
		zap.String("storyID", storyID),
		zap.String("sessionID", sessionID),
		zap.String("sliceID", string(id)),
		zap.Bool("prefetch", opts.Prefetch),
	)

	plan, err := s.plans.GetPlan(ctx, storyID)
	if err != nil {
		log.Error("Plan unavailable", zap.Error(err))
		return script.Notice(fmt.Sprintf("runtime slice %s missing", id)), err
	}

	depth := opts.Depth
	if depth < 0 {
		depth = s.cfg.DefaultDepth
	}
	if !opts.Prefetch && depth < 1 {
		depth = 1
	}

	key := cacheKey(storyID, sessionID, id)
	if text, ok := s.cache.Get(key); ok {
		cacheLookupsTotal.WithLabelValues("hit", mode(opts.Prefetch)).Inc()
		if !opts.Prefetch {
			s.tracker.Accept(storyID, sessionID, plan, string(id), text)
			s.schedule(storyID, sessionID, text, depth)
		}
		return text, nil
	}
	cacheLookupsTotal.WithLabelValues("miss", mode(opts.Prefetch)).Inc()

	owned := false
	group := s.flights[shard.Index(key, len(s.flights))]
	v, _, shared := group.Do(key, func() (interface{}, error) {
		owned = true
		return s.generate(ctx, log, key, storyID, sessionID, id, plan, opts.Prefetch), nil
	})
	res := v.(models.GeneratedSlice)
	if shared && !owned {
		coalescedTotal.Inc()
	}

	if res.IsSentinel() {
		log.Error("Slice generation failed, serving sentinel", zap.Strings("problems", res.Errors))
		return res.Text, fmt.Errorf("%w: %s/%s", models.ErrSliceUnavailable, storyID, id)
	}

	// состояние обновляется до возврата, следующий Ensure этой сессии видит новый recap
	if !opts.Prefetch {
		s.tracker.Accept(storyID, sessionID, plan, string(id), res.Text)
	}
	if owned || !opts.Prefetch {
		s.schedule(storyID, sessionID, res.Text, depth)
	}
	return res.Text, nil
}

// generate выполняется только владельцем полета.
func (s *Service) generate(
	ctx context.Context,
	log *zap.Logger,
	key, storyID, sessionID string,
	id script.SliceID,
	plan *models.StoryPlan,
	prefetch bool,
) (res models.GeneratedSlice) {
	// между промахом и началом полета запись могла появиться
	if text, ok := s.cache.Get(key); ok {
		return models.GeneratedSlice{Text: text, Stage: models.StageStructured}
	}

	// результат нужен всем ожидающим, даже если инициатор ушел
	ctx = context.WithoutCancel(ctx)

	waitStart := time.Now()
	if err := s.limiter.Acquire(ctx, 1); err != nil {
		log.Error("Failed to acquire generation slot", zap.Error(err))
		return models.GeneratedSlice{
			Text:   script.Sentinel(storyID, id),
			Stage:  models.StageSentinel,
			Errors: []string{err.Error()},
		}
	}
	limiterWaitSeconds.Observe(time.Since(waitStart).Seconds())
	generationsInFlight.Inc()
	defer func() {
		generationsInFlight.Dec()
		s.limiter.Release(1)
		if r := recover(); r != nil {
			log.Error("Panic in slice generator", zap.Any("panic", r))
			res = models.GeneratedSlice{
				Text:   script.Sentinel(storyID, id),
				Stage:  models.StageSentinel,
				Errors: []string{fmt.Sprintf("panic: %v", r)},
			}
		}
	}()

	res = s.generator.Generate(ctx, models.GenerationContext{
		StoryID:   storyID,
		SessionID: sessionID,
		SliceID:   string(id),
		Plan:      plan,
		Recap:     s.tracker.Recap(storyID, sessionID, plan),
		Signals:   s.tracker.Signals(storyID, sessionID, plan),
		Prefetch:  prefetch,
	})
	if !res.IsSentinel() {
		s.cache.Set(key, res.Text)
	}
	return res
}

// Cached сообщает, есть ли в кэше непросроченный слайс.
func (s *Service) Cached(storyID, sessionID, sliceID string) bool {
	id, err := script.NormalizeSliceID(sliceID)
	if err != nil {
		return false
	}
	_, ok := s.cache.Get(cacheKey(models.NormalizeStoryID(storyID), models.NormalizeSessionID(sessionID), id))
	return ok
}

// CacheSize - число записей в кэше, включая еще не вычищенные просроченные.
func (s *Service) CacheSize() int { return s.cache.Len() }

// Sweep удаляет просроченные записи кэша.
func (s *Service) Sweep() int {
	removed := s.cache.Sweep()
	if removed > 0 {
		cacheEvictedTotal.Add(float64(removed))
	}
	return removed
}
