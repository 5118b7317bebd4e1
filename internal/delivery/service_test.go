package delivery_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"novel-runtime/internal/delivery"
	"novel-runtime/internal/script"
	"novel-runtime/internal/state"
	"novel-runtime/shared/interfaces/mocks"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGenerator строит слайс, ветки которого ведут в <id>-a и <id>-b.
type fakeGenerator struct {
	mu       sync.Mutex
	calls    map[string]int
	contexts []models.GenerationContext

	release  chan struct{} // если задан, генерация ждет закрытия
	sentinel bool
	panics   bool

	active    int32
	maxActive int32
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{calls: make(map[string]int)}
}

func branchingSlice(id string) string {
	node := script.MustSliceID(id)
	a := script.SliceID(string(node) + "-a").Path()
	b := script.SliceID(string(node) + "-b").Path()
	return fmt.Sprintf("intro:Scene %s;\n:Wind moves the reeds;\nsetVar:trust=trust+10;\nchoose:Go left:%s|Go right:%s;", node, a, b)
}

func (g *fakeGenerator) Generate(ctx context.Context, gc models.GenerationContext) models.GeneratedSlice {
	now := atomic.AddInt32(&g.active, 1)
	defer atomic.AddInt32(&g.active, -1)
	for {
		prev := atomic.LoadInt32(&g.maxActive)
		if now <= prev || atomic.CompareAndSwapInt32(&g.maxActive, prev, now) {
			break
		}
	}

	g.mu.Lock()
	g.calls[gc.SliceID]++
	g.contexts = append(g.contexts, gc)
	release := g.release
	g.mu.Unlock()

	if release != nil {
		<-release
	}
	if g.panics {
		panic("boom")
	}
	if g.sentinel {
		return models.GeneratedSlice{
			Text:  script.Sentinel(gc.StoryID, script.SliceID(gc.SliceID)),
			Stage: models.StageSentinel,
		}
	}
	return models.GeneratedSlice{Text: branchingSlice(gc.SliceID), Stage: models.StageStructured}
}

func (g *fakeGenerator) Calls(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[id]
}

func (g *fakeGenerator) Total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func ptr(v float64) *float64 { return &v }

func testPlan() *models.StoryPlan {
	return &models.StoryPlan{
		Premise: "A village at the edge of a marsh.",
		Signals: map[string]models.SignalDef{"trust": {Min: ptr(0), Max: ptr(100)}},
	}
}

type fixture struct {
	svc     *delivery.Service
	gen     *fakeGenerator
	tracker *state.Tracker
	plan    *models.StoryPlan
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T, cfg delivery.Config, gen *fakeGenerator) *fixture {
	plan := testPlan()
	plans := mocks.NewMockPlanProvider(t)
	plans.On("GetPlan", mock.Anything, "marsh").Return(plan, nil).Maybe()
	plans.On("GetPlan", mock.Anything, mock.Anything).Return(nil, models.ErrPlanNotFound).Maybe()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tracker := state.NewTracker(zap.NewNop())
	svc := delivery.NewService(plans, tracker, gen, cfg, zap.NewNop(), delivery.WithClock(clock.Now))
	t.Cleanup(svc.Stop)
	return &fixture{svc: svc, gen: gen, tracker: tracker, plan: plan, clock: clock}
}

func defaultConfig() delivery.Config {
	return delivery.Config{
		TTL:          time.Minute,
		DefaultDepth: 0,
		Concurrency:  4,
		Workers:      2,
		QueueSize:    64,
	}
}

func foreground(depth int) models.EnsureOptions {
	return models.EnsureOptions{Depth: depth}
}

func prefetch(depth int) models.EnsureOptions {
	return models.EnsureOptions{Prefetch: true, Depth: depth}
}

func TestEnsure_CacheHit(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	ctx := context.Background()

	first, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", prefetch(0))
	require.NoError(t, err)
	second, err := f.svc.Ensure(ctx, "marsh", "alice", "runtime/act-1/entry.txt", prefetch(0))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.gen.Calls("act-1/entry"))
	assert.True(t, f.svc.Cached("MARSH", "alice", "act-1/entry"))
}

func TestEnsure_CoalescesConcurrentRequests(t *testing.T) {
	gen := newFakeGenerator()
	gen.release = make(chan struct{})
	f := newFixture(t, defaultConfig(), gen)

	const callers = 12
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opts := prefetch(0)
			if i%2 == 0 {
				opts = foreground(1)
			}
			results[i], errs[i] = f.svc.Ensure(context.Background(), "marsh", "alice", "act-1/entry", opts)
		}(i)
	}

	require.Eventually(t, func() bool { return f.gen.Calls("act-1/entry") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, 1, f.gen.Calls("act-1/entry"))
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestEnsure_CallerCancellationDoesNotAbortGeneration(t *testing.T) {
	gen := newFakeGenerator()
	gen.release = make(chan struct{})
	f := newFixture(t, defaultConfig(), gen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", prefetch(0))
		done <- err
	}()

	require.Eventually(t, func() bool { return f.gen.Calls("act-1/entry") == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	close(gen.release)

	require.NoError(t, <-done)
	assert.True(t, f.svc.Cached("marsh", "alice", "entry"))
}

func TestEnsure_PrefetchDepth(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	f.svc.Start(context.Background())

	_, err := f.svc.Ensure(context.Background(), "marsh", "alice", "entry", foreground(2))
	require.NoError(t, err)

	expected := []string{
		"act-1/entry-a", "act-1/entry-b",
		"act-1/entry-a-a", "act-1/entry-a-b", "act-1/entry-b-a", "act-1/entry-b-b",
	}
	require.Eventually(t, func() bool {
		for _, id := range expected {
			if !f.svc.Cached("marsh", "alice", id) {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Never(t, func() bool {
		return f.gen.Calls("act-1/entry-a-a-a") > 0 || f.gen.Calls("act-1/entry-b-b-b") > 0
	}, 150*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 7, f.gen.Total())
}

func TestEnsure_ForegroundHitSchedulesPrefetch(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	f.svc.Start(context.Background())
	ctx := context.Background()

	_, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", prefetch(0))
	require.NoError(t, err)
	assert.False(t, f.svc.Cached("marsh", "alice", "entry-a"))

	_, err = f.svc.Ensure(ctx, "marsh", "alice", "entry", foreground(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.svc.Cached("marsh", "alice", "entry-a") && f.svc.Cached("marsh", "alice", "entry-b")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.gen.Calls("act-1/entry"))
}

func TestEnsure_ForegroundDepthIsAtLeastOne(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	f.svc.Start(context.Background())

	_, err := f.svc.Ensure(context.Background(), "marsh", "alice", "entry", foreground(0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.svc.Cached("marsh", "alice", "entry-a")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnsure_SentinelIsNotCached(t *testing.T) {
	gen := newFakeGenerator()
	gen.sentinel = true
	f := newFixture(t, defaultConfig(), gen)
	ctx := context.Background()

	text, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", foreground(1))
	require.ErrorIs(t, err, models.ErrSliceUnavailable)
	assert.True(t, script.Validate(text, script.Limits{MinLines: 1, MaxLines: 9}).OK(), text)
	assert.False(t, f.svc.Cached("marsh", "alice", "entry"))
	assert.Equal(t, state.DefaultRecap, f.tracker.Recap("marsh", "alice", f.plan))

	_, err = f.svc.Ensure(ctx, "marsh", "alice", "entry", foreground(1))
	require.ErrorIs(t, err, models.ErrSliceUnavailable)
	assert.Equal(t, 2, f.gen.Calls("act-1/entry"))
}

func TestEnsure_GeneratorPanicBecomesSentinel(t *testing.T) {
	gen := newFakeGenerator()
	gen.panics = true
	f := newFixture(t, defaultConfig(), gen)

	text, err := f.svc.Ensure(context.Background(), "marsh", "alice", "entry", prefetch(0))
	require.ErrorIs(t, err, models.ErrSliceUnavailable)
	assert.Contains(t, text, "end;")
	assert.False(t, f.svc.Cached("marsh", "alice", "entry"))
}

func TestEnsure_SessionIsolation(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	ctx := context.Background()

	_, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", prefetch(0))
	require.NoError(t, err)
	_, err = f.svc.Ensure(ctx, "marsh", "bob", "entry", prefetch(0))
	require.NoError(t, err)

	assert.Equal(t, 2, f.gen.Calls("act-1/entry"))
	assert.True(t, f.svc.Cached("marsh", "alice", "entry"))
	assert.True(t, f.svc.Cached("marsh", "bob", "entry"))
	assert.False(t, f.svc.Cached("marsh", "carol", "entry"))
}

func TestEnsure_StateUpdates(t *testing.T) {
	t.Run("Prefetch does not touch narrative state", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), newFakeGenerator())

		_, err := f.svc.Ensure(context.Background(), "marsh", "alice", "entry", prefetch(0))
		require.NoError(t, err)

		assert.Equal(t, state.DefaultRecap, f.tracker.Recap("marsh", "alice", f.plan))
		assert.Equal(t, 50.0, f.tracker.Signals("marsh", "alice", f.plan)["trust"])
	})

	t.Run("Foreground applies recap and signals before returning", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), newFakeGenerator())

		_, err := f.svc.Ensure(context.Background(), "marsh", "alice", "entry", foreground(1))
		require.NoError(t, err)

		assert.Contains(t, f.tracker.Recap("marsh", "alice", f.plan), "Scene act-1/entry")
		assert.Equal(t, 60.0, f.tracker.Signals("marsh", "alice", f.plan)["trust"])
	})

	t.Run("Repeated foreground delivery is applied once", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), newFakeGenerator())
		ctx := context.Background()

		_, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", foreground(1))
		require.NoError(t, err)
		_, err = f.svc.Ensure(ctx, "marsh", "alice", "entry", foreground(1))
		require.NoError(t, err)

		assert.Equal(t, 60.0, f.tracker.Signals("marsh", "alice", f.plan)["trust"])
	})

	t.Run("Generation sees the recap of the previous slice", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), newFakeGenerator())
		ctx := context.Background()

		_, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", foreground(1))
		require.NoError(t, err)
		_, err = f.svc.Ensure(ctx, "marsh", "alice", "entry-a", foreground(1))
		require.NoError(t, err)

		f.gen.mu.Lock()
		defer f.gen.mu.Unlock()
		var seen *models.GenerationContext
		for i := range f.gen.contexts {
			if f.gen.contexts[i].SliceID == "act-1/entry-a" && !f.gen.contexts[i].Prefetch {
				seen = &f.gen.contexts[i]
			}
		}
		require.NotNil(t, seen)
		assert.Contains(t, seen.Recap, "Scene act-1/entry")
		assert.Equal(t, 60.0, seen.Signals["trust"])
	})
}

func TestEnsure_TTL(t *testing.T) {
	cfg := defaultConfig()
	cfg.TTL = 10 * time.Minute
	f := newFixture(t, cfg, newFakeGenerator())
	ctx := context.Background()

	_, err := f.svc.Ensure(ctx, "marsh", "alice", "entry", prefetch(0))
	require.NoError(t, err)

	f.clock.Advance(9 * time.Minute)
	assert.True(t, f.svc.Cached("marsh", "alice", "entry"))

	f.clock.Advance(2 * time.Minute)
	assert.False(t, f.svc.Cached("marsh", "alice", "entry"))
	assert.Equal(t, 1, f.svc.Sweep())
	assert.Equal(t, 0, f.svc.CacheSize())

	_, err = f.svc.Ensure(ctx, "marsh", "alice", "entry", prefetch(0))
	require.NoError(t, err)
	assert.Equal(t, 2, f.gen.Calls("act-1/entry"))
}

func TestEnsure_ConcurrencyLimit(t *testing.T) {
	gen := newFakeGenerator()
	gen.release = make(chan struct{})
	cfg := defaultConfig()
	cfg.Concurrency = 2
	f := newFixture(t, cfg, gen)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.Ensure(context.Background(), "marsh", "alice", fmt.Sprintf("node-%d", i), prefetch(0))
		}(i)
	}

	require.Eventually(t, func() bool { return gen.Total() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, gen.Total())

	close(gen.release)
	wg.Wait()
	assert.Equal(t, 6, gen.Total())
	assert.LessOrEqual(t, atomic.LoadInt32(&gen.maxActive), int32(2))
}

func TestEnsure_ConfigurationErrors(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	ctx := context.Background()

	t.Run("Missing plan", func(t *testing.T) {
		text, err := f.svc.Ensure(ctx, "ghost", "alice", "entry", foreground(1))
		require.ErrorIs(t, err, models.ErrPlanNotFound)
		assert.Contains(t, text, "runtime slice act-1/entry missing")
		assert.Equal(t, 0, f.gen.Total())
	})

	t.Run("Invalid slice id", func(t *testing.T) {
		text, err := f.svc.Ensure(ctx, "marsh", "alice", "../etc/passwd", foreground(1))
		require.ErrorIs(t, err, models.ErrInvalidSliceID)
		assert.Contains(t, text, "end;")
		assert.Equal(t, 0, f.gen.Total())
	})
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, defaultConfig(), newFakeGenerator())
	f.svc.Start(context.Background())
	f.svc.Start(context.Background())
	f.svc.Stop()
	f.svc.Stop()

	// после остановки Ensure продолжает работать, просто без префетча
	_, err := f.svc.Ensure(context.Background(), "marsh", "alice", "entry", foreground(2))
	require.NoError(t, err)
	assert.Never(t, func() bool { return f.svc.Cached("marsh", "alice", "entry-a") }, 100*time.Millisecond, 10*time.Millisecond)
}
