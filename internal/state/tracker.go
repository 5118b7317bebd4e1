// Package state хранит нарративное состояние игрока: короткий recap последних слайсов
// и числовые сигналы, объявленные в плане истории.
package state

import (
	"strings"
	"sync"

	"novel-runtime/internal/script"
	"novel-runtime/internal/shard"
	"novel-runtime/shared/models"

	"go.uber.org/zap"
)

const (
	// DefaultRecap отдается, пока игрок не принял ни одного слайса.
	DefaultRecap = "No recap yet. The story has just begun."

	maxRecapEntries = 2
	maxRecapRunes   = 400
)

// sessionState - состояние одной пары (история, сессия).
type sessionState struct {
	mu        sync.Mutex
	recap     []string
	signals   map[string]float64
	lastSlice string
}

type trackerShard struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// Tracker - потокобезопасное хранилище нарративного состояния.
// Блокировки ограничены ключом: шард лочится только на поиск/создание записи.
type Tracker struct {
	shards []*trackerShard
	logger *zap.Logger
}

// NewTracker создает трекер с shard.DefaultCount шардами.
func NewTracker(logger *zap.Logger) *Tracker {
	shards := make([]*trackerShard, shard.DefaultCount)
	for i := range shards {
		shards[i] = &trackerShard{sessions: make(map[string]*sessionState)}
	}
	return &Tracker{shards: shards, logger: logger.Named("NarrativeTracker")}
}

// Recap возвращает текущий recap сессии.
func (t *Tracker) Recap(storyID, sessionID string, plan *models.StoryPlan) string {
	st := t.lookup(storyID, sessionID, plan)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.recap) == 0 {
		return DefaultRecap
	}
	return strings.Join(st.recap, " ")
}

// Signals возвращает копию сигналов сессии.
func (t *Tracker) Signals(storyID, sessionID string, plan *models.StoryPlan) map[string]float64 {
	st := t.lookup(storyID, sessionID, plan)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]float64, len(st.signals))
	for k, v := range st.signals {
		out[k] = v
	}
	return out
}

// RecordSlice добавляет слайс в recap (не более двух последних записей).
func (t *Tracker) RecordSlice(storyID, sessionID string, plan *models.StoryPlan, text string) {
	st := t.lookup(storyID, sessionID, plan)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.record(text)
}

// ApplySignalDeltas применяет строки setVar слайса к сигналам сессии.
func (t *Tracker) ApplySignalDeltas(storyID, sessionID string, plan *models.StoryPlan, text string) {
	st := t.lookup(storyID, sessionID, plan)
	st.mu.Lock()
	defer st.mu.Unlock()
	t.apply(st, storyID, sessionID, plan, text)
}

// Accept применяет слайс, который игрок действительно получил (не префетч).
// Повторный прием того же слайса подряд (перезагрузка страницы) игнорируется.
func (t *Tracker) Accept(storyID, sessionID string, plan *models.StoryPlan, sliceID, text string) bool {
	st := t.lookup(storyID, sessionID, plan)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastSlice == sliceID {
		t.logger.Debug("Slice already accepted, skipping state update",
			zap.String("storyID", storyID), zap.String("sessionID", sessionID), zap.String("sliceID", sliceID))
		return false
	}
	st.lastSlice = sliceID
	st.record(text)
	t.apply(st, storyID, sessionID, plan, text)
	return true
}

func (t *Tracker) lookup(storyID, sessionID string, plan *models.StoryPlan) *sessionState {
	key := storyID + "::" + sessionID
	sh := t.shards[shard.Index(key, len(t.shards))]

	sh.mu.Lock()
	st, ok := sh.sessions[key]
	if !ok {
		st = &sessionState{signals: make(map[string]float64)}
		sh.sessions[key] = st
	}
	sh.mu.Unlock()

	if plan != nil {
		st.mu.Lock()
		// новые ключи могут появиться после инвалидации плана
		for name, def := range plan.Signals {
			if _, seeded := st.signals[name]; !seeded {
				st.signals[name] = def.Initial()
			}
		}
		st.mu.Unlock()
	}
	return st
}

func (st *sessionState) record(text string) {
	summary := summarize(text)
	if summary == "" {
		return
	}
	st.recap = append(st.recap, summary)
	if len(st.recap) > maxRecapEntries {
		st.recap = append([]string(nil), st.recap[len(st.recap)-maxRecapEntries:]...)
	}
}

func (t *Tracker) apply(st *sessionState, storyID, sessionID string, plan *models.StoryPlan, text string) {
	if plan == nil || len(plan.Signals) == 0 {
		return
	}
	for _, line := range script.SplitLines(text) {
		key, expr, ok := script.ParseSetVar(line)
		if !ok {
			continue
		}
		def, known := plan.Signals[key]
		if !known {
			continue
		}
		value, ok := evaluate(expr, st.signals)
		if !ok {
			t.logger.Warn("Discarding unevaluable signal expression",
				zap.String("storyID", storyID), zap.String("sessionID", sessionID),
				zap.String("signal", key), zap.String("expression", expr))
			continue
		}
		st.signals[key] = def.Clamp(value)
	}
}

// summarize склеивает строки слайса без choose: и оставляет хвост не длиннее maxRecapRunes.
func summarize(text string) string {
	var parts []string
	for _, line := range script.SplitLines(text) {
		if script.Classify(line) == script.KindChoose {
			continue
		}
		parts = append(parts, line)
	}
	joined := []rune(strings.Join(parts, " "))
	if len(joined) > maxRecapRunes {
		joined = joined[len(joined)-maxRecapRunes:]
	}
	return strings.TrimSpace(string(joined))
}
