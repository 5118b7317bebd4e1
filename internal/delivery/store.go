package delivery

import (
	"sync"
	"time"

	"novel-runtime/internal/shard"
)

type cacheEntry struct {
	text    string
	created time.Time
}

type storeShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// ttlStore - шардированный кэш текстов слайсов. Просроченные записи считаются отсутствующими.
type ttlStore struct {
	ttl    time.Duration
	now    func() time.Time
	shards []*storeShard
}

func newTTLStore(ttl time.Duration, now func() time.Time) *ttlStore {
	shards := make([]*storeShard, shard.DefaultCount)
	for i := range shards {
		shards[i] = &storeShard{entries: make(map[string]cacheEntry)}
	}
	return &ttlStore{ttl: ttl, now: now, shards: shards}
}

func (s *ttlStore) shardFor(key string) *storeShard {
	return s.shards[shard.Index(key, len(s.shards))]
}

func (s *ttlStore) expired(e cacheEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.created) >= s.ttl
}

func (s *ttlStore) Get(key string) (string, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok || s.expired(e, s.now()) {
		return "", false
	}
	return e.text, true
}

func (s *ttlStore) Set(key, text string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = cacheEntry{text: text, created: s.now()}
	sh.mu.Unlock()
}

// Sweep удаляет просроченные записи и возвращает их количество.
func (s *ttlStore) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if s.expired(e, now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func (s *ttlStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
