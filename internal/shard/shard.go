// Package shard распределяет строковые ключи по фиксированному числу шардов.
// Используется всеми key-scoped картами (кэш слайсов, in-flight, состояние сессий),
// чтобы операции над разными ключами не конкурировали за одну блокировку.
package shard

import "github.com/cespare/xxhash/v2"

// DefaultCount - число шардов по умолчанию.
const DefaultCount = 32

// Index возвращает номер шарда для ключа в диапазоне [0, n).
func Index(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}
