package generator

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const fallbackEncoding = "cl100k_base"

// TokenEstimator считает токены локально, когда бэкенд не вернул usage.
// Кодировка загружается лениво при первом подсчете.
type TokenEstimator struct {
	model  string
	logger *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenEstimator создает оценщик для модели.
func NewTokenEstimator(model string, logger *zap.Logger) *TokenEstimator {
	return &TokenEstimator{model: model, logger: logger}
}

// Count возвращает суммарное число токенов в текстах, 0 если кодировка недоступна.
func (e *TokenEstimator) Count(texts ...string) int {
	if e == nil {
		return 0
	}
	e.once.Do(e.load)
	if e.enc == nil {
		return 0
	}
	total := 0
	for _, s := range texts {
		total += len(e.enc.Encode(s, nil, nil))
	}
	return total
}

func (e *TokenEstimator) load() {
	enc, err := tiktoken.EncodingForModel(e.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		e.logger.Warn("Tokenizer unavailable, token estimates disabled", zap.String("model", e.model), zap.Error(err))
		return
	}
	e.enc = enc
}
