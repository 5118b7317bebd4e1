package models

import "time"

// GenerationStage - стадия конвейера генерации слайса.
type GenerationStage string

const (
	StageStructured GenerationStage = "structured"
	StageRepair     GenerationStage = "repair"
	StageFreeform   GenerationStage = "freeform"
	StageSentinel   GenerationStage = "sentinel"
)

// GenerationContext - все, что генератору нужно знать о запрошенном слайсе.
type GenerationContext struct {
	StoryID   string
	SessionID string
	SliceID   string
	Plan      *StoryPlan
	Recap     string
	Signals   map[string]float64
	Prefetch  bool
}

// GeneratedSlice - результат конвейера. Text всегда грамматически корректен.
type GeneratedSlice struct {
	Text   string
	Stage  GenerationStage
	Errors []string // ошибки последней неудачной стадии, для логов
}

// IsSentinel сообщает, что слайс - заглушка об ошибке генерации.
func (g GeneratedSlice) IsSentinel() bool { return g.Stage == StageSentinel }

// AIRequest - один запрос к текстовой модели.
// Schema == nil означает запрос без ограничения формата ответа.
type AIRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       map[string]interface{}
	Temperature  float64
	MaxTokens    int
}

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // токены посчитаны локально, бэкенд их не вернул
}

// AttemptKind различает записи журнала попыток.
type AttemptKind string

const (
	AttemptRequest  AttemptKind = "request"
	AttemptResponse AttemptKind = "response"
)

// AttemptRecord - запись журнала попыток генерации.
type AttemptRecord struct {
	Kind         AttemptKind
	StoryID      string
	SliceID      string
	SessionID    string
	Stage        GenerationStage
	Model        string
	SystemPrompt string
	UserPrompt   string
	Response     string
	Usage        UsageInfo
	Duration     time.Duration
	Error        string
}

// DepthDefault просит Ensure использовать настроенную глубину префетча.
const DepthDefault = -1

// EnsureOptions - параметры запроса слайса.
type EnsureOptions struct {
	Prefetch bool
	Depth    int
}

// BootstrapReport - итог прогрева входных слайсов истории.
type BootstrapReport struct {
	StoryID   string   `json:"storyId"`
	SessionID string   `json:"sessionId"`
	Depth     int      `json:"depth"`
	Seeds     []string `json:"seeds"`
	Failed    []string `json:"failed,omitempty"`
}
