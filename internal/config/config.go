package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"novel-runtime/shared/models"
	"novel-runtime/shared/utils"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	AIClientOpenAI = "openai"
	AIClientOllama = "ollama"

	aiAPIKeySecret = "ai_api_key"
)

// Config содержит конфигурацию сервиса выдачи слайсов.
type Config struct {
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Каталоги игр, в каждом <story>/story/plan.json
	GamesDirs []string `envconfig:"GAMES_DIRS" default:"games"`

	// Настройки AI
	AIClientType          string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL             string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel               string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat"`
	AITimeout             time.Duration `envconfig:"AI_TIMEOUT" default:"90s"`
	AITemperature         float64       `envconfig:"AI_TEMPERATURE" default:"0.55"`
	AIFreeformTemperature float64       `envconfig:"AI_FREEFORM_TEMPERATURE" default:"0.95"`
	AIMaxTokens           int           `envconfig:"AI_MAX_TOKENS" default:"2048"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string `ignored:"true"`

	// Кэш и префетч
	CacheTTL            time.Duration `envconfig:"RUNTIME_CACHE_TTL" default:"10m"`
	PrefetchDepth       int           `envconfig:"RUNTIME_PREFETCH_DEPTH" default:"2"`
	PrefetchConcurrency int           `envconfig:"RUNTIME_PREFETCH_CONCURRENCY" default:"4"`
	PrefetchWorkers     int           `envconfig:"RUNTIME_PREFETCH_WORKERS" default:"4"`
	PrefetchQueue       int           `envconfig:"RUNTIME_PREFETCH_QUEUE" default:"256"`

	SliceMinLines int `envconfig:"RUNTIME_SLICE_MIN" default:"4"`
	SliceMaxLines int `envconfig:"RUNTIME_SLICE_MAX" default:"9"`

	// Журнал попыток генерации
	RuntimeLogDir     string `envconfig:"RUNTIME_LOG_DIR" default:"logs"`
	RuntimeLogAppend  bool   `envconfig:"RUNTIME_LOG_APPEND" default:"false"`
	RuntimeLogPreview int    `envconfig:"RUNTIME_LOG_PREVIEW" default:"200"`

	WarmupOnStart bool `envconfig:"RUNTIME_WARMUP" default:"false"`
	// Запросов bootstrap в минуту с одного IP
	BootstrapRateLimit uint `envconfig:"BOOTSTRAP_RATE_LIMIT" default:"6"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	SecretsDir         string   `envconfig:"SECRETS_DIR" default:"/run/secrets"`
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
// Ключ AI берется из AI_API_KEY, иначе из файла секрета ai_api_key.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	cfg.AIClientType = strings.ToLower(strings.TrimSpace(cfg.AIClientType))

	cfg.AIAPIKey = strings.TrimSpace(os.Getenv("AI_API_KEY"))
	if cfg.AIAPIKey == "" {
		if key, err := utils.ReadSecret(cfg.SecretsDir, aiAPIKeySecret); err == nil {
			cfg.AIAPIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.AIClientType {
	case AIClientOpenAI:
		if c.AIAPIKey == "" {
			return fmt.Errorf("%w: set AI_API_KEY or the %s secret", models.ErrMissingCredentials, aiAPIKeySecret)
		}
	case AIClientOllama:
	default:
		return fmt.Errorf("неизвестный тип AI клиента: '%s'", c.AIClientType)
	}
	if c.SliceMinLines < 1 || c.SliceMaxLines < c.SliceMinLines {
		return fmt.Errorf("invalid slice line window %d-%d", c.SliceMinLines, c.SliceMaxLines)
	}
	if c.PrefetchConcurrency < 1 {
		return fmt.Errorf("RUNTIME_PREFETCH_CONCURRENCY must be positive, got %d", c.PrefetchConcurrency)
	}
	if c.PrefetchDepth < 0 {
		return fmt.Errorf("RUNTIME_PREFETCH_DEPTH must not be negative, got %d", c.PrefetchDepth)
	}
	if c.BootstrapRateLimit == 0 {
		return fmt.Errorf("BOOTSTRAP_RATE_LIMIT must be positive")
	}
	if len(c.GamesDirs) == 0 {
		return fmt.Errorf("GAMES_DIRS is empty")
	}
	return nil
}

// LogSummary логирует конфигурацию без секретов.
func (c *Config) LogSummary(log *zap.Logger) {
	log.Info("Конфигурация загружена",
		zap.String("port", c.Port),
		zap.Strings("gamesDirs", c.GamesDirs),
		zap.String("aiClientType", c.AIClientType),
		zap.String("aiBaseURL", c.AIBaseURL),
		zap.String("aiModel", c.AIModel),
		zap.Duration("aiTimeout", c.AITimeout),
		zap.Bool("aiAPIKeyLoaded", c.AIAPIKey != ""),
		zap.Duration("cacheTTL", c.CacheTTL),
		zap.Int("prefetchDepth", c.PrefetchDepth),
		zap.Int("prefetchConcurrency", c.PrefetchConcurrency),
		zap.Int("prefetchWorkers", c.PrefetchWorkers),
		zap.Int("sliceMin", c.SliceMinLines),
		zap.Int("sliceMax", c.SliceMaxLines),
		zap.String("runtimeLogDir", c.RuntimeLogDir),
		zap.Bool("warmupOnStart", c.WarmupOnStart),
		zap.Uint("bootstrapRateLimit", c.BootstrapRateLimit),
	)
}
