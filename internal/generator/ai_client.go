package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"novel-runtime/internal/config"
	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

// jsonSchema отдает схему в go-openai, которому нужен json.Marshaler.
type jsonSchema map[string]interface{}

func (s jsonSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}

// --- OpenAI-совместимый клиент (OpenRouter и т.п.) ---

type openAIClient struct {
	client    *openaigo.Client
	model     string
	estimator *TokenEstimator
	logger    *zap.Logger
}

func (c *openAIClient) Model() string { return c.model }

// GenerateText отправляет chat completion. Для запроса со схемой включается response_format json_schema.
func (c *openAIClient) GenerateText(ctx context.Context, req models.AIRequest) (string, models.UsageInfo, error) {
	usage := models.UsageInfo{}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: req.SystemPrompt},
	}
	if req.UserPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: req.UserPrompt})
	}

	chatReq := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaigo.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: jsonSchema(req.Schema),
			},
		}
	}

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(startTime)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Warn("AI request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	text := resp.Choices[0].Message.Content
	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
	} else {
		usage.PromptTokens = c.estimator.Count(req.SystemPrompt, req.UserPrompt)
		usage.CompletionTokens = c.estimator.Count(text)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		usage.Estimated = true
	}
	observeUsage(c.model, usage.PromptTokens, usage.CompletionTokens)
	return text, usage, nil
}

// --- Ollama ---

type ollamaClient struct {
	client    *api.Client
	model     string
	estimator *TokenEstimator
	logger    *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (*ollamaClient, error) {
	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}
	client := api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout})
	logger.Info("Ollama client created", zap.String("baseURL", baseURL), zap.String("model", cfg.AIModel))
	return &ollamaClient{
		client:    client,
		model:     cfg.AIModel,
		estimator: NewTokenEstimator(cfg.AIModel, logger),
		logger:    logger,
	}, nil
}

func (c *ollamaClient) Model() string { return c.model }

// GenerateText вызывает нативный chat API. Схема передается в поле format.
func (c *ollamaClient) GenerateText(ctx context.Context, req models.AIRequest) (string, models.UsageInfo, error) {
	usage := models.UsageInfo{}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: req.SystemPrompt}}
	if req.UserPrompt != "" {
		messages = append(messages, api.Message{Role: "user", Content: req.UserPrompt})
	}
	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if req.Schema != nil {
		format, err := json.Marshal(req.Schema)
		if err != nil {
			return "", usage, fmt.Errorf("%w: schema marshal: %v", ErrAIGenerationFailed, err)
		}
		chatReq.Format = format
	}

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)
	if err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Warn("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	text := resp.Message.Content
	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		usage.PromptTokens = c.estimator.Count(req.SystemPrompt, req.UserPrompt)
		usage.CompletionTokens = c.estimator.Count(text)
		usage.Estimated = true
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	observeUsage(c.model, usage.PromptTokens, usage.CompletionTokens)
	return text, usage, nil
}

// NewAIClient создает клиент AI в зависимости от конфигурации.
// Для openai отсутствие ключа - ошибка конфигурации (models.ErrMissingCredentials).
func NewAIClient(cfg *config.Config, logger *zap.Logger) (interfaces.AIClient, error) {
	logger = logger.Named("AIClient")
	switch strings.ToLower(cfg.AIClientType) {
	case config.AIClientOpenAI:
		if cfg.AIAPIKey == "" {
			return nil, fmt.Errorf("%w: AI API key is empty", models.ErrMissingCredentials)
		}
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		logger.Info("OpenAI client created", zap.String("baseURL", cfg.AIBaseURL), zap.String("model", cfg.AIModel))
		return &openAIClient{
			client:    openaigo.NewClientWithConfig(openaiConfig),
			model:     cfg.AIModel,
			estimator: NewTokenEstimator(cfg.AIModel, logger),
			logger:    logger,
		}, nil
	case config.AIClientOllama:
		client, err := newOllamaClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}
