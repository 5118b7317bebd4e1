// Package generator превращает контекст слайса в текст сцены:
// структурированная попытка, одна попытка исправления, свободный текст, заглушка.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"novel-runtime/internal/script"
	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"
	"novel-runtime/shared/utils"

	"go.uber.org/zap"
)

// Config - параметры конвейера генерации.
type Config struct {
	Limits              script.Limits
	Temperature         float64
	FreeformTemperature float64
	MaxTokens           int
	AttemptTimeout      time.Duration
	PreviewChars        int
}

// nextStage задает переходы конвейера. Каждая стадия выполняется не более одного раза.
var nextStage = map[models.GenerationStage]models.GenerationStage{
	models.StageStructured: models.StageRepair,
	models.StageRepair:     models.StageFreeform,
	models.StageFreeform:   models.StageSentinel,
}

// attempt - итог одной стадии.
type attempt struct {
	text     string
	payload  string
	problems []string
}

// Generator реализует interfaces.SliceGenerator.
type Generator struct {
	ai       interfaces.AIClient
	attempts interfaces.AttemptRecorder
	cfg      Config
	logger   *zap.Logger
}

var _ interfaces.SliceGenerator = (*Generator)(nil)

// New создает генератор слайсов.
func New(ai interfaces.AIClient, attempts interfaces.AttemptRecorder, cfg Config, logger *zap.Logger) *Generator {
	if cfg.Limits == (script.Limits{}) {
		cfg.Limits = script.DefaultLimits()
	}
	return &Generator{ai: ai, attempts: attempts, cfg: cfg, logger: logger.Named("SliceGenerator")}
}

// Generate прогоняет конвейер и никогда не паникует наружу: при любой неудаче возвращается заглушка.
func (g *Generator) Generate(ctx context.Context, gc models.GenerationContext) (result models.GeneratedSlice) {
	log := g.logger.With(
		zap.String("storyID", gc.StoryID),
		zap.String("sessionID", gc.SessionID),
		zap.String("sliceID", gc.SliceID),
		zap.Bool("prefetch", gc.Prefetch),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during slice generation", zap.Any("panic", r))
			result = g.sentinel(gc, []string{fmt.Sprintf("panic: %v", r)})
		}
	}()

	var prev attempt
	stage := models.StageStructured
	for stage != models.StageSentinel {
		cur := g.runStage(ctx, stage, gc, prev)
		if len(cur.problems) == 0 {
			stageOutcomesTotal.WithLabelValues(string(stage), "accepted").Inc()
			log.Info("Slice accepted", zap.String("stage", string(stage)))
			return models.GeneratedSlice{Text: cur.text, Stage: stage}
		}
		stageOutcomesTotal.WithLabelValues(string(stage), "rejected").Inc()
		log.Warn("Slice attempt rejected", zap.String("stage", string(stage)), zap.Strings("problems", cur.problems))
		prev = cur
		stage = nextStage[stage]
	}
	log.Error("All generation stages failed, returning sentinel", zap.Strings("problems", prev.problems))
	return g.sentinel(gc, prev.problems)
}

func (g *Generator) sentinel(gc models.GenerationContext, problems []string) models.GeneratedSlice {
	sentinelSlicesTotal.Inc()
	return models.GeneratedSlice{
		Text:   script.Sentinel(gc.StoryID, script.SliceID(gc.SliceID)),
		Stage:  models.StageSentinel,
		Errors: problems,
	}
}

func (g *Generator) runStage(ctx context.Context, stage models.GenerationStage, gc models.GenerationContext, prev attempt) attempt {
	switch stage {
	case models.StageStructured:
		return g.structured(ctx, stage, gc, userPrompt(gc))
	case models.StageRepair:
		return g.structured(ctx, stage, gc, repairPrompt(gc, prev.problems, prev.payload))
	case models.StageFreeform:
		return g.freeform(ctx, gc)
	default:
		return attempt{problems: []string{fmt.Sprintf("unknown stage %q", stage)}}
	}
}

func (g *Generator) structured(ctx context.Context, stage models.GenerationStage, gc models.GenerationContext, prompt string) attempt {
	raw, err := g.call(ctx, stage, gc, models.AIRequest{
		SystemPrompt: structuredSystemPrompt(gc.Plan, g.cfg.Limits),
		UserPrompt:   prompt,
		SchemaName:   SchemaName,
		Schema:       SliceSchema(g.cfg.Limits.MinLines, g.cfg.Limits.MaxLines),
		Temperature:  g.cfg.Temperature,
		MaxTokens:    g.cfg.MaxTokens,
	})
	if err != nil {
		return attempt{problems: []string{fmt.Sprintf("generation request failed: %v", err)}}
	}
	text, problems := convertStructured(raw, g.cfg.Limits)
	return attempt{text: text, payload: raw, problems: problems}
}

func (g *Generator) freeform(ctx context.Context, gc models.GenerationContext) attempt {
	raw, err := g.call(ctx, models.StageFreeform, gc, models.AIRequest{
		SystemPrompt: freeformSystemPrompt(gc.Plan, g.cfg.Limits),
		UserPrompt:   userPrompt(gc),
		Temperature:  g.cfg.FreeformTemperature,
		MaxTokens:    g.cfg.MaxTokens,
	})
	if err != nil {
		return attempt{problems: []string{fmt.Sprintf("generation request failed: %v", err)}}
	}
	text := strings.Join(script.SplitLines(utils.StripCodeFences(raw)), "\n")
	res := script.Validate(text, g.cfg.Limits)
	return attempt{text: text, payload: raw, problems: res.Messages()}
}

// convertStructured декодирует JSON-ответ, проверяет структуру и рендерит события в текст сцены.
func convertStructured(raw string, limits script.Limits) (string, []string) {
	payload := utils.ExtractJsonObject(raw)
	if payload == "" {
		return "", []string{"response is not a JSON object"}
	}
	var doc script.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return "", []string{fmt.Sprintf("response does not match the events schema: %v", err)}
	}

	problems := checkStructure(doc.Events, limits)
	events, decodeProblems := doc.Decode()
	problems = append(problems, decodeProblems...)
	text, renderProblems := script.Render(events)
	problems = append(problems, renderProblems...)
	if len(problems) > 0 {
		return text, problems
	}
	return text, script.Validate(text, limits).Messages()
}

// checkStructure проверяет число событий и положение choice/end.
func checkStructure(events []script.RawEvent, limits script.Limits) []string {
	var problems []string
	n := len(events)
	if n < limits.MinLines || n > limits.MaxLines {
		problems = append(problems, fmt.Sprintf("slice must have %d-%d events, got %d", limits.MinLines, limits.MaxLines, n))
	}
	for i, ev := range events {
		kind := script.EventKind(strings.TrimSpace(ev.Type))
		terminal := kind == script.EventChoice || kind == script.EventEnd
		switch {
		case i == n-1 && !terminal:
			problems = append(problems, fmt.Sprintf("last event must be choice or end, got %q", ev.Type))
		case i < n-1 && terminal:
			problems = append(problems, fmt.Sprintf("event %d: %s is only allowed as the last event", i+1, kind))
		}
	}
	return problems
}

// call выполняет один запрос к модели со своим таймаутом и пишет журнал попыток.
func (g *Generator) call(ctx context.Context, stage models.GenerationStage, gc models.GenerationContext, req models.AIRequest) (string, error) {
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}

	base := models.AttemptRecord{
		StoryID:   gc.StoryID,
		SliceID:   gc.SliceID,
		SessionID: gc.SessionID,
		Stage:     stage,
		Model:     g.ai.Model(),
	}
	request := base
	request.Kind = models.AttemptRequest
	request.SystemPrompt = req.SystemPrompt
	request.UserPrompt = req.UserPrompt
	g.attempts.Record(request)

	start := time.Now()
	text, usage, err := g.ai.GenerateText(ctx, req)

	response := base
	response.Kind = models.AttemptResponse
	response.Response = text
	response.Usage = usage
	response.Duration = time.Since(start)
	if err != nil {
		response.Error = err.Error()
	}
	g.attempts.Record(response)

	if err != nil {
		g.logger.Warn("AI call failed",
			zap.String("storyID", gc.StoryID), zap.String("sliceID", gc.SliceID),
			zap.String("stage", string(stage)), zap.Error(err))
		return "", err
	}
	g.logger.Info("AI response",
		zap.String("storyID", gc.StoryID), zap.String("sliceID", gc.SliceID),
		zap.String("stage", string(stage)), zap.Duration("duration", response.Duration),
		zap.Int("completionTokens", usage.CompletionTokens),
		zap.String("preview", utils.StringShort(text, g.previewChars())))
	return text, nil
}

func (g *Generator) previewChars() int {
	if g.cfg.PreviewChars > 0 {
		return g.cfg.PreviewChars
	}
	return 200
}
