package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_runtime_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_runtime_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~2m
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_runtime_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_runtime_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
	stageOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_runtime_generator_stage_total",
			Help: "Generation pipeline stage outcomes (accepted/rejected).",
		},
		[]string{"stage", "outcome"},
	)
	sentinelSlicesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "novel_runtime_generator_sentinel_total",
			Help: "Slices that fell through every stage and were replaced by a sentinel.",
		},
	)
)

func observeUsage(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		aiPromptTokens.WithLabelValues(model).Observe(float64(promptTokens))
	}
	if completionTokens > 0 {
		aiCompletionTokens.WithLabelValues(model).Observe(float64(completionTokens))
	}
}
