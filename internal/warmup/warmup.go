// Package warmup прогревает входные слайсы историй: по запросу (bootstrap)
// и при старте сервиса для всех историй с планом.
package warmup

import (
	"context"
	"fmt"

	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"go.uber.org/zap"
)

// Bootstrapper реализует interfaces.StoryBootstrapper.
type Bootstrapper struct {
	plans    interfaces.PlanProvider
	delivery interfaces.SliceEnsurer
	logger   *zap.Logger
}

var _ interfaces.StoryBootstrapper = (*Bootstrapper)(nil)

func New(plans interfaces.PlanProvider, delivery interfaces.SliceEnsurer, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{plans: plans, delivery: delivery, logger: logger.Named("Warmup")}
}

// BootstrapSession - сессия, под которой греется история, если клиент ее не передал.
func BootstrapSession(storyID string) string { return "bootstrap-" + storyID }

// WarmupSession - сессия стартового прогрева.
func WarmupSession(storyID string) string { return "warmup-" + storyID }

// Bootstrap перечитывает план истории и синхронно прогревает ее сиды как префетч.
// Ошибка одного сида не прерывает прогрев остальных, сид попадает в Failed.
func (b *Bootstrapper) Bootstrap(ctx context.Context, storyID, sessionID string) (models.BootstrapReport, error) {
	storyID = models.NormalizeStoryID(storyID)
	if sessionID == "" {
		sessionID = BootstrapSession(storyID)
	}
	sessionID = models.NormalizeSessionID(sessionID)

	b.plans.Invalidate(storyID)
	return b.warm(ctx, storyID, sessionID)
}

// WarmAll прогревает все истории, у которых есть план. Ошибки логируются.
func (b *Bootstrapper) WarmAll(ctx context.Context) []models.BootstrapReport {
	stories, err := b.plans.ListStories(ctx)
	if err != nil {
		b.logger.Error("Failed to list stories for warmup", zap.Error(err))
		return nil
	}
	reports := make([]models.BootstrapReport, 0, len(stories))
	for _, storyID := range stories {
		if ctx.Err() != nil {
			b.logger.Warn("Warmup interrupted", zap.Error(ctx.Err()))
			break
		}
		report, err := b.warm(ctx, storyID, WarmupSession(storyID))
		if err != nil {
			b.logger.Error("Story warmup failed", zap.String("storyID", storyID), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

func (b *Bootstrapper) warm(ctx context.Context, storyID, sessionID string) (models.BootstrapReport, error) {
	report := models.BootstrapReport{StoryID: storyID, SessionID: sessionID}

	plan, err := b.plans.GetPlan(ctx, storyID)
	if err != nil {
		return report, fmt.Errorf("load plan for %s: %w", storyID, err)
	}
	report.Depth = plan.WarmupDepth()

	for _, seed := range CollectSeeds(plan) {
		b.logger.Info("Warming slice",
			zap.String("storyID", storyID),
			zap.String("sessionID", sessionID),
			zap.String("sliceID", string(seed)),
			zap.Int("depth", report.Depth),
		)
		_, err := b.delivery.Ensure(ctx, storyID, sessionID, string(seed),
			models.EnsureOptions{Prefetch: true, Depth: report.Depth})
		if err != nil {
			b.logger.Warn("Seed warmup failed",
				zap.String("storyID", storyID),
				zap.String("sessionID", sessionID),
				zap.String("sliceID", string(seed)),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, seed.Path())
			continue
		}
		report.Seeds = append(report.Seeds, seed.Path())
	}
	return report, nil
}
