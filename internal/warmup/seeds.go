package warmup

import (
	"strings"

	"novel-runtime/internal/script"
	"novel-runtime/shared/models"
)

const (
	primarySeedsParam   = "primaryRuntimeSeeds"
	secondarySeedsParam = "secondaryRuntimeSeeds"
)

// DefaultEntry - входной слайс, если план не задает ни одного сида.
var DefaultEntry = script.SliceID(script.DefaultArc + "/entry")

// CollectSeeds возвращает входные слайсы истории в порядке warmup.entry,
// primaryRuntimeSeeds, secondaryRuntimeSeeds без повторов.
// Некорректные идентификаторы пропускаются.
func CollectSeeds(plan *models.StoryPlan) []script.SliceID {
	var raw []string
	if plan != nil {
		raw = append(raw, plan.Warmup.Entry)
	}
	raw = append(raw, plan.StringListParam(primarySeedsParam)...)
	raw = append(raw, plan.StringListParam(secondarySeedsParam)...)

	seen := make(map[script.SliceID]struct{}, len(raw))
	seeds := make([]script.SliceID, 0, len(raw))
	for _, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		id, err := script.NormalizeSliceID(value)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		seeds = append(seeds, id)
	}
	if len(seeds) == 0 {
		seeds = append(seeds, DefaultEntry)
	}
	return seeds
}
