package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"novel-runtime/shared/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Source - источник документов с планами историй.
type Source interface {
	Load(ctx context.Context, storyID string) (*models.StoryPlan, error)
	List(ctx context.Context) ([]string, error)
}

// planFiles - имена файлов плана в порядке приоритета.
var planFiles = []string{"plan.json", "plan.yaml", "plan.yml"}

// FileSource читает планы из <root>/<story>/story/plan.{json,yaml}.
// Корни просматриваются по порядку, побеждает первый найденный файл.
type FileSource struct {
	roots  []string
	logger *zap.Logger
}

// NewFileSource создает файловый источник планов.
func NewFileSource(roots []string, logger *zap.Logger) *FileSource {
	return &FileSource{roots: roots, logger: logger.Named("PlanFileSource")}
}

// Load читает и декодирует план истории.
func (s *FileSource) Load(ctx context.Context, storyID string) (*models.StoryPlan, error) {
	if !safeStoryID(storyID) {
		return nil, fmt.Errorf("%w: unsafe story id %q", models.ErrPlanNotFound, storyID)
	}
	for _, root := range s.roots {
		for _, name := range planFiles {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			path := filepath.Join(root, storyID, "story", name)
			data, err := os.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("read plan %s: %w", path, err)
			}
			plan, err := decode(name, data)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidPlan, path, err)
			}
			s.logger.Debug("Plan loaded", zap.String("storyID", storyID), zap.String("path", path))
			return plan, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrPlanNotFound, storyID)
}

// List возвращает отсортированный список историй, у которых есть план.
func (s *FileSource) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, root := range s.roots {
		entries, err := os.ReadDir(root)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Games directory does not exist", zap.String("root", root))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list games in %s: %w", root, err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !entry.IsDir() {
				continue
			}
			story := models.NormalizeStoryID(entry.Name())
			if story != entry.Name() {
				continue
			}
			if hasPlan(filepath.Join(root, entry.Name(), "story")) {
				seen[story] = struct{}{}
			}
		}
	}
	stories := make([]string, 0, len(seen))
	for story := range seen {
		stories = append(stories, story)
	}
	sort.Strings(stories)
	return stories, nil
}

func hasPlan(dir string) bool {
	for _, name := range planFiles {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func decode(name string, data []byte) (*models.StoryPlan, error) {
	var plan models.StoryPlan
	var err error
	if strings.HasSuffix(name, ".json") {
		err = json.Unmarshal(data, &plan)
	} else {
		err = yaml.Unmarshal(data, &plan)
	}
	if err != nil {
		return nil, err
	}
	if problems := plan.Validate(); len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return &plan, nil
}

func safeStoryID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
