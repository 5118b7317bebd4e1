package script

import (
	"fmt"
	"regexp"
	"strings"

	"novel-runtime/shared/models"
)

// SliceID - каноничный идентификатор слайса вида "arc/node".
type SliceID string

const (
	// DefaultArc подставляется для "голого" имени узла.
	DefaultArc = "act-1"

	runtimePrefix = "runtime/"
	sliceSuffix   = ".txt"
)

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NormalizeSliceID приводит любую внешнюю форму ("node", "arc/node", "runtime/arc/node.txt",
// "arc/node.txt") к каноничной. Нормализация идемпотентна.
func NormalizeSliceID(raw string) (SliceID, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	for {
		prev := s
		s = strings.Trim(s, "/ ")
		s = strings.TrimPrefix(s, runtimePrefix)
		s = strings.TrimSuffix(s, sliceSuffix)
		if s == prev {
			break
		}
	}
	if s == "" {
		return "", fmt.Errorf("%w: %q is empty", models.ErrInvalidSliceID, raw)
	}
	if !strings.Contains(s, "/") {
		s = DefaultArc + "/" + s
	}
	for _, segment := range strings.Split(s, "/") {
		if !segmentRe.MatchString(segment) {
			return "", fmt.Errorf("%w: %q has invalid segment %q", models.ErrInvalidSliceID, raw, segment)
		}
	}
	return SliceID(s), nil
}

// MustSliceID - вариант для констант и тестов.
func MustSliceID(raw string) SliceID {
	id, err := NormalizeSliceID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (id SliceID) String() string { return string(id) }

// Path возвращает форму, которую используют ветки choose: runtime/<arc>/<node>.txt.
func (id SliceID) Path() string { return runtimePrefix + string(id) + sliceSuffix }
