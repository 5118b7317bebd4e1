package models

import (
	"math"
	"strconv"
	"strings"
)

// StoryPlan - неизменяемый бриф истории, из которого генерируются все слайсы.
// Загружается один раз на историю и заменяется целиком при инвалидации.
type StoryPlan struct {
	Title       string                 `json:"title,omitempty" yaml:"title,omitempty"`
	Premise     string                 `json:"premise" yaml:"premise"`
	Theme       string                 `json:"theme,omitempty" yaml:"theme,omitempty"`
	Tone        string                 `json:"tone,omitempty" yaml:"tone,omitempty"`
	Endings     []interface{}          `json:"endings,omitempty" yaml:"endings,omitempty"` // строки или объекты с id/name/desc
	Cast        []CastMember           `json:"cast,omitempty" yaml:"cast,omitempty"`
	Signals     map[string]SignalDef   `json:"signals,omitempty" yaml:"signals,omitempty"`
	Outline     []string               `json:"outline,omitempty" yaml:"outline,omitempty"`
	Rules       []string               `json:"rules,omitempty" yaml:"rules,omitempty"`
	GoldenRules []string               `json:"golden_rules,omitempty" yaml:"golden_rules,omitempty"`
	Warmup      Warmup                 `json:"warmup,omitempty" yaml:"warmup,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// CastMember описывает персонажа из брифа.
type CastMember struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Goals []string `json:"goals,omitempty" yaml:"goals,omitempty"`
	Flaws []string `json:"flaws,omitempty" yaml:"flaws,omitempty"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// DisplayName возвращает имя персонажа, либо его ID, если имя не задано.
func (c CastMember) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return c.ID
}

// SignalDef - определение числового сигнала. Nil означает "не задано".
type SignalDef struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Default *float64 `json:"default,omitempty" yaml:"default,omitempty"`
	Desc    string   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Initial возвращает стартовое значение сигнала:
// default, иначе округленная середина [min,max], иначе 0.
func (d SignalDef) Initial() float64 {
	if d.Default != nil {
		return *d.Default
	}
	if d.Min != nil && d.Max != nil {
		return math.Round((*d.Min + *d.Max) / 2)
	}
	return 0
}

// Clamp ограничивает значение заданными границами (только теми, что определены).
func (d SignalDef) Clamp(v float64) float64 {
	if d.Min != nil && v < *d.Min {
		v = *d.Min
	}
	if d.Max != nil && v > *d.Max {
		v = *d.Max
	}
	return v
}

// Warmup - точка входа и глубина прогрева для истории.
type Warmup struct {
	Entry string `json:"entry,omitempty" yaml:"entry,omitempty"`
	Depth *int   `json:"depth,omitempty" yaml:"depth,omitempty"`
}

// DefaultWarmupDepth используется, если в плане не задана глубина прогрева.
const DefaultWarmupDepth = 2

// WarmupDepth возвращает глубину прогрева из плана или значение по умолчанию.
func (p *StoryPlan) WarmupDepth() int {
	if p == nil || p.Warmup.Depth == nil || *p.Warmup.Depth < 0 {
		return DefaultWarmupDepth
	}
	return *p.Warmup.Depth
}

// AllRules объединяет rules и golden_rules (в плане может встречаться любое из полей).
func (p *StoryPlan) AllRules() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Rules)+len(p.GoldenRules))
	out = append(out, p.Rules...)
	out = append(out, p.GoldenRules...)
	return out
}

// StringListParam читает из params список строк (например primaryRuntimeSeeds).
// Нестроковые элементы пропускаются.
func (p *StoryPlan) StringListParam(name string) []string {
	if p == nil || p.Params == nil {
		return nil
	}
	raw, ok := p.Params[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validate проверяет минимальную согласованность плана.
func (p *StoryPlan) Validate() []string {
	var problems []string
	for name, def := range p.Signals {
		if def.Min != nil && def.Max != nil && *def.Min > *def.Max {
			problems = append(problems, "signal "+name+": min is greater than max")
		}
	}
	for i, member := range p.Cast {
		if strings.TrimSpace(member.ID) == "" {
			problems = append(problems, "cast member without id at index "+strconv.Itoa(i))
		}
	}
	return problems
}
