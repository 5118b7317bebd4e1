package generator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"novel-runtime/internal/script"
	"novel-runtime/shared/models"
)

// planBrief описывает план для системного промпта.
func planBrief(plan *models.StoryPlan) string {
	var sb strings.Builder
	if plan == nil {
		return ""
	}
	writeField(&sb, "Title", plan.Title)
	writeField(&sb, "Premise", plan.Premise)
	writeField(&sb, "Theme", plan.Theme)
	writeField(&sb, "Tone", plan.Tone)

	if len(plan.Cast) > 0 {
		sb.WriteString("Cast:\n")
		for _, member := range plan.Cast {
			fmt.Fprintf(&sb, "- %s (id %s)", member.DisplayName(), member.ID)
			if len(member.Goals) > 0 {
				fmt.Fprintf(&sb, "; goals: %s", strings.Join(member.Goals, ", "))
			}
			if len(member.Flaws) > 0 {
				fmt.Fprintf(&sb, "; flaws: %s", strings.Join(member.Flaws, ", "))
			}
			if len(member.Tags) > 0 {
				fmt.Fprintf(&sb, "; tags: %s", strings.Join(member.Tags, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if len(plan.Signals) > 0 {
		sb.WriteString("Signals (numeric story variables):\n")
		for _, name := range sortedSignalNames(plan.Signals) {
			def := plan.Signals[name]
			fmt.Fprintf(&sb, "- %s: range %s..%s", name, bound(def.Min), bound(def.Max))
			if def.Desc != "" {
				fmt.Fprintf(&sb, ", %s", def.Desc)
			}
			sb.WriteString("\n")
		}
	}

	writeList(&sb, "Outline", plan.Outline, true)
	writeList(&sb, "Endings", endingNames(plan.Endings), false)
	writeList(&sb, "Rules", plan.AllRules(), false)
	return sb.String()
}

func writeField(sb *strings.Builder, name, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Fprintf(sb, "%s: %s\n", name, strings.TrimSpace(value))
	}
}

func writeList(sb *strings.Builder, name string, items []string, numbered bool) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(name + ":\n")
	for i, item := range items {
		if numbered {
			fmt.Fprintf(sb, "%d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(sb, "- %s\n", item)
		}
	}
}

func bound(v *float64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func sortedSignalNames(signals map[string]models.SignalDef) []string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// endingNames понимает концовки и строками, и объектами {id,name,desc}.
func endingNames(endings []interface{}) []string {
	out := make([]string, 0, len(endings))
	for _, e := range endings {
		switch v := e.(type) {
		case string:
			out = append(out, v)
		case map[string]interface{}:
			parts := make([]string, 0, 2)
			for _, key := range []string{"name", "id"} {
				if s, ok := v[key].(string); ok && s != "" {
					parts = append(parts, s)
					break
				}
			}
			if s, ok := v["desc"].(string); ok && s != "" {
				parts = append(parts, s)
			}
			if len(parts) > 0 {
				out = append(out, strings.Join(parts, ": "))
			}
		}
	}
	return out
}

func grammarRules(limits script.Limits) string {
	return fmt.Sprintf(`Scene rules:
- A slice has %d to %d lines (events).
- The last event is either a choice with exactly two options or end. No earlier event may be a choice or end.
- Choice targets look like runtime/<arc>/<node>.txt, for example runtime/act-1/harbor.txt.
- setVar may only change the signals listed above. Expressions: a number, <signal> + <number>, <signal> - <number>, or another signal name.
- Use ASCII punctuation only. Never use full-width punctuation.
- Speakers are short Latin names. Never use intro, choose, setVar or end as a speaker.`, limits.MinLines, limits.MaxLines)
}

// structuredSystemPrompt - системный промпт структурированных стадий.
func structuredSystemPrompt(plan *models.StoryPlan, limits script.Limits) string {
	return "You are the narrative engine of a visual novel. You write the next short scene (a slice) as a JSON object {\"events\": [...]}.\n" +
		"Event types: intro{text}, narration{text}, dialog{speaker,text}, setVar{key,expression}, choice{options:[{label,target},{label,target}]}, end.\n\n" +
		planBrief(plan) + "\n" + grammarRules(limits) + "\nReturn JSON only."
}

// freeformSystemPrompt - системный промпт запасной стадии без схемы.
func freeformSystemPrompt(plan *models.StoryPlan, limits script.Limits) string {
	return "You are the narrative engine of a visual novel. Output WebGAL script lines only, no explanations, no Markdown.\n" +
		"Line forms: intro:<text>; | :<text>; | <speaker>:<text>; | setVar:<key>=<expression>; | choose:<labelA>:<targetA>|<labelB>:<targetB>; | end;\n" +
		"Every line ends with a semicolon.\n\n" +
		planBrief(plan) + "\n" + grammarRules(limits)
}

// userPrompt описывает текущее положение игрока и запрошенный слайс.
func userPrompt(gc models.GenerationContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story: %s\n", gc.StoryID)
	fmt.Fprintf(&sb, "Write slice %s (file %s).\n", gc.SliceID, "runtime/"+gc.SliceID+".txt")
	fmt.Fprintf(&sb, "Recap so far: %s\n", gc.Recap)
	if len(gc.Signals) > 0 {
		names := make([]string, 0, len(gc.Signals))
		for name := range gc.Signals {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, 0, len(names))
		for _, name := range names {
			pairs = append(pairs, name+"="+strconv.FormatFloat(gc.Signals[name], 'f', -1, 64))
		}
		fmt.Fprintf(&sb, "Current signals: %s\n", strings.Join(pairs, ", "))
	}
	return sb.String()
}

// repairPrompt повторяет контекст и добавляет список ошибок и невалидный ответ.
func repairPrompt(gc models.GenerationContext, problems []string, payload string) string {
	var sb strings.Builder
	sb.WriteString(userPrompt(gc))
	sb.WriteString("\nYour previous answer was rejected. Problems:\n")
	for _, p := range problems {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	if strings.TrimSpace(payload) != "" {
		fmt.Fprintf(&sb, "\nPrevious answer:\n%s\n", payload)
	}
	sb.WriteString("\nReturn a corrected JSON object that fixes every problem.")
	return sb.String()
}
