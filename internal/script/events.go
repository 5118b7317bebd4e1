package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// EventKind - тип события в структурированном ответе модели.
type EventKind string

const (
	EventIntro     EventKind = "intro"
	EventNarration EventKind = "narration"
	EventDialog    EventKind = "dialog"
	EventSetVar    EventKind = "setVar"
	EventChoice    EventKind = "choice"
	EventEnd       EventKind = "end"
)

// ErrUnknownEventKind - модель вернула событие неизвестного типа.
var ErrUnknownEventKind = errors.New("unknown event kind")

// Event - одно событие сцены. Каждое событие рендерится ровно в одну строку.
type Event interface {
	Kind() EventKind
	Line() (string, error)
}

type IntroEvent struct{ Text string }
type NarrationEvent struct{ Text string }
type DialogEvent struct{ Speaker, Text string }
type SetVarEvent struct{ Key, Expression string }
type ChoiceEvent struct{ Options []ChoiceOption }
type EndEvent struct{}

// ChoiceOption - вариант выбора с меткой и целью вида runtime/<arc>/<node>.txt.
type ChoiceOption struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

func (IntroEvent) Kind() EventKind     { return EventIntro }
func (NarrationEvent) Kind() EventKind { return EventNarration }
func (DialogEvent) Kind() EventKind    { return EventDialog }
func (SetVarEvent) Kind() EventKind    { return EventSetVar }
func (ChoiceEvent) Kind() EventKind    { return EventChoice }
func (EndEvent) Kind() EventKind       { return EventEnd }

func (e IntroEvent) Line() (string, error) {
	text := cleanText(e.Text)
	if text == "" {
		return "", errors.New("intro text is empty")
	}
	return introPrefix + text + ";", nil
}

func (e NarrationEvent) Line() (string, error) {
	text := cleanText(e.Text)
	if text == "" {
		return "", errors.New("narration text is empty")
	}
	return ":" + text + ";", nil
}

var reservedSpeakers = map[string]struct{}{
	"intro":  {},
	"choose": {},
	"setvar": {},
	"end":    {},
}

func (e DialogEvent) Line() (string, error) {
	speaker := cleanSpeaker(e.Speaker)
	if speaker == "" {
		return "", errors.New("dialog speaker is empty")
	}
	if _, reserved := reservedSpeakers[strings.ToLower(speaker)]; reserved {
		return "", fmt.Errorf("speaker %q is a reserved command name", speaker)
	}
	text := cleanText(e.Text)
	if text == "" {
		return "", errors.New("dialog text is empty")
	}
	return speaker + ":" + text + ";", nil
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (e SetVarEvent) Line() (string, error) {
	key := strings.TrimSpace(e.Key)
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("invalid setVar key %q", e.Key)
	}
	expr := cleanText(e.Expression)
	if expr == "" {
		return "", fmt.Errorf("setVar %s has empty expression", key)
	}
	return setVarPrefix + key + "=" + expr + ";", nil
}

func (e ChoiceEvent) Line() (string, error) {
	if len(e.Options) != 2 {
		return "", fmt.Errorf("choice must have exactly two options, got %d", len(e.Options))
	}
	parts := make([]string, 0, 2)
	for i, opt := range e.Options {
		label := cleanLabel(opt.Label)
		if label == "" {
			return "", fmt.Errorf("choice option %d has empty label", i+1)
		}
		target := strings.TrimSpace(opt.Target)
		if !IsBranchTarget(target) {
			return "", fmt.Errorf("choice option %d target %q does not match runtime/<arc>/<node>.txt", i+1, opt.Target)
		}
		parts = append(parts, label+":"+target)
	}
	return chooseLinePrefix + strings.Join(parts, "|") + ";", nil
}

func (EndEvent) Line() (string, error) { return endLine, nil }

// RawEvent - событие в том виде, в каком его присылает модель (JSON-схема webgal_slice).
type RawEvent struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	Speaker    string         `json:"speaker,omitempty"`
	Key        string         `json:"key,omitempty"`
	Expression string         `json:"expression,omitempty"`
	Options    []ChoiceOption `json:"options,omitempty"`
}

// Document - корневой объект структурированного ответа.
type Document struct {
	Events []RawEvent `json:"events"`
}

// Decode превращает сырое событие в типизированное.
func (r RawEvent) Decode() (Event, error) {
	switch EventKind(strings.TrimSpace(r.Type)) {
	case EventIntro:
		return IntroEvent{Text: r.Text}, nil
	case EventNarration:
		return NarrationEvent{Text: r.Text}, nil
	case EventDialog:
		return DialogEvent{Speaker: r.Speaker, Text: r.Text}, nil
	case EventSetVar:
		return SetVarEvent{Key: r.Key, Expression: r.Expression}, nil
	case EventChoice:
		return ChoiceEvent{Options: r.Options}, nil
	case EventEnd:
		return EndEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, r.Type)
	}
}

// Decode декодирует все события документа. Ошибки собираются, а не прерывают разбор.
func (d Document) Decode() ([]Event, []string) {
	var (
		events   []Event
		problems []string
	)
	for i, raw := range d.Events {
		ev, err := raw.Decode()
		if err != nil {
			problems = append(problems, fmt.Sprintf("event %d: %v", i+1, err))
			continue
		}
		events = append(events, ev)
	}
	return events, problems
}

// Render рендерит события в текст сцены, по одной строке на событие.
// Второй результат - список проблем рендеринга; при непустом списке текст неполон.
func Render(events []Event) (string, []string) {
	lines := make([]string, 0, len(events))
	var problems []string
	for i, ev := range events {
		line, err := ev.Line()
		if err != nil {
			problems = append(problems, fmt.Sprintf("event %d (%s): %v", i+1, ev.Kind(), err))
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), problems
}

var fullWidthReplacer = strings.NewReplacer(
	"：", ":", "；", ",", "，", ",", "。", ".", "！", "!", "？", "?",
	"（", "(", "）", ")", "【", "[", "】", "]", "《", "<", "》", ">",
	"、", ",", "“", `"`, "”", `"`, "‘", "'", "’", "'",
	"—", "-", "–", "-", "…", "...",
)

// cleanText приводит свободный текст к ASCII-пунктуации и одной строке.
func cleanText(s string) string {
	s = fullWidthReplacer.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > unicode.MaxASCII && unicode.IsPunct(r) {
			continue
		}
		if r == ';' {
			r = ','
		}
		b.WriteRune(r)
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	return strings.TrimRight(out, ", ")
}

// cleanLabel дополнительно убирает разделители choose.
func cleanLabel(s string) string {
	s = strings.NewReplacer(":", " ", "|", " ").Replace(cleanText(s))
	return strings.Join(strings.Fields(s), " ")
}

// cleanSpeaker оставляет только символы, допустимые в имени говорящего.
func cleanSpeaker(s string) string {
	s = fullWidthReplacer.Replace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case strings.ContainsRune(` _()[]<>#"'.,-`, r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
