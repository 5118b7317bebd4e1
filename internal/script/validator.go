package script

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// LineKind - форма строки скрипта.
type LineKind int

const (
	KindInvalid LineKind = iota
	KindIntro
	KindNarration
	KindDialog
	KindSetVar
	KindChoose
	KindEnd
)

const (
	endLine          = "end;"
	chooseLinePrefix = "choose:"
	introPrefix      = "intro:"
	setVarPrefix     = "setVar:"
)

var (
	speakerRe = regexp.MustCompile(`^[A-Za-z0-9 _()\[\]<>#"'.,-]+:`)
	setVarRe  = regexp.MustCompile(`^setVar:([A-Za-z0-9_]+)=(.+);$`)
	targetRe  = regexp.MustCompile(`^runtime/[A-Za-z0-9_-]+(/[A-Za-z0-9_-]+)*\.txt$`)
)

// Limits - допустимое окно количества строк в слайсе.
type Limits struct {
	MinLines int
	MaxLines int
}

// DefaultLimits - 4..9 строк.
func DefaultLimits() Limits {
	return Limits{MinLines: 4, MaxLines: 9}
}

// ValidationError описывает одну проблему. Line == 0 - ошибка всего слайса.
type ValidationError struct {
	Line    int
	Message string
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result - итог проверки грамматики.
type Result struct {
	Lines  []string
	Errors []ValidationError
}

// OK сообщает, прошел ли текст проверку.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Messages возвращает человекочитаемый список ошибок (для repair-промпта и логов).
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// Branch - один вариант выбора в строке choose.
type Branch struct {
	Label  string
	Target string
}

// SplitLines разбивает текст на непустые обрезанные строки.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// Classify определяет форму строки.
func Classify(line string) LineKind {
	switch {
	case line == endLine:
		return KindEnd
	case strings.HasPrefix(line, chooseLinePrefix):
		return KindChoose
	case strings.HasPrefix(line, introPrefix):
		return KindIntro
	case strings.HasPrefix(line, setVarPrefix):
		return KindSetVar
	case strings.HasPrefix(line, ":"):
		return KindNarration
	case speakerRe.MatchString(line):
		return KindDialog
	default:
		return KindInvalid
	}
}

// ParseSetVar разбирает строку setVar:<key>=<expression>;
func ParseSetVar(line string) (key, expression string, ok bool) {
	m := setVarRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// ParseChoose разбирает строку choose:<labelA>:<targetA>|<labelB>:<targetB>;
// Возвращает распознанные ветки и список проблем.
func ParseChoose(line string) ([]Branch, []string) {
	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, chooseLinePrefix), ";"))
	if body == "" {
		return nil, []string{"choose has no options"}
	}
	var (
		branches []Branch
		problems []string
	)
	parts := strings.Split(body, "|")
	if len(parts) != 2 {
		problems = append(problems, fmt.Sprintf("choose must have exactly two options, got %d", len(parts)))
	}
	for _, item := range parts {
		segments := strings.Split(item, ":")
		if len(segments) < 2 {
			problems = append(problems, fmt.Sprintf("malformed option %q", item))
			continue
		}
		target := strings.TrimSpace(segments[len(segments)-1])
		label := strings.TrimSpace(strings.Join(segments[:len(segments)-1], ":"))
		if label == "" {
			problems = append(problems, fmt.Sprintf("option %q has no label", item))
		}
		if !targetRe.MatchString(target) {
			problems = append(problems, fmt.Sprintf("invalid branch target %q, expected runtime/<arc>/<node>.txt", target))
			continue
		}
		branches = append(branches, Branch{Label: label, Target: target})
	}
	return branches, problems
}

// IsBranchTarget проверяет синтаксис цели ветки.
func IsBranchTarget(target string) bool { return targetRe.MatchString(target) }

// Validate проверяет текст слайса на соответствие грамматике сцен.
func Validate(text string, limits Limits) Result {
	lines := SplitLines(text)
	res := Result{Lines: lines}
	if len(lines) == 0 {
		res.Errors = append(res.Errors, ValidationError{Message: "script is empty"})
		return res
	}
	if len(lines) < limits.MinLines || len(lines) > limits.MaxLines {
		res.Errors = append(res.Errors, ValidationError{
			Message: fmt.Sprintf("script must have %d-%d lines, got %d", limits.MinLines, limits.MaxLines, len(lines)),
		})
	}

	last := len(lines) - 1
	for i, line := range lines {
		n := i + 1
		if !strings.HasSuffix(line, ";") {
			res.Errors = append(res.Errors, ValidationError{Line: n, Message: "missing trailing semicolon"})
		}
		if r, found := nonASCIIPunct(line); found {
			res.Errors = append(res.Errors, ValidationError{Line: n, Message: fmt.Sprintf("contains full-width punctuation %q: %s", r, line)})
		}

		kind := Classify(line)
		if i == last {
			switch kind {
			case KindEnd:
			case KindChoose:
				_, problems := ParseChoose(line)
				for _, p := range problems {
					res.Errors = append(res.Errors, ValidationError{Line: n, Message: p})
				}
			default:
				res.Errors = append(res.Errors, ValidationError{Line: n, Message: fmt.Sprintf("last line must be choose: or end;, got: %s", line)})
			}
			continue
		}

		switch kind {
		case KindEnd, KindChoose:
			res.Errors = append(res.Errors, ValidationError{Line: n, Message: "choose: and end; are only allowed on the last line"})
		case KindIntro:
			if bodyOf(line, introPrefix) == "" {
				res.Errors = append(res.Errors, ValidationError{Line: n, Message: "intro has no text"})
			}
		case KindNarration:
			if bodyOf(line, ":") == "" {
				res.Errors = append(res.Errors, ValidationError{Line: n, Message: "narration has no text"})
			}
		case KindSetVar:
			if _, _, ok := ParseSetVar(line); !ok {
				res.Errors = append(res.Errors, ValidationError{Line: n, Message: fmt.Sprintf("malformed setVar, expected setVar:<key>=<expression>;: %s", line)})
			}
		case KindDialog:
		default:
			res.Errors = append(res.Errors, ValidationError{Line: n, Message: fmt.Sprintf("invalid command: %s", line)})
		}
	}
	return res
}

func bodyOf(line, prefix string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, prefix), ";"))
}

func nonASCIIPunct(line string) (rune, bool) {
	for _, r := range line {
		if r > unicode.MaxASCII && unicode.IsPunct(r) {
			return r, true
		}
	}
	return 0, false
}
