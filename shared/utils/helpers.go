package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonBlockRegex = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyBlockRegex  = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*(.*?)\\s*```")
)

func isValidJson(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// ExtractJsonObject достает JSON-объект из ответа модели: из блока ```json```,
// из любого ``` блока, либо между первой { и последней }.
// Возвращает пустую строку, если валидного JSON не нашлось.
func ExtractJsonObject(rawText string) string {
	rawText = strings.TrimSpace(rawText)
	if isValidJson(rawText) {
		return rawText
	}

	for _, re := range []*regexp.Regexp{jsonBlockRegex, anyBlockRegex} {
		if m := re.FindStringSubmatch(rawText); len(m) > 1 && isValidJson(m[1]) {
			return m[1]
		}
	}

	first := strings.Index(rawText, "{")
	last := strings.LastIndex(rawText, "}")
	if first != -1 && last > first {
		if candidate := rawText[first : last+1]; isValidJson(candidate) {
			return candidate
		}
	}
	return ""
}

// StripCodeFences убирает обрамляющие ``` (с языком или без) вокруг текста.
func StripCodeFences(rawText string) string {
	text := strings.TrimSpace(rawText)
	if m := anyBlockRegex.FindStringSubmatch(text); len(m) > 1 && strings.HasPrefix(text, "```") {
		return strings.TrimSpace(m[1])
	}
	return text
}

// StringShort обрезает строку до указанной максимальной длины (в рунах),
// добавляя многоточие, если строка была обрезана.
func StringShort(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
