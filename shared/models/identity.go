package models

import "strings"

const (
	// DefaultStoryID и DefaultSessionID подставляются для пустых идентификаторов.
	DefaultStoryID   = "default"
	DefaultSessionID = "default"

	maxSessionIDLength = 64
)

// NormalizeStoryID приводит идентификатор истории к нижнему регистру.
func NormalizeStoryID(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return DefaultStoryID
	}
	return id
}

// NormalizeSessionID обрезает пробелы и длину идентификатора сессии.
func NormalizeSessionID(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) > maxSessionIDLength {
		id = id[:maxSessionIDLength]
	}
	if id == "" {
		return DefaultSessionID
	}
	return id
}
