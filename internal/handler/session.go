package handler

import (
	"net/http"
	"strings"

	"novel-runtime/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionHeader - заголовок с идентификатором сессии игрока.
	SessionHeader = "X-WebGAL-Session"
	// SessionCookie - cookie с тем же идентификатором.
	SessionCookie = "webgal_sid"
)

// incomingSession читает сессию из заголовка, затем из cookie. Пустая строка - сессии нет.
func incomingSession(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(SessionHeader)); v != "" {
		return models.NormalizeSessionID(v)
	}
	if v, err := c.Cookie(SessionCookie); err == nil && strings.TrimSpace(v) != "" {
		return models.NormalizeSessionID(v)
	}
	return ""
}

// ensureSession возвращает сессию запроса, выдавая новую (UUID в cookie), если ее нет.
func ensureSession(c *gin.Context) string {
	if sid := incomingSession(c); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
