package handler

import (
	"errors"
	"net/http"
	"strings"

	"novel-runtime/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const scriptContentType = "text/plain; charset=utf-8"

type bootstrapRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *RuntimeHandler) getRuntimeSlice(c *gin.Context) {
	storyID := models.NormalizeStoryID(c.Param("story"))
	raw := strings.TrimPrefix(c.Param("slice"), "/")
	sliceID := strings.TrimSuffix(raw, ".txt")
	sessionID := ensureSession(c)

	text, err := h.delivery.Ensure(c.Request.Context(), storyID, sessionID, sliceID,
		models.EnsureOptions{Depth: models.DepthDefault})
	c.Header(SessionHeader, sessionID)

	switch {
	case err == nil:
		c.Data(http.StatusOK, scriptContentType, []byte(text))
	case errors.Is(err, models.ErrSliceUnavailable):
		// заглушка - валидная сцена, клиент ее показывает
		c.Data(http.StatusOK, scriptContentType, []byte(text))
	case errors.Is(err, models.ErrPlanNotFound), errors.Is(err, models.ErrInvalidPlan):
		h.logger.Warn("Runtime slice requested for story without a usable plan",
			zap.String("storyID", storyID), zap.String("sliceID", sliceID), zap.Error(err))
		c.Data(http.StatusNotFound, scriptContentType, []byte(";runtime slice "+sliceID+" missing;\nend;"))
	case errors.Is(err, models.ErrInvalidSliceID):
		h.logger.Warn("Invalid runtime slice id",
			zap.String("storyID", storyID), zap.String("sliceID", raw), zap.Error(err))
		c.Data(http.StatusBadRequest, scriptContentType, []byte(text))
	default:
		h.logger.Error("Runtime slice failed",
			zap.String("storyID", storyID), zap.String("sliceID", sliceID), zap.Error(err))
		c.Data(http.StatusInternalServerError, scriptContentType, []byte(";runtime slice "+sliceID+" error;\nend;"))
	}
}

func (h *RuntimeHandler) bootstrapStory(c *gin.Context) {
	storyID := models.NormalizeStoryID(c.Param("story"))

	var req bootstrapRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Invalid bootstrap request body", zap.String("storyID", storyID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
			return
		}
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = incomingSession(c)
	}

	report, err := h.bootstrap.Bootstrap(c.Request.Context(), storyID, sessionID)
	if err != nil {
		h.logger.Error("Bootstrap failed", zap.String("storyID", storyID), zap.Error(err))
		handleServiceError(c, err)
		return
	}
	h.logger.Info("Story bootstrapped",
		zap.String("storyID", report.StoryID),
		zap.String("sessionID", report.SessionID),
		zap.Int("seeds", len(report.Seeds)),
		zap.Int("failed", len(report.Failed)),
	)
	c.JSON(http.StatusOK, report)
}
