// Package handler - тонкий HTTP-адаптер над выдачей слайсов.
package handler

import (
	"errors"
	"net/http"

	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError - тело JSON-ответа об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// RuntimeHandler обслуживает маршруты рантайма.
type RuntimeHandler struct {
	delivery  interfaces.SliceEnsurer
	bootstrap interfaces.StoryBootstrapper
	plans     interfaces.PlanProvider
	logger    *zap.Logger
}

func NewRuntimeHandler(
	delivery interfaces.SliceEnsurer,
	bootstrap interfaces.StoryBootstrapper,
	plans interfaces.PlanProvider,
	logger *zap.Logger,
) *RuntimeHandler {
	return &RuntimeHandler{
		delivery:  delivery,
		bootstrap: bootstrap,
		plans:     plans,
		logger:    logger.Named("RuntimeHandler"),
	}
}

// RegisterRoutes регистрирует маршруты рантайма.
// bootstrapMiddleware применяется только к bootstrap (например, ограничение частоты).
func (h *RuntimeHandler) RegisterRoutes(r gin.IRouter, bootstrapMiddleware ...gin.HandlerFunc) {
	r.GET("/health", h.health)
	r.HEAD("/health", h.health)
	r.GET("/games/:story/scene/runtime/*slice", h.getRuntimeSlice)

	api := r.Group("/api")
	{
		api.GET("/stories", h.listStories)
		bootstrap := append(append([]gin.HandlerFunc{}, bootstrapMiddleware...), h.bootstrapStory)
		api.POST("/stories/:story/bootstrap", bootstrap...)
	}
}

func (h *RuntimeHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *RuntimeHandler) listStories(c *gin.Context) {
	stories, err := h.plans.ListStories(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list stories", zap.Error(err))
		handleServiceError(c, err)
		return
	}
	if stories == nil {
		stories = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

// handleServiceError отображает доменные ошибки в JSON-ответ.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrPlanNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Story plan not found"}
	case errors.Is(err, models.ErrInvalidPlan):
		statusCode = http.StatusUnprocessableEntity
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrInvalidSliceID):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	c.AbortWithStatusJSON(statusCode, apiErr)
}
