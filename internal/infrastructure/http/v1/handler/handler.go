package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/terrain/internal/usecase"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate       *validator.Validate
	terrainUseCase *usecase.TerrainUseCase
}

func NewHandler(v *validator.Validate, uc *usecase.TerrainUseCase) *Handler {
	return &Handler{
		validate:       v,
		terrainUseCase: uc,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func requestLogger(c *gin.Context) logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if l, ok := l.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
