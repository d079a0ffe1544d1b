package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/terrain/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/terrain/internal/usecase"
)

func (h *Handler) UpdateObserver(c *gin.Context) {
	l := requestLogger(c)

	var req dto.Observer
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody.Error(), nil)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}

	err := h.terrainUseCase.SetObserver(c.Request.Context(), req.ToDomain())
	if errors.Is(err, usecase.ErrStopped) {
		h.RespondWithJSON(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	if err != nil {
		l.Error("failed to update observer", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	l.Debug("observer updated", "lat", req.Lat, "lon", req.Lon, "alt", req.Alt)
	h.RespondWithJSON(c, http.StatusAccepted, "observer updated", req)
}

func (h *Handler) Altitude(c *gin.Context) {
	l := requestLogger(c)

	var query dto.AltitudeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "lat and lon should be numbers", nil)
		return
	}
	if err := h.validate.Struct(query); err != nil {
		h.RespondWithJSON(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}

	altitude, err := h.terrainUseCase.Altitude(c.Request.Context(), query.Lat, query.Lon)
	if errors.Is(err, usecase.ErrNoElevation) {
		h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		l.Error("failed to sample altitude", "lat", query.Lat, "lon", query.Lon, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "altitude", dto.AltitudeResponse{
		Lat:      query.Lat,
		Lon:      query.Lon,
		Altitude: altitude,
	})
}
