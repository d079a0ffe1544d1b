package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/terrain/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/internal/usecase"
)

func (h *Handler) Tiles(c *gin.Context) {
	snapshot := h.terrainUseCase.Snapshot()
	h.RespondWithJSON(c, http.StatusOK, "visible tiles", dto.TilesFromSnapshot(snapshot))
}

func (h *Handler) Tile(c *gin.Context) {
	l := requestLogger(c)

	key, err := parseTileKey(c)
	if err != nil {
		l.Warn("invalid tile key", "z", c.Param("z"), "x", c.Param("x"), "y", c.Param("y"), "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	layer, err := tile.ParseLayer(c.Param("layer"))
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	data, err := h.terrainUseCase.Texture(c.Request.Context(), key, layer)
	switch {
	case errors.Is(err, usecase.ErrTileNotVisible), errors.Is(err, usecase.ErrLayerMissing):
		h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
		return
	case errors.Is(err, usecase.ErrStopped):
		h.RespondWithJSON(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	case err != nil:
		l.Error("failed to get tile texture", "tile", key, "layer", layer, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

func parseTileKey(c *gin.Context) (quadtree.Key, error) {
	z, err := strconv.Atoi(c.Param("z"))
	if err != nil {
		return quadtree.Key{}, errors.New("z should be integer")
	}
	x, err := strconv.Atoi(c.Param("x"))
	if err != nil {
		return quadtree.Key{}, errors.New("x should be integer")
	}
	y, err := strconv.Atoi(c.Param("y"))
	if err != nil {
		return quadtree.Key{}, errors.New("y should be integer")
	}

	if z < 0 || z > 30 || x < 0 || y < 0 || x >= 2<<z || y >= 1<<z {
		return quadtree.Key{}, ErrInvalidTileKey
	}
	return quadtree.NewKey(z, x, y), nil
}
