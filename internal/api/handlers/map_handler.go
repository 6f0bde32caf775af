package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"manualsmap/internal/api/middleware"
	"manualsmap/internal/session"
)

// MapHandler groups the endpoints a browser map calls while the user pans,
// zooms and taps overlays.
type MapHandler struct {
	cars session.CarLister
}

// NewMapHandler creates a MapHandler. cars lists every car for the landmark
// markers.
func NewMapHandler(cars session.CarLister) *MapHandler {
	return &MapHandler{cars: cars}
}

// UpdateRegion handles PUT /sessions/:id/region.
// This is the region-change-end event: the viewport is stored and the
// overlays are refreshed for it.
func (h *MapHandler) UpdateRegion(c *gin.Context) {
	var req RegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := middleware.GetSession(c).MoveTo(c.Request.Context(), req.Region())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOverlays handles GET /sessions/:id/overlays as a GeoJSON
// FeatureCollection.
func (h *MapHandler) GetOverlays(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.GetSession(c).Map.FeatureCollection())
}

// SelectOverlay handles POST /sessions/:id/overlays/:blockId/select.
func (h *MapHandler) SelectOverlay(c *gin.Context) {
	blockID, ok := blockIDParam(c)
	if !ok {
		return
	}

	result, err := middleware.GetSession(c).Sync.Select(c.Request.Context(), blockID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeselectOverlay handles POST /sessions/:id/overlays/:blockId/deselect.
func (h *MapHandler) DeselectOverlay(c *gin.Context) {
	blockID, ok := blockIDParam(c)
	if !ok {
		return
	}

	if err := middleware.GetSession(c).Sync.Deselect(blockID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blockId": blockID, "selected": false})
}

// SelectAt handles POST /sessions/:id/select-at.
// It selects the overlay under a tapped coordinate.
func (h *MapHandler) SelectAt(c *gin.Context) {
	var req CoordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := middleware.GetSession(c).Sync.SelectAt(c.Request.Context(), req.Coordinate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCars handles GET /sessions/:id/cars, the drawer contents.
func (h *MapHandler) GetCars(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.GetSession(c).Display.Contents())
}

// GetAnnotations handles GET /sessions/:id/annotations.
func (h *MapHandler) GetAnnotations(c *gin.Context) {
	views, err := middleware.GetSession(c).Map.Annotations()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": views})
}

// ShowLandmarks handles POST /sessions/:id/landmarks.
// Every car is marked on the map with a landmark callout.
func (h *MapHandler) ShowLandmarks(c *gin.Context) {
	n, err := middleware.GetSession(c).ShowCarLandmarks(c.Request.Context(), h.cars)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"landmarks": n})
}

func blockIDParam(c *gin.Context) (int, bool) {
	blockID, err := strconv.Atoi(c.Param("blockId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block id"})
		return 0, false
	}
	return blockID, true
}
