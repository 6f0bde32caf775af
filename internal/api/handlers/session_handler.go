package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"manualsmap/internal/api/middleware"
	"manualsmap/internal/domain/entities"
	"manualsmap/internal/mapview"
	"manualsmap/internal/repository"
	"manualsmap/internal/repository/memory"
	"manualsmap/internal/services"
	"manualsmap/internal/session"
	"manualsmap/pkg/utils"
)

// SessionHandler creates, describes and closes map sessions. A session is
// one browser map with its own overlays, drawer and add-car draft.
type SessionHandler struct {
	repo    repository.SessionRepository
	factory *session.Factory
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(repo repository.SessionRepository, factory *session.Factory) *SessionHandler {
	return &SessionHandler{repo: repo, factory: factory}
}

// CoordinateRequest is a latitude/longitude pair in a request body.
//
// Go Learning Note — Pointers for required numbers:
// `binding:"required"` rejects zero values, and 0 is a valid latitude. A
// *float64 is nil only when the field was missing, so required checks
// presence instead of non-zero.
type CoordinateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (r CoordinateRequest) Coordinate() entities.Coordinate {
	return entities.NewCoordinate(*r.Latitude, *r.Longitude)
}

// SpanRequest is a viewport span in a request body.
type SpanRequest struct {
	LatitudeDelta  float64 `json:"latitudeDelta" binding:"required,gt=0"`
	LongitudeDelta float64 `json:"longitudeDelta" binding:"required,gt=0"`
}

// RegionRequest is the JSON body describing a viewport.
type RegionRequest struct {
	Center CoordinateRequest `json:"center" binding:"required"`
	Span   SpanRequest       `json:"span" binding:"required"`
}

func (r RegionRequest) Region() entities.Region {
	c := r.Center.Coordinate()
	return entities.NewRegion(c.Latitude, c.Longitude, r.Span.LatitudeDelta, r.Span.LongitudeDelta)
}

// SessionResponse summarizes a session.
type SessionResponse struct {
	ID         string             `json:"id"`
	CreatedAt  time.Time          `json:"createdAt"`
	Region     entities.Region    `json:"region"`
	State      entities.SyncState `json:"state"`
	Generation uint64             `json:"generation"`
	Overlays   int                `json:"overlays"`
	Selected   *int               `json:"selected,omitempty"`
	Draft      *services.Draft    `json:"draft,omitempty"`
	Stats      mapview.Stats      `json:"stats"`
}

func newSessionResponse(s *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Region:     s.Map.Region(),
		State:      s.Sync.State(),
		Generation: s.Sync.Generation(),
		Overlays:   len(s.Sync.Overlays()),
		Stats:      s.Map.Stats(),
	}
	if blockID, ok := s.Sync.Selected(); ok {
		resp.Selected = &blockID
	}
	if draft, ok := s.AddCar.Current(); ok {
		resp.Draft = &draft
	}
	return resp
}

// CreateSession handles POST /sessions.
// The body is optional; without one the session opens on the configured
// initial region. The first region-change-end runs before answering so the
// new map starts with its overlays.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	region := h.factory.InitialRegion()
	if c.Request.ContentLength != 0 {
		var req RegionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		region = req.Region()
	}

	id := utils.NewSessionID()
	s := h.factory.New(id, region)
	if err := s.Map.SetRegion(region); err != nil {
		respondError(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		respondError(c, err)
		return
	}

	if _, err := s.Sync.RegionChangeEnd(c.Request.Context()); err != nil {
		// The session is usable without its first overlays; the next region
		// change retries.
		log.Printf("[API] Session %s: initial sync failed: %v", id, err)
	}

	c.JSON(http.StatusCreated, newSessionResponse(s))
}

// GetSession handles GET /sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionResponse(middleware.GetSession(c)))
}

// DeleteSession handles DELETE /sessions/:id.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	err := h.repo.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, memory.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
