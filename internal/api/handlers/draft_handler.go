package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"manualsmap/internal/api/middleware"
	"manualsmap/internal/domain/entities"
)

// DraftHandler drives the add-car flow of a session: placing and dragging the
// draft marker, cancelling it, and submitting the form.
type DraftHandler struct{}

func NewDraftHandler() *DraftHandler {
	return &DraftHandler{}
}

// BeginDraft handles POST /sessions/:id/draft.
// Any earlier draft is discarded.
func (h *DraftHandler) BeginDraft(c *gin.Context) {
	var req CoordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := middleware.GetSession(c).AddCar.Begin(req.Coordinate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// DragDraft handles PATCH /sessions/:id/draft.
func (h *DraftHandler) DragDraft(c *gin.Context) {
	var req CoordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := middleware.GetSession(c).AddCar.Drag(req.Coordinate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// CancelDraft handles DELETE /sessions/:id/draft.
func (h *DraftHandler) CancelDraft(c *gin.Context) {
	middleware.GetSession(c).AddCar.Cancel()
	c.Status(http.StatusNoContent)
}

// SubmitDraft handles POST /sessions/:id/draft/submit.
// The form is validated before anything is sent; a rejected form keeps the
// draft so the user can correct it.
func (h *DraftHandler) SubmitDraft(c *gin.Context) {
	var form entities.CarForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := middleware.GetSession(c).AddCar.Submit(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
