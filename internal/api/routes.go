package api

import (
	"github.com/gin-gonic/gin"

	"manualsmap/internal/api/handlers"
	"manualsmap/internal/api/middleware"
	"manualsmap/internal/repository"
)

type Router struct {
	sessions       repository.SessionRepository
	sessionHandler *handlers.SessionHandler
	mapHandler     *handlers.MapHandler
	draftHandler   *handlers.DraftHandler
	backendHandler *handlers.BackendHandler
}

func NewRouter(
	sessions repository.SessionRepository,
	sessionHandler *handlers.SessionHandler,
	mapHandler *handlers.MapHandler,
	draftHandler *handlers.DraftHandler,
	backendHandler *handlers.BackendHandler,
) *Router {
	return &Router{
		sessions:       sessions,
		sessionHandler: sessionHandler,
		mapHandler:     mapHandler,
		draftHandler:   draftHandler,
		backendHandler: backendHandler,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Page-level backend calls
	engine.GET("/mapkit/token", r.backendHandler.GetToken)
	engine.GET("/token", r.backendHandler.GetToken)
	engine.POST("/images/signature", r.backendHandler.SignUpload)

	engine.POST("/sessions", r.sessionHandler.CreateSession)

	// Per-map endpoints
	s := engine.Group("/sessions/:id")
	s.Use(middleware.LoadSession(r.sessions))
	{
		s.GET("", r.sessionHandler.GetSession)
		s.DELETE("", r.sessionHandler.DeleteSession)

		s.PUT("/region", r.mapHandler.UpdateRegion)
		s.GET("/overlays", r.mapHandler.GetOverlays)
		s.POST("/overlays/:blockId/select", r.mapHandler.SelectOverlay)
		s.POST("/overlays/:blockId/deselect", r.mapHandler.DeselectOverlay)
		s.POST("/select-at", r.mapHandler.SelectAt)
		s.GET("/cars", r.mapHandler.GetCars)
		s.GET("/annotations", r.mapHandler.GetAnnotations)
		s.POST("/landmarks", r.mapHandler.ShowLandmarks)

		// Add-car flow
		s.POST("/draft", r.draftHandler.BeginDraft)
		s.PATCH("/draft", r.draftHandler.DragDraft)
		s.DELETE("/draft", r.draftHandler.CancelDraft)
		s.POST("/draft/submit", r.draftHandler.SubmitDraft)
	}
}
