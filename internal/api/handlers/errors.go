package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"manualsmap/internal/backend"
	"manualsmap/internal/geo"
	"manualsmap/internal/mapview"
	"manualsmap/internal/services"
)

// respondError maps service and backend errors to HTTP answers.
//
// Go Learning Note — errors.Is / errors.As:
// Services wrap errors with fmt.Errorf("...: %w", err). errors.Is walks the
// wrap chain looking for a sentinel value, errors.As for a type.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *backend.ValidationError
		httpErr       *backend.HTTPError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "invalid car submission",
			"problems": validationErr.Problems,
		})
	case errors.Is(err, services.ErrOverlayNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoDraft):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, geo.ErrNonFiniteCoordinate),
		errors.Is(err, mapview.ErrInvalidRegion),
		errors.Is(err, services.ErrInvalidUploadParameters):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &httpErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":          httpErr.Message,
			"backend_status": httpErr.StatusCode,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "backend timed out"})
	case errors.Is(err, backend.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Printf("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
