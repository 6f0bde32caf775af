// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any gin.HandlerFunc. Each one runs, optionally calls
// c.Next() to pass control on, and calls c.Abort() to stop the chain after
// writing an error response.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"manualsmap/internal/repository"
	"manualsmap/internal/repository/memory"
	"manualsmap/internal/session"
	"manualsmap/pkg/utils"
)

// SessionKey is the gin context key of the loaded session.
const SessionKey = "session"

// LoadSession resolves the :id path parameter to a live session and stores
// it in the context for the handlers.
func LoadSession(repo repository.SessionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !utils.ValidSessionID(id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			c.Abort()
			return
		}

		s, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, memory.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			c.Abort()
			return
		}

		c.Set(SessionKey, s)
		c.Next()
	}
}

// GetSession returns the session stored by LoadSession. It must only be
// called from handlers behind that middleware.
func GetSession(c *gin.Context) *session.Session {
	s, _ := c.Get(SessionKey)
	return s.(*session.Session)
}
