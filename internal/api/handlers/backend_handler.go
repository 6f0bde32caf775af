package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TokenProvider hands out the map token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Signer signs image upload parameters.
type Signer interface {
	Sign(ctx context.Context, params map[string]any) (string, error)
}

// BackendHandler proxies the session-independent backend calls the page
// makes: the token for initializing the map and upload signatures.
type BackendHandler struct {
	tokens TokenProvider
	signer Signer
}

func NewBackendHandler(tokens TokenProvider, signer Signer) *BackendHandler {
	return &BackendHandler{tokens: tokens, signer: signer}
}

// GetToken handles GET /mapkit/token and GET /token.
func (h *BackendHandler) GetToken(c *gin.Context) {
	token, err := h.tokens.Token(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// SignatureRequest is the JSON body of an upload signature request.
type SignatureRequest struct {
	Parameters map[string]any `json:"parameters" binding:"required"`
}

// SignUpload handles POST /images/signature.
func (h *BackendHandler) SignUpload(c *gin.Context) {
	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	signature, err := h.signer.Sign(c.Request.Context(), req.Parameters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": signature})
}
