package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/service"
	"github.com/rs/zerolog/log"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// verifyRejections are the protocol rejections reported as 400 with their own text
var verifyRejections = []error{
	core.ErrMalformedSignature,
	core.ErrMalformedMessage,
	core.ErrNonceNotFound,
	core.ErrNonceExpired,
	core.ErrNonceMismatch,
	core.ErrChainNotAllowed,
	core.ErrMessageExpired,
	core.ErrMessageNotYetValid,
	core.ErrDomainMismatch,
	core.ErrURIMismatch,
	core.ErrAddressMismatch,
}

// Nonce handles the challenge request
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.Address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrInvalidAddress.Error()})
			return
		}
		log.Error().Err(err).Str("address", req.Address).Msg("Failed to create challenge")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": challenge.Nonce})
}

// Verify handles the signed message submission
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	token, address, err := h.authService.Login(c.Request.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		status, msg := verifyError(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("address", req.Address).Msg("Verification fault")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"token":   token,
		"address": address,
	})
}

// Me reports who the bearer credential belongs to
func (h *AuthHandlers) Me(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}

	identity, err := h.authService.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"address":       identity.Address,
		"token":         token,
	})
}

// verifyError maps a Login failure to its status code and wire text
func verifyError(err error) (int, string) {
	for _, rejection := range verifyRejections {
		if errors.Is(err, rejection) {
			return http.StatusBadRequest, rejection.Error()
		}
	}
	if errors.Is(err, core.ErrInvalidSignature) {
		return http.StatusUnauthorized, core.ErrInvalidSignature.Error()
	}
	return http.StatusInternalServerError, core.ErrVerificationFailed.Error()
}
