package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/middleware"
)

// writeError maps a failure kind onto a status code and a fixed message.
// Underlying store errors are logged, never echoed.
func (h *Handler) writeError(c *gin.Context, err error) {
	var cooldown *apperr.CooldownError
	switch {
	case errors.As(err, &cooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":           "you can spin once every 24 hours",
			"nextAvailableAt": cooldown.NextEligibleAt.UTC(),
		})
	case errors.Is(err, apperr.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, apperr.ErrForbiddenCharacter):
		c.JSON(http.StatusForbidden, gin.H{"error": "this character does not belong to you"})
	case errors.Is(err, apperr.ErrInvalidOrUsedCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or used discount code"})
	case errors.Is(err, apperr.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "not enough LegacyCoin"})
	case errors.Is(err, apperr.ErrUnknownItem):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown item"})
	case errors.Is(err, apperr.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, apperr.ErrCodeIssuanceExhausted):
		h.logger.Warn("discount code issuance exhausted", "path", c.FullPath(), "account", middleware.AccountID(c))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "please try again"})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		h.logger.Error("store unavailable", "path", c.FullPath(), "account", middleware.AccountID(c), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "account", middleware.AccountID(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
