package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

const TOTPHeader = "X-TOTP-Code"

// RequireTOTP guards admin mutations with a one-time code. Reads pass
// through; an empty secret disables the check.
func RequireTOTP(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if !totp.Validate(c.GetHeader(TOTPHeader), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid totp"})
			return
		}
		c.Next()
	}
}
