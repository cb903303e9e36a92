// README: Bearer-token auth middleware; stores the verified caller in the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/infra"
)

const (
	ctxUID    = "auth.uid"
	ctxClaims = "auth.claims"
)

// Auth rejects requests without a valid "Bearer <token>" header.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "Authentication credentials were not provided")
			return
		}
		authToken, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil || authToken.UID == "" {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}
		c.Set(ctxUID, authToken.UID)
		c.Set(ctxClaims, authToken.Claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  "error",
		"message": "Authentication failed",
		"errors":  gin.H{"detail": detail},
	})
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

// CallerClaims returns the verified token's claims; nil outside Auth.
func CallerClaims(c *gin.Context) map[string]interface{} {
	v, _ := c.Get(ctxClaims)
	claims, _ := v.(map[string]interface{})
	return claims
}

// CallerClaim returns a string claim of the verified token, or "".
func CallerClaim(c *gin.Context, name string) string {
	s, _ := CallerClaims(c)[name].(string)
	return s
}
