package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireTrigger guards the internal trigger endpoints with a static bearer
// secret. These endpoints launch paid scrape runs, so an unset secret closes
// them rather than opening them.
func RequireTrigger(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "trigger secret not configured"})
			return
		}

		auth := ctx.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx.Next()
	}
}
