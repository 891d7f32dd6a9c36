package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/oakcrm/lettings_backend/config"
	"bitbucket.org/oakcrm/lettings_backend/utils"
)

// SessionMiddleware resolves the caller's agency from the session
// token stored in Redis. Requests without a token pass through; the
// handlers reject them if they need an agency scope.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("token"))
		if token == "" {
			c.Next()
			return
		}

		var agencyId string
		exists, err := config.GetRedisObject("Session:"+token, &agencyId)
		if err != nil || !exists || agencyId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(
			utils.SetAgencyIdInContext(c.Request.Context(), agencyId))
		c.Next()
	}
}
