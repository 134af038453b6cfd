package middlewares

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		c.Next()
	}
}

// Recovery turns panics into the INTERNAL_ERROR envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		utils.RespondError(c, utils.InternalError(fmt.Errorf("panic: %v", recovered)))
	})
}

// NoRoute renders unknown paths in the error envelope.
func NoRoute(c *gin.Context) {
	utils.RespondError(c, utils.Errorf(utils.CodeNotFound, "%s %s does not exist", c.Request.Method, c.Request.URL.Path))
}

