package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

// RoleCheck admits only members holding one of roles. Must run after AuthMiddleware.
func RoleCheck(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(RoleKey)
		if userRole == "" {
			utils.RespondError(c, utils.NewError(utils.CodeAuthRequired, "unauthorized"))
			return
		}

		for _, role := range roles {
			if role == userRole {
				c.Next()
				return
			}
		}
		utils.RespondError(c, utils.NewError(utils.CodeForbidden, "your role cannot perform this action"))
	}
}
