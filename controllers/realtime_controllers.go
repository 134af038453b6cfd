package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/realtime"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type RealtimeController struct {
	hub *realtime.Hub
}

func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

// Connect -> GET /realtime/ws?token=; blocks until the client disconnects
func (rc *RealtimeController) Connect(c *gin.Context) {
	if err := rc.hub.Serve(c.Writer, c.Request, middlewares.TenantID(c), middlewares.UserID(c)); err != nil {
		// the upgrader has already written the HTTP error
		utils.InfoLogger.WithError(err).Warn("websocket upgrade failed")
	}
}
