package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

const WidgetKeyHeader = "X-Widget-Key"

type WidgetController struct {
	widgets *services.WidgetService
}

func NewWidgetController(widgets *services.WidgetService) *WidgetController {
	return &WidgetController{widgets: widgets}
}

func (wc *WidgetController) GetConfig(c *gin.Context) {
	cfg, err := wc.widgets.Get(c.Request.Context(), middlewares.TenantID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, cfg, nil)
}

func (wc *WidgetController) UpdateConfig(c *gin.Context) {
	var in services.WidgetInput
	if !bindJSON(c, &in) {
		return
	}
	cfg, err := wc.widgets.Update(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, cfg, nil)
}

// RotateKey returns the new key exactly once; it cannot be read back later.
func (wc *WidgetController) RotateKey(c *gin.Context) {
	key, err := wc.widgets.RotateKey(c.Request.Context(), middlewares.TenantID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.WithField("tenant_id", middlewares.TenantID(c)).Info("widget key rotated")
	utils.RespondData(c, http.StatusOK, gin.H{"key": key}, nil)
}

// PublicConfig -> GET /widget/v1/config/:slug, no auth
func (wc *WidgetController) PublicConfig(c *gin.Context) {
	cfg, err := wc.widgets.PublicConfig(c.Request.Context(), c.Param("slug"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, cfg, nil)
}

// CreateReservation -> POST /widget/v1/reservations, authenticated by X-Widget-Key
func (wc *WidgetController) CreateReservation(c *gin.Context) {
	key := c.GetHeader(WidgetKeyHeader)
	if key == "" {
		utils.RespondError(c, utils.NewError(utils.CodeAuthRequired, WidgetKeyHeader+" header missing"))
		return
	}

	var in services.CreateReservationInput
	if !bindJSON(c, &in) {
		return
	}
	in.IdempotencyKey = c.GetHeader(IdempotencyHeader)

	reservation, replayed, err := wc.widgets.CreateReservation(c.Request.Context(), key, in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondCreated(c, reservation, replayed)
}
