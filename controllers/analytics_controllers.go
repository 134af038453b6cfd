package controllers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type AnalyticsController struct {
	analytics *services.AnalyticsService
	guests    *services.GuestService
}

func NewAnalyticsController(analytics *services.AnalyticsService, guests *services.GuestService) *AnalyticsController {
	return &AnalyticsController{analytics: analytics, guests: guests}
}

// GetAnalytics -> GET /api/v1/analytics?from=&to=
func (ac *AnalyticsController) GetAnalytics(c *gin.Context) {
	report, err := ac.analytics.Range(c.Request.Context(), middlewares.TenantID(c), c.Query("from"), c.Query("to"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, report, nil)
}

// ExportAnalytics -> GET /api/v1/analytics/export?from=&to=&format=csv|xlsx
func (ac *AnalyticsController) ExportAnalytics(c *gin.Context) {
	format, contentType, err := exportFormat(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	report, err := ac.analytics.Range(c.Request.Context(), middlewares.TenantID(c), c.Query("from"), c.Query("to"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteAnalytics(&buf, format, report); err != nil {
		utils.RespondError(c, utils.InternalError(err))
		return
	}
	sendAttachment(c, fmt.Sprintf("analytics_%s_%s.%s", report.From, report.To, format), contentType, &buf)
}

// DaySheet -> GET /api/v1/analytics/day-sheet?date=, a printable PDF of the day's bookings
func (ac *AnalyticsController) DaySheet(c *gin.Context) {
	date := c.Query("date")
	tenant, bookings, err := ac.analytics.DaySheet(c.Request.Context(), middlewares.TenantID(c), date)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteDaySheet(&buf, tenant, date, bookings); err != nil {
		utils.RespondError(c, utils.InternalError(err))
		return
	}
	sendAttachment(c, fmt.Sprintf("bookings_%s.pdf", date), services.ContentTypePDF, &buf)
}

// GetGuests -> GET /api/v1/guests?search=
func (ac *AnalyticsController) GetGuests(c *gin.Context) {
	guests, err := ac.guests.List(c.Request.Context(), middlewares.TenantID(c), c.Query("search"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, guests, gin.H{"total": len(guests)})
}

func (ac *AnalyticsController) ExportGuests(c *gin.Context) {
	format, contentType, err := exportFormat(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	guests, err := ac.guests.List(c.Request.Context(), middlewares.TenantID(c), c.Query("search"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteGuests(&buf, format, guests); err != nil {
		utils.RespondError(c, utils.InternalError(err))
		return
	}
	sendAttachment(c, "guests."+format, contentType, &buf)
}
