package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// GetPreferences -> one entry per event type, defaults included
func (nc *NotificationController) GetPreferences(c *gin.Context) {
	prefs, err := nc.notifications.ListPreferences(c.Request.Context(), middlewares.TenantID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, prefs, nil)
}

func (nc *NotificationController) UpdatePreference(c *gin.Context) {
	var in services.PreferenceInput
	if !bindJSON(c, &in) {
		return
	}
	pref, err := nc.notifications.UpsertPreference(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, pref, nil)
}

func (nc *NotificationController) GetTemplates(c *gin.Context) {
	templates, err := nc.notifications.ListTemplates(c.Request.Context(), middlewares.TenantID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, templates, nil)
}

func (nc *NotificationController) UpdateTemplate(c *gin.Context) {
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	tmpl, err := nc.notifications.UpsertTemplate(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, tmpl, nil)
}

// PreviewTemplate renders the posted template against sample booking data.
func (nc *NotificationController) PreviewTemplate(c *gin.Context) {
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	rendered, err := nc.notifications.Preview(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, rendered, nil)
}
