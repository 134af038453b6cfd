package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type CateringController struct {
	catering *services.CateringService
}

func NewCateringController(catering *services.CateringService) *CateringController {
	return &CateringController{catering: catering}
}

func (cc *CateringController) GetPackages(c *gin.Context) {
	packages, err := cc.catering.ListPackages(c.Request.Context(), middlewares.TenantID(c), c.Query("all") == "true")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, packages, nil)
}

func (cc *CateringController) CreatePackage(c *gin.Context) {
	var in services.PackageInput
	if !bindJSON(c, &in) {
		return
	}
	pkg, err := cc.catering.CreatePackage(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusCreated, pkg, nil)
}

func (cc *CateringController) UpdatePackage(c *gin.Context) {
	var in services.PackageInput
	if !bindJSON(c, &in) {
		return
	}
	pkg, err := cc.catering.UpdatePackage(c.Request.Context(), middlewares.TenantID(c), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, pkg, nil)
}

// GetOrders -> GET /api/v1/catering/orders?status=&from=&to=
func (cc *CateringController) GetOrders(c *gin.Context) {
	orders, err := cc.catering.ListOrders(c.Request.Context(), middlewares.TenantID(c), services.OrderFilters{
		Status: c.Query("status"),
		From:   c.Query("from"),
		To:     c.Query("to"),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, orders, nil)
}

func (cc *CateringController) CreateOrder(c *gin.Context) {
	var in services.OrderInput
	if !bindJSON(c, &in) {
		return
	}
	order, err := cc.catering.CreateOrder(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusCreated, order, nil)
}

func (cc *CateringController) UpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	order, err := cc.catering.UpdateOrderStatus(c.Request.Context(), middlewares.TenantID(c), c.Param("id"), body.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, order, nil)
}
