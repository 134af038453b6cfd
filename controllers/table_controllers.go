package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type TableController struct {
	tables *services.TableService
}

func NewTableController(tables *services.TableService) *TableController {
	return &TableController{tables: tables}
}

// GetAllTables -> active tables, or every table with ?all=true
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.tables.List(c.Request.Context(), middlewares.TenantID(c), c.Query("all") == "true")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, tables, nil)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	table, err := tc.tables.Get(c.Request.Context(), middlewares.TenantID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, table, nil)
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var in services.TableInput
	if !bindJSON(c, &in) {
		return
	}

	table, err := tc.tables.Create(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.Infof("New table created: %s (capacity=%d)", table.Name, table.Capacity)
	utils.RespondData(c, http.StatusCreated, table, nil)
}

func (tc *TableController) UpdateTable(c *gin.Context) {
	var in services.TableInput
	if !bindJSON(c, &in) {
		return
	}

	table, err := tc.tables.Update(c.Request.Context(), middlewares.TenantID(c), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, table, nil)
}

// DeactivateTable -> DELETE /api/v1/tables/:id; the row is kept for booking history.
func (tc *TableController) DeactivateTable(c *gin.Context) {
	table, err := tc.tables.Deactivate(c.Request.Context(), middlewares.TenantID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.Infof("Table %s deactivated", table.ID)
	utils.RespondData(c, http.StatusOK, table, nil)
}
