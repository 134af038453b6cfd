package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

// bindJSON decodes the body and renders the binding error itself; callers just return on false.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		utils.RespondError(c, utils.BindingError(err))
		return false
	}
	return true
}

func exportFormat(c *gin.Context) (string, string, error) {
	switch strings.ToLower(c.DefaultQuery("format", services.ExportFormatCSV)) {
	case services.ExportFormatCSV:
		return services.ExportFormatCSV, services.ContentTypeCSV, nil
	case services.ExportFormatXLSX:
		return services.ExportFormatXLSX, services.ContentTypeXLSX, nil
	}
	return "", "", utils.NewError(utils.CodeValidation, "format must be one of: csv xlsx")
}

// sendAttachment writes a fully rendered file so that a failed export still gets the
// error envelope.
func sendAttachment(c *gin.Context, filename, contentType string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
