package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const RequestIDKey = "request_id"

type DataResponse struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func RespondData(c *gin.Context, code int, data interface{}, meta interface{}) {
	c.JSON(code, DataResponse{Data: data, Meta: meta})
}

// RespondError renders the uniform error envelope. Server-side failures are logged with
// their cause, the caller only sees the generic message.
func RespondError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	requestID := c.GetString(RequestIDKey)

	if appErr.Status >= 500 {
		ErrorLogger.WithFields(logrus.Fields{
			"request_id": requestID,
			"code":       appErr.Code,
			"path":       c.Request.URL.Path,
		}).WithError(appErr.Err).Error(appErr.Message)
	}

	c.AbortWithStatusJSON(appErr.Status, ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
		},
	})
}

// BindingError turns gin binding failures into MISSING_REQUIRED_FIELD or VALIDATION_ERROR.
func BindingError(err error) *AppError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fieldErr := validationErrs[0]
		field := lowerFirst(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			return Errorf(CodeMissingRequiredField, "%s is required", field)
		case "min", "gte":
			return Errorf(CodeValidation, "%s must be at least %s", field, fieldErr.Param())
		case "max", "lte":
			return Errorf(CodeValidation, "%s must be at most %s", field, fieldErr.Param())
		case "oneof":
			return Errorf(CodeValidation, "%s must be one of: %s", field, fieldErr.Param())
		case "email":
			return Errorf(CodeValidation, "%s must be a valid email address", field)
		default:
			return Errorf(CodeValidation, "%s failed %s validation", field, fieldErr.Tag())
		}
	}

	if errors.Is(err, io.EOF) {
		return NewError(CodeValidation, "request body is empty")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return NewError(CodeValidation, "request body is not valid JSON")
	case errors.As(err, &typeErr):
		return Errorf(CodeValidation, "%s has the wrong type", typeErr.Field)
	}
	return NewError(CodeValidation, fmt.Sprintf("invalid request: %v", err))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
