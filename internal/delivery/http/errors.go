package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// Коды ошибок в ответах API.
const (
	CodeLocationUnavailable = "location_unavailable"
	CodeOutsideGeofence     = "outside_geofence"
	CodeInvalidTransition   = "invalid_transition"
	CodeStorageFailure      = "storage_failure"
	CodeNotFound            = "not_found"
	CodeForbidden           = "forbidden"
	CodeInvalidRequest      = "invalid_request"
	CodeInternal            = "internal"
)

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrLocationUnavailable):
		return http.StatusUnprocessableEntity, CodeLocationUnavailable
	case errors.Is(err, entity.ErrOutsideGeofence):
		return http.StatusForbidden, CodeOutsideGeofence
	case errors.Is(err, entity.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	case errors.Is(err, entity.ErrStorage):
		return http.StatusServiceUnavailable, CodeStorageFailure
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, entity.ErrInvalidGeofence),
		errors.Is(err, entity.ErrShapeChanged),
		errors.Is(err, entity.ErrInvalidSample),
		errors.Is(err, entity.ErrMixedShape),
		errors.Is(err, geo.ErrInvalidCorners):
		return http.StatusBadRequest, CodeInvalidRequest
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondError пишет ошибку сервиса с HTTP-статусом и стабильным кодом.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := classify(err)
	body := gin.H{"error": err.Error(), "code": code}

	var le *entity.LocationError
	if errors.As(err, &le) {
		body["reason"] = le.Kind
		body["message"] = le.Message()
	}
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed", err, map[string]interface{}{"path": c.FullPath()})
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": FormatBindingError(err), "code": CodeInvalidRequest})
}

// FormatBindingError переводит ошибки разбора и валидации запроса в читаемый текст.
func FormatBindingError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, io.EOF) {
		return "Request body is empty"
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("Invalid JSON at byte offset %d", syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("Field '%s' should be of type %s", typeErr.Field, typeErr.Type.String())
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]string, 0, len(ve))
		for _, fe := range ve {
			out = append(out, formatFieldError(fe))
		}
		return strings.Join(out, ", ")
	}
	return err.Error()
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("Field '%s' must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("Field '%s' must be greater than %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("Field '%s' failed validation for '%s'", fe.Field(), fe.Tag())
}
