// README: Base handler utilities: response envelope, domain error mapping and bind error translation.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/http/middleware"
	"ridehail/internal/types"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type Base struct {
	log logrus.FieldLogger
}

func NewBase(log logrus.FieldLogger) Base {
	return Base{log: log}
}

func (b Base) ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Status: "success", Message: message, Data: data})
}

// errorView overrides the default rendering of domain errors for one route.
type errorView struct {
	// notFound is the status for NotFound; zero means 404.
	notFound int
	messages map[apperr.Kind]string
}

var defaultMessages = map[apperr.Kind]string{
	apperr.KindInvalidInput:      "Invalid input",
	apperr.KindNotFound:          "Resource not found",
	apperr.KindConflict:          "Request conflicts with the current ride state",
	apperr.KindInvalidTransition: "Invalid ride status",
	apperr.KindAlreadyRated:      "This ride has already been rated",
	apperr.KindUnauthorized:      "Permission denied",
}

func (b Base) fail(c *gin.Context, err error) {
	b.failAs(c, err, errorView{})
}

func (b Base) failAs(c *gin.Context, err error, view errorView) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		_ = c.Error(err)
		b.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"uid":    middleware.CallerUID(c),
		}).Error("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorEnvelope{Status: "error", Message: "Server error"})
		return
	}

	status := http.StatusBadRequest
	if ae.Kind == apperr.KindNotFound {
		status = http.StatusNotFound
		if view.notFound != 0 {
			status = view.notFound
		}
	}
	msg, ok := view.messages[ae.Kind]
	if !ok {
		msg = defaultMessages[ae.Kind]
	}
	field := ae.Field
	if field == "" {
		field = "detail"
	}
	c.AbortWithStatusJSON(status, errorEnvelope{
		Status:  "error",
		Message: msg,
		Errors:  map[string]string{field: ae.Message},
	})
}

func (b Base) invalid(c *gin.Context, message string, errs map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorEnvelope{Status: "error", Message: message, Errors: errs})
}

// bindJSON decodes and validates the body, answering 400 on failure.
func (b Base) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		b.invalid(c, "Invalid input", bindErrors(err))
		return false
	}
	return true
}

func (b Base) bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		b.invalid(c, "Invalid input", bindErrors(err))
		return false
	}
	return true
}

func bindErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = fieldMessage(fe)
		}
		return out
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return map[string]string{typeErr.Field: fmt.Sprintf("Expected a %s", typeErr.Type)}
	}
	return map[string]string{"detail": "Malformed request body"}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "uuid":
		return "Must be a valid UUID"
	case "email":
		return "Enter a valid email address"
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "numeric":
		return "Must contain only digits"
	default:
		return fmt.Sprintf("Failed the %s check", fe.Tag())
	}
}

// pathID parses the :id parameter; malformed ids are NotFound.
func pathID(c *gin.Context, field, msg string) (types.ID, error) {
	id, ok := types.ParseID(c.Param("id"))
	if !ok {
		return "", apperr.NotFound(field, msg)
	}
	return id, nil
}

func caller(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}

// parseDate accepts YYYY-MM-DD or RFC3339. A bare date used as an upper
// bound covers the whole day.
func parseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
