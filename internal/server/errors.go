package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/smallbiznis/garageflow/internal/authorization"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	garagedomain "github.com/smallbiznis/garageflow/internal/garage/domain"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	jobsheetdomain "github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	obstracing "github.com/smallbiznis/garageflow/internal/observability/tracing"
	vhcdomain "github.com/smallbiznis/garageflow/internal/vhc/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindError turns a gin binding failure into field errors when the validator
// produced them, and a generic invalid request otherwise.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalidRequestError()
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fe.Field() + " is " + tagMessage(fe.Tag()),
		})
	}
	return &ValidationErrors{Errors: out}
}

func tagMessage(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "oneof":
		return "not one of the allowed values"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	default:
		return "invalid"
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// Conflicts share the invalid_ prefix with validation codes, so they are
	// matched first.
	if isConflictError(err) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidGarage):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, auth.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the same type and code
// the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	if err == nil {
		return payload.Type, ""
	}
	return payload.Type, obstracing.SafeError(err).Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, bookingdomain.ErrInvalidTransition),
		errors.Is(err, jobsheetdomain.ErrInvalidTransition),
		errors.Is(err, jobsheetdomain.ErrChecklistIncomplete),
		errors.Is(err, jobsheetdomain.ErrAlreadyExists),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrNumberExhausted),
		errors.Is(err, inventorydomain.ErrDuplicateSKU),
		errors.Is(err, inventorydomain.ErrItemInactive),
		errors.Is(err, garagedomain.ErrSlugTaken):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, bookingdomain.ErrInvalidTransition),
		errors.Is(err, jobsheetdomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrInvalidTransition):
		return "status transition not allowed"
	case errors.Is(err, jobsheetdomain.ErrChecklistIncomplete):
		return "checklist incomplete"
	case errors.Is(err, jobsheetdomain.ErrAlreadyExists):
		return "job sheet already exists for booking"
	case errors.Is(err, inventorydomain.ErrDuplicateSKU):
		return "sku already exists"
	case errors.Is(err, inventorydomain.ErrItemInactive):
		return "item is inactive"
	default:
		return "conflict"
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isBookingValidationError(err),
		isJobSheetValidationError(err),
		isInventoryValidationError(err),
		isInvoiceValidationError(err),
		isVHCValidationError(err),
		isAuditValidationError(err),
		isGarageValidationError(err),
		isAuthorizationValidationError(err):
		return true
	default:
		return false
	}
}

func isBookingValidationError(err error) bool {
	switch {
	case errors.Is(err, bookingdomain.ErrInvalidGarage),
		errors.Is(err, bookingdomain.ErrInvalidID),
		errors.Is(err, bookingdomain.ErrInvalidServiceID),
		errors.Is(err, bookingdomain.ErrInvalidServiceName),
		errors.Is(err, bookingdomain.ErrInvalidCustomer),
		errors.Is(err, bookingdomain.ErrInvalidCar),
		errors.Is(err, bookingdomain.ErrInvalidDate),
		errors.Is(err, bookingdomain.ErrInvalidStartTime),
		errors.Is(err, bookingdomain.ErrInvalidEndTime),
		errors.Is(err, bookingdomain.ErrInvalidBay),
		errors.Is(err, bookingdomain.ErrInvalidPrice),
		errors.Is(err, bookingdomain.ErrInvalidStatus),
		errors.Is(err, bookingdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isJobSheetValidationError(err error) bool {
	switch {
	case errors.Is(err, jobsheetdomain.ErrInvalidGarage),
		errors.Is(err, jobsheetdomain.ErrInvalidID),
		errors.Is(err, jobsheetdomain.ErrInvalidBooking),
		errors.Is(err, jobsheetdomain.ErrInvalidTechnician),
		errors.Is(err, jobsheetdomain.ErrInvalidStatus),
		errors.Is(err, jobsheetdomain.ErrInvalidReason),
		errors.Is(err, jobsheetdomain.ErrInvalidServices),
		errors.Is(err, jobsheetdomain.ErrInvalidNotes),
		errors.Is(err, jobsheetdomain.ErrInvalidReviewer):
		return true
	default:
		return false
	}
}

func isInventoryValidationError(err error) bool {
	switch {
	case errors.Is(err, inventorydomain.ErrInvalidGarage),
		errors.Is(err, inventorydomain.ErrInvalidID),
		errors.Is(err, inventorydomain.ErrInvalidName),
		errors.Is(err, inventorydomain.ErrInvalidSKU),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, inventorydomain.ErrInvalidReorder),
		errors.Is(err, inventorydomain.ErrInvalidPrice),
		errors.Is(err, inventorydomain.ErrInvalidMode),
		errors.Is(err, inventorydomain.ErrInvalidReason),
		errors.Is(err, inventorydomain.ErrInvalidStatus),
		errors.Is(err, inventorydomain.ErrInvalidSortBy),
		errors.Is(err, inventorydomain.ErrInvalidRefType):
		return true
	default:
		return false
	}
}

func isInvoiceValidationError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrInvalidGarage),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidLines):
		return true
	default:
		return false
	}
}

func isVHCValidationError(err error) bool {
	switch {
	case errors.Is(err, vhcdomain.ErrInvalidGarage),
		errors.Is(err, vhcdomain.ErrInvalidID),
		errors.Is(err, vhcdomain.ErrInvalidVehicle),
		errors.Is(err, vhcdomain.ErrInvalidBooking),
		errors.Is(err, vhcdomain.ErrInvalidPowertrain),
		errors.Is(err, vhcdomain.ErrInvalidStatus),
		errors.Is(err, vhcdomain.ErrInvalidAnswers),
		errors.Is(err, vhcdomain.ErrInvalidDateRange),
		errors.Is(err, vhcdomain.ErrInvalidSortBy):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidGarage),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isGarageValidationError(err error) bool {
	switch {
	case errors.Is(err, garagedomain.ErrInvalidName),
		errors.Is(err, garagedomain.ErrInvalidBays),
		errors.Is(err, garagedomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isAuthorizationValidationError(err error) bool {
	switch {
	case errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, bookingdomain.ErrNotFound),
		errors.Is(err, jobsheetdomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, vhcdomain.ErrNotFound),
		errors.Is(err, garagedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_serviceId", "invalid_serviceName", "invalid_customer", "invalid_car",
		"invalid_date", "invalid_startTime", "invalid_endTime", "invalid_bay":
		return validationErrorField(code) + " is missing or invalid"
	default:
		return "invalid value"
	}
}
