package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	directorydomain "github.com/smallbiznis/royalti/internal/directory/domain"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	"github.com/smallbiznis/royalti/internal/lock"
	payoutdomain "github.com/smallbiznis/royalti/internal/payout/domain"
	perioddomain "github.com/smallbiznis/royalti/internal/period/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	storagedomain "github.com/smallbiznis/royalti/internal/storage/domain"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	"github.com/smallbiznis/royalti/pkg/db/pagination"
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
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
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

// classifyErrorForLog feeds error_type/error_code on the request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
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

	var missing *reportdomain.MissingColumnsError
	if errors.As(err, &missing) {
		errs := make([]ValidationError, 0, len(missing.Columns))
		for _, column := range missing.Columns {
			errs = append(errs, ValidationError{
				Field:   column,
				Code:    "missing_column",
				Message: "required column is missing",
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "missing required columns",
			Errors:  errs,
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
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, walletdomain.ErrInsufficientBalance),
		errors.Is(err, payoutdomain.ErrBelowMinimum):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: unprocessableMessage(err),
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, lock.ErrNotObtained),
		errors.Is(err, storagedomain.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	perioddomain.ErrInvalidID,
	perioddomain.ErrInvalidCode,
	perioddomain.ErrInvalidName,
	reportdomain.ErrInvalidReportType,
	reportdomain.ErrInvalidStatus,
	reportdomain.ErrInvalidPeriod,
	reportdomain.ErrPeriodInactive,
	reportdomain.ErrPeriodTypeMismatch,
	reportdomain.ErrMissingFile,
	reportdomain.ErrEmptyFile,
	reportdomain.ErrUnreadableFile,
	reportdomain.ErrInvalidID,
	ledgerdomain.ErrInvalidUser,
	walletdomain.ErrInvalidUser,
	walletdomain.ErrInvalidAmount,
	walletdomain.ErrInvalidAdjustment,
	walletdomain.ErrMissingReason,
	payoutdomain.ErrInvalidID,
	payoutdomain.ErrInvalidUser,
	payoutdomain.ErrInvalidAmount,
	payoutdomain.ErrInvalidMethod,
	payoutdomain.ErrInvalidStatus,
	payoutdomain.ErrCurrencyMismatch,
	directorydomain.ErrInvalidAccount,
	directorydomain.ErrInvalidUser,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, perioddomain.ErrDuplicate),
		errors.Is(err, perioddomain.ErrInUse),
		errors.Is(err, perioddomain.ErrInactive),
		errors.Is(err, reportdomain.ErrInvalidTransition),
		errors.Is(err, reportdomain.ErrNotRetryable),
		errors.Is(err, reportdomain.ErrJobProcessing),
		errors.Is(err, reportdomain.ErrEarningsCommitted),
		errors.Is(err, payoutdomain.ErrInvalidTransition),
		errors.Is(err, payoutdomain.ErrNotPaid),
		errors.Is(err, walletdomain.ErrWalletInactive):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, perioddomain.ErrNotFound),
		errors.Is(err, reportdomain.ErrNotFound),
		errors.Is(err, reportdomain.ErrPeriodNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, storagedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_adjustment_type":
		return "type"
	case "invalid_report_type", "period_type_mismatch":
		return "type"
	case "invalid_period", "period_inactive":
		return "periodId"
	case "missing_file", "empty_file", "unreadable_file":
		return "file"
	case "currency_mismatch":
		return "currency"
	}
	for _, prefix := range []string{"invalid_", "missing_"} {
		if strings.HasPrefix(code, prefix) {
			return strings.TrimPrefix(code, prefix)
		}
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_file", "missing_reason":
		return "value is required"
	case "empty_file":
		return "file has no data rows"
	case "unreadable_file":
		return "file is not a readable csv or xlsx document"
	case "period_inactive":
		return "period is not active"
	case "period_type_mismatch":
		return "period belongs to another report type"
	case "currency_mismatch":
		return "currency differs from the wallet currency"
	default:
		return "invalid value"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, perioddomain.ErrDuplicate):
		return "an active period with this code already exists"
	case errors.Is(err, perioddomain.ErrInUse):
		return "period has active report jobs"
	case errors.Is(err, perioddomain.ErrInactive):
		return "period is already inactive"
	case errors.Is(err, reportdomain.ErrNotRetryable):
		return "only failed jobs can be retried"
	case errors.Is(err, reportdomain.ErrJobProcessing):
		return "report job is processing"
	case errors.Is(err, reportdomain.ErrEarningsCommitted):
		return "report earnings are already reserved or paid out"
	case errors.Is(err, payoutdomain.ErrNotPaid):
		return "payout has not been paid"
	default:
		return "conflict"
	}
}

func unprocessableMessage(err error) string {
	if errors.Is(err, payoutdomain.ErrBelowMinimum) {
		return "amount is below the minimum payout"
	}
	return "insufficient withdrawable balance"
}
