package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// Error is the only error type returned across the gateway boundary.
type Error struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (%d): %s", e.Type, e.Code, e.Message)
}

// NewError builds an Error and counts it.
func NewError(code int, errType, message string) *Error {
	errorsTotal.WithLabelValues(strconv.Itoa(code), errType).Inc()
	return &Error{Code: code, Type: errType, Message: message}
}

var errorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "library_gateway_errors_total",
		Help: "Errors returned by the persistence gateway, by code and type",
	},
	[]string{"code", "type"},
)

// Error types
const (
	TypeNotFound        = "document_not_found"
	TypeConflict        = "document_already_exists"
	TypeInvalidDocument = "document_invalid"
	TypeInvalidQuery    = "general_query_invalid"
	TypeInvalidArgument = "general_argument_invalid"
	TypeUnauthorized    = "user_unauthorized"
	TypeInvalidToken    = "user_invalid_token"
	TypeUserNotFound    = "user_not_found"
	TypeUserExists      = "user_already_exists"
	TypeStorage         = "storage_error"
	TypeFileNotFound    = "storage_file_not_found"
	TypeTimeout         = "general_timeout"
	TypeServer          = "general_server_error"
)

// Translate converts a driver, gorm or context error into an *Error.
// Values that already are *Error pass through unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewError(http.StatusNotFound, TypeNotFound, "Document with the requested ID could not be found.")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewError(http.StatusConflict, TypeConflict, "Document with the requested ID already exists.")
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return NewError(http.StatusBadRequest, TypeInvalidDocument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(http.StatusGatewayTimeout, TypeTimeout, "Request timed out.")
	case errors.Is(err, context.Canceled):
		return NewError(499, TypeTimeout, "Request was cancelled.")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return NewError(http.StatusConflict, TypeConflict, "Document with the requested ID already exists.")
		case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			return NewError(http.StatusBadRequest, TypeInvalidDocument, pgErr.Message)
		case pgerrcode.UndefinedColumn, pgerrcode.UndefinedTable, pgerrcode.SyntaxError:
			return NewError(http.StatusBadRequest, TypeInvalidQuery, pgErr.Message)
		}
	}

	return NewError(http.StatusInternalServerError, TypeServer, err.Error())
}

// Code returns the gateway status code carried by err, or 0 for foreign errors.
func Code(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	return Code(err) == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the gateway.
func IsConflict(err error) bool {
	return Code(err) == http.StatusConflict
}

var describedCodes = map[int]string{
	http.StatusUnauthorized:        "Authentication failed. Please log in again.",
	http.StatusForbidden:           "Access denied. You do not have permission to perform this action.",
	http.StatusNotFound:            "Resource not found.",
	http.StatusConflict:            "Resource already exists.",
	http.StatusTooManyRequests:     "Too many requests. Please try again later.",
	http.StatusInternalServerError: "Server error. Please try again later.",
}

// Describe maps an error to the message shown to users. Known status codes
// use a fixed sentence; anything else shows the error's own message.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		if msg, ok := describedCodes[gwErr.Code]; ok {
			return msg
		}
		if gwErr.Message != "" {
			return gwErr.Message
		}
		return "An unexpected error occurred."
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An unexpected error occurred."
}
