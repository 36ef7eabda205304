package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taskhive/backend/pkg/logger"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Response is the unified API response format.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Kind names an operational failure so callers can match on it without
// comparing messages.
type Kind string

const (
	KindUnauthenticated      Kind = "Unauthenticated"
	KindAccountInactive      Kind = "AccountInactive"
	KindNotAMember           Kind = "NotAMember"
	KindInsufficientRole     Kind = "InsufficientRole"
	KindSubscriptionInactive Kind = "SubscriptionInactive"
	KindCannotRemoveOwner    Kind = "CannotRemoveOwner"
	KindValidationFailed     Kind = "ValidationFailed"
	KindNotFound             Kind = "NotFound"
	KindConflict             Kind = "Conflict"
	KindRateLimited          Kind = "RateLimited"
	KindPaymentsDisabled     Kind = "PaymentsDisabled"
	KindInternal             Kind = "Internal"
)

// AppError is an operational error with the HTTP status it maps to.
type AppError struct {
	HTTPStatus int
	Kind       Kind
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches any *AppError of the same kind, so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func New(status int, kind Kind, msg string) *AppError {
	return &AppError{HTTPStatus: status, Kind: kind, Message: msg}
}

func NewBadRequest(msg string) *AppError {
	return New(http.StatusBadRequest, KindValidationFailed, msg)
}

func NewUnauthorized(msg string) *AppError {
	return New(http.StatusUnauthorized, KindUnauthenticated, msg)
}

func NewForbidden(kind Kind, msg string) *AppError {
	return New(http.StatusForbidden, kind, msg)
}

func NewNotFound(msg string) *AppError {
	return New(http.StatusNotFound, KindNotFound, msg)
}

func NewConflict(msg string) *AppError {
	return New(http.StatusConflict, KindConflict, msg)
}

func NewTooManyRequests(msg string) *AppError {
	return New(http.StatusTooManyRequests, KindRateLimited, msg)
}

func NewServiceUnavailable(kind Kind, msg string) *AppError {
	return New(http.StatusServiceUnavailable, kind, msg)
}

// KindOf returns the kind err is reported as, or KindInternal for
// unexpected errors. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr := translate(err); appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

func statusText(httpStatus int) string {
	if httpStatus >= 500 {
		return StatusError
	}
	return StatusFail
}

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: StatusSuccess, Data: data})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: StatusSuccess, Data: data})
}

// Message sends a 200 OK response carrying only a message.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Status: StatusSuccess, Message: msg})
}

// Error writes err as an error envelope and aborts the chain.
// Unexpected errors are logged; their text only reaches the client in debug mode.
func Error(c *gin.Context, err error) {
	appErr := translate(err)
	if appErr == nil {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("unhandled error")
		_ = c.Error(err)

		msg := "Something went wrong"
		if gin.Mode() == gin.DebugMode {
			msg = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Status: StatusError, Message: msg})
		return
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, Response{
		Status:  statusText(appErr.HTTPStatus),
		Message: appErr.Message,
	})
}

func translate(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFound("Resource not found")
	}
	if isDuplicate(err) {
		return NewConflict("Resource already exists")
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, NewBadRequest(msg))
}

func NotFound(c *gin.Context, msg string) {
	Error(c, NewNotFound(msg))
}

// NoRoute answers unknown paths.
func NoRoute(c *gin.Context) {
	NotFound(c, "Can't find "+c.Request.URL.Path+" on this server!")
}
