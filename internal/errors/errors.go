package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/userhub/accounts/internal/i18n"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient ErrorCategory = "client"
	CategoryServer ErrorCategory = "server"
)

// Response codes carried in the envelope. Clients switch on these; the
// message is localized and informational only.
const (
	CodeSystemError          = 1
	CodeInvalidParameter     = 2
	CodeUnauthorized         = 3
	CodeEmailExists          = 4
	CodeInvalidCredentials   = 5
	CodeOldPasswordIncorrect = 6
	CodeNotFound             = 7
	CodeTokenExpired         = 8
)

// AppError represents a structured application error
type AppError struct {
	Code       int
	MessageKey string
	Category   ErrorCategory
	HTTPStatus int
	Details    any
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d: %s (caused by: %v)", e.Code, e.MessageKey, e.Cause)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.MessageKey)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) ErrorCode() int        { return e.Code }
func (e *AppError) ErrorCategory() string { return string(e.Category) }

// WithDetails attaches client-visible details, such as field errors.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Envelope is the JSON body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// New creates a new AppError
func New(code int, messageKey string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		MessageKey: messageKey,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

func InvalidParameter() *AppError {
	return New(CodeInvalidParameter, i18n.KeyInvalidParameter, CategoryClient, http.StatusBadRequest)
}

func Unauthorized() *AppError {
	return New(CodeUnauthorized, i18n.KeyUnauthorized, CategoryClient, http.StatusUnauthorized)
}

func TokenExpired() *AppError {
	return New(CodeTokenExpired, i18n.KeyTokenExpired, CategoryClient, http.StatusUnauthorized)
}

func InvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, i18n.KeyInvalidCredentials, CategoryClient, http.StatusUnauthorized)
}

func EmailExists() *AppError {
	return New(CodeEmailExists, i18n.KeyEmailExists, CategoryClient, http.StatusConflict)
}

func OldPasswordIncorrect() *AppError {
	return New(CodeOldPasswordIncorrect, i18n.KeyOldPasswordIncorrect, CategoryClient, http.StatusBadRequest)
}

func NotFound() *AppError {
	return New(CodeNotFound, i18n.KeyNotFound, CategoryClient, http.StatusNotFound)
}

func SystemError(cause error) *AppError {
	return New(CodeSystemError, i18n.KeySystemError, CategoryServer, http.StatusInternalServerError).WithCause(cause)
}

// AsAppError returns err as an *AppError, wrapping unknown errors as system errors.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return SystemError(err)
}

// WriteError writes the error envelope. Server errors never expose their
// cause or details to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := AsAppError(err)

	env := Envelope{
		Success: false,
		Code:    appErr.Code,
		Message: i18n.Default().Localize(r, appErr.MessageKey),
	}
	if IsClientError(appErr) {
		env.Data = appErr.Details
	}

	writeEnvelope(w, appErr.HTTPStatus, env)
}

// WriteSuccess writes a success envelope with an optional payload.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Data: data})
}

// WriteMessage writes a success envelope carrying a localized message.
func WriteMessage(w http.ResponseWriter, r *http.Request, messageKey string) {
	writeEnvelope(w, http.StatusOK, Envelope{
		Success: true,
		Message: i18n.Default().Localize(r, messageKey),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Category == CategoryClient
}

// IsServerError returns true if err would be rendered as a server error.
func IsServerError(err error) bool {
	return !IsClientError(err)
}
