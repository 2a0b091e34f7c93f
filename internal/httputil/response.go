// Package httputil holds the JSON response and query helpers shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/escrow/internal/errors"
)

// XSSIPrefix is written before JSON bodies that carry secret material so the response
// cannot be evaluated as a script by a cross-site include.
const XSSIPrefix = ")]}',\n"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// errorMapping holds the status and public code of a sentinel. An empty message means
// the wrapped error text is safe to show to the caller.
type errorMapping struct {
	status  int
	code    string
	message string
}

var errorMappings = map[error]errorMapping{
	apperrors.ErrConfiguration: {http.StatusInternalServerError, "configuration_error", "The server is misconfigured"},
	apperrors.ErrNotFound:      {http.StatusNotFound, "not_found", "No matching secret or record exists"},
	apperrors.ErrConflict:      {http.StatusConflict, "conflict", "The request conflicts with stored data"},
	apperrors.ErrInvalidInput:  {http.StatusBadRequest, "invalid_input", ""},
	apperrors.ErrUnauthorized:  {http.StatusUnauthorized, "unauthorized", "Authentication is required"},
	apperrors.ErrLocked: {
		http.StatusLocked, "client_locked", "Client is locked after repeated authentication failures",
	},
	apperrors.ErrForbidden: {http.StatusForbidden, "forbidden", "Access to this secret is not permitted"},
}

var internalError = errorMapping{
	status:  http.StatusInternalServerError,
	code:    "internal_error",
	message: "An internal error occurred",
}

func mapError(err error) errorMapping {
	m, ok := errorMappings[apperrors.Kind(err)]
	if !ok {
		return internalError
	}
	if m.message == "" {
		m.message = err.Error()
	}
	return m
}

// HandleErrorGin writes the status and body matching err's sentinel. Unknown errors
// become a 500 without details.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	m := mapError(err)
	if logger != nil {
		logger.Error("request failed",
			slog.Int("status_code", m.status),
			slog.String("error_code", m.code),
			slog.Any("error", err),
		)
	}

	c.JSON(m.status, ErrorResponse{Error: m.code, Message: m.message})
}

// HandleBadRequestGin answers 400 for bodies or parameters that could not be parsed.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
}

// PrefixedJSON writes body as JSON preceded by XSSIPrefix.
func PrefixedJSON(c *gin.Context, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	out := make([]byte, 0, len(XSSIPrefix)+len(data))
	out = append(out, XSSIPrefix...)
	out = append(out, data...)
	c.Data(statusCode, "application/json; charset=utf-8", out)
}
