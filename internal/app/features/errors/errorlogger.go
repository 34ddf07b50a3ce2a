// internal/app/features/errors/errorlogger.go
package errors

import (
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// ErrorLogger writes JSON error responses and logs the server-side detail
// the client never sees.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// Fail classifies err, logs it at a level matching its class and writes the
// user-safe response.
func (e *ErrorLogger) Fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperr.Status(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	}
	switch {
	case status >= 500:
		e.Log.Error(msg, fields...)
	case status == http.StatusForbidden:
		e.Log.Info(msg, fields...)
	default:
		e.Log.Debug(msg, fields...)
	}
	apperr.Write(w, err)
}

// LogServerError logs err and responds 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	apperr.WriteJSON(w, http.StatusInternalServerError, apperr.Body{Error: userMsg})
}

// LogBadRequest logs err and responds 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	apperr.WriteJSON(w, http.StatusBadRequest, apperr.Body{Error: userMsg})
}

// NotFound is the router's 404 handler.
func NotFound(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusNotFound, apperr.Body{Error: "Not found"})
}

// MethodNotAllowed is the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusMethodNotAllowed, apperr.Body{Error: "Method not allowed"})
}
