package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// HandlerFunc is an HTTP handler that reports failure by returning an error
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// Wrap adapts fn to http.HandlerFunc, sending any returned error through HandleError
func (h *ErrorHandler) Wrap(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.HandleError(w, r, err)
		}
	}
}

// HandleError renders err. Client-safe errors keep their status and detail;
// anything else is logged in full and rendered as the generic internal error.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var apiErr *APIError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &apiErr):
		if serverFault(apiErr.StatusCode) {
			h.logFailure(r, err)
		}
	case errors.As(err, &verrs):
		apiErr = fromValidation(verrs)
	case errors.Is(err, context.DeadlineExceeded):
		h.logFailure(r, err)
		apiErr = ErrTimeout
	default:
		h.logFailure(r, err)
		apiErr = ErrInternal
	}

	_ = render.Render(w, r, apiErr)
}

// serverFault reports whether status signals a failure worth logging. 501 is
// the expected answer of reserved endpoints and is not one.
func serverFault(status int) bool {
	return status >= http.StatusInternalServerError && status != http.StatusNotImplemented
}

func (h *ErrorHandler) logFailure(r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("error_type", errorType(err)),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)
}

// HandlePanic logs a recovered panic with its stack and renders the generic
// internal error. Nothing about the panic reaches the client.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)
	_ = render.Render(w, r, ErrInternal)
}

// NotFound renders the 404 body
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, ErrNotFound)
}

// MethodNotAllowed renders the 405 body
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, ErrMethodNotAllowed)
}

// Recoverer is the innermost pipeline stage, wrapping dispatch directly. It
// converts panics into the generic internal error. When the response has
// already started it can only log, since the status line is gone.
func (h *ErrorHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				// the server treats this as a deliberate abort
				panic(rec)
			}
			if ww.Status() != 0 {
				h.logger.ErrorContext(r.Context(), "panic after response started",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				return
			}
			h.HandlePanic(ww, r, rec)
		}()

		next.ServeHTTP(ww, r)
	})
}

func fromValidation(verrs validator.ValidationErrors) *APIError {
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: "failed on the '" + fe.Tag() + "' rule",
		})
	}
	return &APIError{
		StatusCode: ErrUnprocessableEntity.StatusCode,
		ErrorCode:  ErrUnprocessableEntity.ErrorCode,
		Detail:     ErrUnprocessableEntity.Detail,
		Errors:     fields,
	}
}

func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}
