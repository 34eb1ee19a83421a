package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vidquery/vidquery/internal/async"
	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/httputil"
	"github.com/vidquery/vidquery/internal/navigation"
	"github.com/vidquery/vidquery/internal/storage"
	"github.com/vidquery/vidquery/internal/timecode"
	"github.com/vidquery/vidquery/internal/upload"
)

// statusFor maps an operation error onto the HTTP status reported to the
// browser.
func statusFor(err error) int {
	var parseErr *timecode.ParseError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, async.ErrInFlight), errors.Is(err, navigation.ErrNotAllowed):
		return http.StatusConflict
	case errors.Is(err, upload.ErrNotVideo):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, navigation.ErrNoSuchResult), errors.Is(err, navigation.ErrUnknownError):
		return http.StatusNotFound
	case errors.As(err, &parseErr),
		errors.Is(err, httputil.ErrBadBody),
		errors.Is(err, backend.ErrUnknownKind),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge), errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, backend.ErrTransport),
		errors.Is(err, backend.ErrBackend),
		errors.Is(err, backend.ErrMalformed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("server: request failed", "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			httputil.WriteError(w, status, "internal error")
			return
		}
	}
	httputil.WriteError(w, status, err.Error())
}
