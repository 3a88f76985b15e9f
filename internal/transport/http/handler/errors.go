package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/agrimarket/negotiation-api/internal/domain"
)

// httpError maps domain sentinel errors onto HTTP status codes. Unknown
// errors are logged and reported as a generic 500 so internals never leak.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("unhandled request error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
