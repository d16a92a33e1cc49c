package restapi

import (
	"errors"
	"net/http"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// statusFor maps an ierrors.Kind to the HTTP status spec.md §7 assigns
// it. Fatal is a startup-only kind that should never reach a handler;
// it maps to 500 as a defensive fallback.
func statusFor(err error) int {
	var e *ierrors.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case ierrors.BadInput, ierrors.QuotaViolation, ierrors.MonotonicityViolation, ierrors.Protocol:
		return http.StatusBadRequest
	case ierrors.NotFound:
		return http.StatusNotFound
	case ierrors.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
