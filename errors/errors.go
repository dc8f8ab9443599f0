package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrIdentity         = fmt.Errorf("invalid identity")
	ErrValidation       = fmt.Errorf("validation failed")
	ErrNotFound         = fmt.Errorf("not found")
	ErrUnauthenticated  = fmt.Errorf("connection has not joined")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrConnectionExists = fmt.Errorf("connection already registered")
	ErrSlowConsumer     = fmt.Errorf("connection buffer full")
	ErrUnknownEvent     = fmt.Errorf("unknown event")
	ErrRateLimited      = fmt.Errorf("rate limit exceeded")
)

func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// Code maps an error to the code sent to clients in error frames and HTTP bodies.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrIdentity):
		return "identity_error"
	case Is(err, ErrValidation):
		return "validation_error"
	case Is(err, ErrNotFound):
		return "not_found"
	case Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case Is(err, ErrUnknownEvent):
		return "unknown_event"
	case Is(err, ErrRateLimited):
		return "rate_limited"
	case Is(err, ErrConnectionClosed):
		return "connection_closed"
	default:
		return "internal_error"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrIdentity), Is(err, ErrValidation), Is(err, ErrUnknownEvent):
		return http.StatusBadRequest
	case Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
