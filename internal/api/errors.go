package api

import (
	"errors"
	"fmt"
	"net/http"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/storage"
)

// Error kinds outside the domain taxonomy.
const (
	KindNotFound   = "not_found"
	KindBadRequest = "bad_request"
	KindInternal   = "internal"
)

// ErrBadRequest is returned when a request body cannot be decoded.
var ErrBadRequest = errors.New("bad request")

// ErrorBody is the "error" member of an error response.
type ErrorBody struct {
	Name string `json:"name"`
	What string `json:"what"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  int       `json:"code"`
	Error ErrorBody `json:"error"`
}

// Error is a failure reported by the node. It unwraps to the sentinel of
// its kind, so errors.Is works across the wire.
type Error struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return sentinelForKind(e.Kind)
}

func sentinelForKind(kind string) error {
	switch kind {
	case KindNotFound:
		return storage.ErrNotFound
	case KindBadRequest:
		return ErrBadRequest
	}
	return domain.ErrorForKind(kind)
}

// classify returns the HTTP status and kind name of err.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, KindBadRequest
	}

	kind := domain.ErrorKind(err)
	switch kind {
	case "":
		return http.StatusInternalServerError, KindInternal
	case "authorization":
		return http.StatusUnauthorized, kind
	case "unknown_account", "unknown_contract", "unknown_key":
		return http.StatusNotFound, kind
	case "duplicate_account", "duplicate_key":
		return http.StatusConflict, kind
	default:
		return http.StatusBadRequest, kind
	}
}
