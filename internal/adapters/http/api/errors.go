package api

import (
	"errors"
	"net/http"

	"github.com/okian/whisper/internal/adapters/mq/queue"
	"github.com/okian/whisper/internal/adapters/repository"
	service "github.com/okian/whisper/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrLimitExceeded = errors.New("limit exceeded")
)

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidPost),
		errors.Is(err, service.ErrInvalidPlayer),
		errors.Is(err, repository.ErrInvalidName),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrUnknownParticipant):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrNameTaken):
		return http.StatusConflict, "name_taken"
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrClosed),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
