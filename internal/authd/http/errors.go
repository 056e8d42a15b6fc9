package http

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/slogx"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// readJSON decodes the request body into target, rejecting oversized bodies
// and trailing garbage. A false return means the error response has already
// been written.
func readJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		authapi.ErrInvalidJSONBody.WriteError(w)
		return false
	}
	if dec.More() {
		authapi.ErrInvalidJSONBody.WriteError(w)
		return false
	}
	return true
}

// writeServiceError maps a service-layer failure onto the JSON error
// envelope. Unrecognised errors are logged and answered as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var lockedErr *service.AccountLockedError

	switch {
	case errors.As(err, &lockedErr):
		retryAfter := int64(math.Ceil(lockedErr.RetryAfter(time.Now().UTC()).Seconds()))
		(&authapi.AccountLockedError{
			RetryAfter:  retryAfter,
			LockedUntil: lockedErr.Until.UTC().Format(time.RFC3339),
		}).WriteError(w)

	case errors.Is(err, service.ErrInvalidCredentials):
		authapi.ErrInvalidCredentials.WriteError(w)

	case errors.Is(err, service.ErrInvalidToken):
		authapi.ErrInvalidToken.WriteError(w)

	case errors.Is(err, service.ErrSessionInvalid):
		authapi.ErrSessionInvalid.WriteError(w)

	case errors.Is(err, service.ErrMFAChallengeInvalid):
		authapi.ErrMFAInvalid.WriteError(w)

	case errors.Is(err, service.ErrConflict):
		authapi.ErrConflict.WriteError(w)

	case errors.Is(err, service.ErrInvalidInput):
		authapi.NewAPIError(http.StatusBadRequest, authapi.ErrorCodeInvalidRequest, trimServicePrefix(err)).WriteError(w)

	case errors.Is(err, service.ErrKeyUnavailable):
		authapi.ErrNotReady.WriteError(w)

	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authapi.ErrServerError.WriteError(w)
	}
}

// trimServicePrefix strips the package prefix from a sentinel-wrapped error
// so the message is fit for an API response.
func trimServicePrefix(err error) string {
	msg := err.Error()
	const prefix = "service: "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
