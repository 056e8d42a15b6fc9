package authapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/oakmont/authd/pkg/httpx"
)

// Error codes used in the JSON error envelope.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeAccountLocked      = "account_locked"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeSessionInvalid     = "session_invalid"
	ErrorCodeMFARequired        = "mfa_required"
	ErrorCodeMFAInvalid         = "mfa_invalid"
	ErrorCodeConflict           = "conflict"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeServerError        = "server_error"
)

// APIError is the typed form of the JSON error envelope. It implements the
// error interface and is used both by the server to write responses and by
// the client to represent failures.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// Predefined errors shared between server and client.
var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidJSONBody = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid JSON body",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid username or password",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid or expired",
	}

	ErrSessionInvalid = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeSessionInvalid,
		Description: "the session has been revoked or has expired",
	}

	ErrMFAInvalid = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeMFAInvalid,
		Description: "the MFA challenge or code is invalid or expired",
	}

	ErrConflict = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeConflict,
		Description: "an account with that username or email already exists",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrNotReady = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeServerError,
		Description: "service is not ready",
	}
)

// NewAPIError creates an APIError with a custom description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

// ============================================================================
// Account Locked Error
// ============================================================================

// AccountLockedError is returned with HTTP 423 Locked when too many failed
// attempts have locked the account. RetryAfter is the number of seconds until
// the lock expires, also carried in the Retry-After header.
type AccountLockedError struct {
	// RetryAfter is the number of seconds until the lock expires
	RetryAfter int64 `json:"retry_after"`

	// LockedUntil is an RFC3339 timestamp of when the lock expires
	LockedUntil string `json:"locked_until"`
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockedUntil)
}

// WriteError writes the locked error as 423 with a Retry-After header.
func (e *AccountLockedError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Retry-After", strconv.FormatInt(e.RetryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusLocked)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             ErrorCodeAccountLocked,
		"error_description": "too many failed attempts, the account is temporarily locked",
		"retry_after":       e.RetryAfter,
		"locked_until":      e.LockedUntil,
	})
}

// ============================================================================
// MFA Required Error
// ============================================================================

// MFARequiredError is returned with HTTP 409 Conflict when the credentials
// were correct but the account requires a second factor. The caller completes
// the login by POSTing the challenge token and a TOTP code to the MFA
// endpoint.
type MFARequiredError struct {
	// MFAToken is the opaque challenge token to present at the MFA endpoint
	MFAToken string `json:"mfa_token"`

	// Methods lists the available MFA methods (currently always ["totp"])
	Methods []string `json:"mfa_methods"`
}

func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("MFA required: available methods=%v", e.Methods)
}

// WriteError writes the MFA required error as a 409 Conflict.
func (e *MFARequiredError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             ErrorCodeMFARequired,
		"error_description": "multi-factor authentication is required to complete this login",
		"mfa_token":         e.MFAToken,
		"mfa_methods":       e.Methods,
	})
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns an HTTP error response into a typed error.
// Returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusConflict {
		var mfaResp struct {
			Error      string   `json:"error"`
			MFAToken   string   `json:"mfa_token"`
			MFAMethods []string `json:"mfa_methods"`
		}
		if err := json.Unmarshal(body, &mfaResp); err == nil &&
			mfaResp.Error == ErrorCodeMFARequired && mfaResp.MFAToken != "" {
			return &MFARequiredError{MFAToken: mfaResp.MFAToken, Methods: mfaResp.MFAMethods}
		}
	}

	if resp.StatusCode == http.StatusLocked {
		var lockResp struct {
			RetryAfter  int64  `json:"retry_after"`
			LockedUntil string `json:"locked_until"`
		}
		if err := json.Unmarshal(body, &lockResp); err == nil && lockResp.LockedUntil != "" {
			return &AccountLockedError{RetryAfter: lockResp.RetryAfter, LockedUntil: lockResp.LockedUntil}
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
