package hmssdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// ErrNoToken means there is no stored token: the user has to log in.
	ErrNoToken = errors.New("hmssdk: no token")

	// ErrAuthentication matches any *AuthenticationError. The stored token
	// has already been cleared when a caller sees it.
	ErrAuthentication = errors.New("hmssdk: authentication required")

	// ErrTransient matches any *TransientError (network, timeout, gateway).
	ErrTransient = errors.New("hmssdk: transient failure")
)

// Backend error codes found in the "error" field of error bodies.
const (
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// ============================================================================
// Typed errors
// ============================================================================

// AuthenticationError is a 401 (or a 403 while refreshing). It is fatal for
// the current token and is never retried.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// TransientError is a failure worth retrying later: the request never got an
// answer, timed out, or hit an overloaded gateway.
type TransientError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// APIShapeError is returned when the backend answers with something that is
// not JSON, usually an HTML page from a proxy or a wrong base URL. The UI
// shows it as a configuration problem rather than a generic failure.
type APIShapeError struct {
	StatusCode  int
	ContentType string
	// Snippet is the start of the body, for diagnostics.
	Snippet string
}

func (e *APIShapeError) Error() string {
	return fmt.Sprintf(
		"unexpected non-JSON response (HTTP %d, content-type %q): check the API base URL",
		e.StatusCode, e.ContentType,
	)
}

// APIError is any other JSON error answered by the backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the error body written by the backend.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into a typed error. A 401 is
// always an authentication failure. authForbidden also maps 403, which is
// only right for the refresh call; everywhere else 403 is a permission error.
func parseErrorResponse(resp *apiResponse, authForbidden bool) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if isTransientStatus(resp.StatusCode) {
		return &TransientError{StatusCode: resp.StatusCode}
	}

	var errResp ErrorResponse
	jsonErr := json.Unmarshal(resp.Body, &errResp)

	if resp.StatusCode == http.StatusUnauthorized ||
		(authForbidden && resp.StatusCode == http.StatusForbidden) {
		return &AuthenticationError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	if jsonErr != nil || !resp.isJSON() {
		return resp.shapeError()
	}

	if errResp.Error == "" {
		errResp.Error = ErrorCodeServerError
	}
	if errResp.Message == "" {
		errResp.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       errResp.Error,
		Message:    errResp.Message,
	}
}

// isTransientStatus reports gateway/overload statuses that are worth a retry.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isJSONContentType accepts application/json and any +json suffix.
func isJSONContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
