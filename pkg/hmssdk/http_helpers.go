package hmssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// RotatedTokenHeader carries a replacement token on any protected response.
const RotatedTokenHeader = "X-New-Token"

// maxBodyBytes bounds how much of a response we buffer.
const maxBodyBytes = 8 << 20

// apiResponse is a fully-read response. Bodies are buffered so a response
// can be inspected for a rotated token and then decoded.
type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *apiResponse) isJSON() bool {
	return isJSONContentType(r.Header.Get("Content-Type"))
}

func (r *apiResponse) shapeError() error {
	snippet := r.Body
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	return &APIShapeError{
		StatusCode:  r.StatusCode,
		ContentType: r.Header.Get("Content-Type"),
		Snippet:     string(snippet),
	}
}

// request describes one logical API call; it may be sent several times.
type request struct {
	method  string
	path    string
	body    []byte
	headers map[string]string
	token   string
}

// jsonRequest marshals v as the body of a request.
func jsonRequest(method, path string, v any) (request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return request{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	return request{
		method:  method,
		path:    path,
		body:    body,
		headers: map[string]string{"Content-Type": "application/json"},
	}, nil
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// idempotent methods are safe to resend after a transient failure.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// do sends req under the client's RetryPolicy. Gateway statuses (429, 502,
// 503, 504) and transport failures are retried; any other response is
// returned as is for the caller to interpret.
func (c *SDKClient) do(ctx context.Context, req request) (*apiResponse, error) {
	policy := c.Retry
	if !idempotent(req.method) {
		policy.MaxAttempts = 1
	}

	var out *apiResponse
	err := policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.roundTrip(ctx, req)
		if err != nil {
			return err
		}
		if isTransientStatus(resp.StatusCode) {
			return &TransientError{StatusCode: resp.StatusCode}
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// roundTrip performs a single HTTP attempt and buffers the body.
func (c *SDKClient) roundTrip(ctx context.Context, req request) (*apiResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.url(req.path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		// Our own cancellation is not a backend problem.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransientError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransientError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &apiResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// rotatedToken extracts a replacement token from the header or from a
// top-level "token" field of a JSON object body. Empty when none.
func rotatedToken(resp *apiResponse) string {
	if tok := resp.Header.Get(RotatedTokenHeader); tok != "" {
		return tok
	}

	if !resp.isJSON() || len(resp.Body) == 0 || resp.Body[0] != '{' {
		return ""
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return ""
	}
	return body.Token
}

// decodeJSON decodes a successful response into target. Any other status
// becomes a typed error; a non-JSON success body is an APIShapeError.
func decodeJSON(resp *apiResponse, target any, expectedStatus int) error {
	if resp.StatusCode != expectedStatus {
		if err := parseErrorResponse(resp, false); err != nil {
			return err
		}
		return fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, expectedStatus)
	}

	if !resp.isJSON() {
		return resp.shapeError()
	}

	if err := json.Unmarshal(resp.Body, target); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return resp.shapeError()
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// checkStatusNoContent returns a typed error unless the response is a 2xx.
func checkStatusNoContent(resp *apiResponse) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return parseErrorResponse(resp, false)
}
