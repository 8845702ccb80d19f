package hmssdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Login exchanges credentials for a token. The caller stores the token,
// usually with TokenManager.SetToken.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/login", LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login response did not contain a token")
	}

	return &out, nil
}

// Refresh implements Refresher. It sends one GET to RefreshPath with the
// current token and returns the rotated token, or "" when the backend kept
// the token as is. It is never retried: the next scheduled check is the retry.
func (c *SDKClient) Refresh(ctx context.Context, token string) (string, error) {
	resp, err := c.roundTrip(ctx, request{
		method: http.MethodGet,
		path:   c.RefreshPath,
		token:  token,
	})
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseErrorResponse(resp, true)
	}

	rotated := rotatedToken(resp)
	if rotated == "" && len(resp.Body) > 0 && !resp.isJSON() {
		return "", resp.shapeError()
	}

	return rotated, nil
}

// Health calls GET /health.
func (c *SDKClient) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/health"})
	if err != nil {
		return nil, err
	}

	var out HealthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out, nil
}

// Diagnosis describes how the configured backend answered a health probe.
type Diagnosis struct {
	BaseURL   string
	Reachable bool
	Healthy   bool
	Version   string
	Latency   time.Duration
	Err       error
}

// Problem returns a short operator-facing explanation, or "" when healthy.
func (d Diagnosis) Problem() string {
	var shapeErr *APIShapeError
	switch {
	case d.Healthy:
		return ""
	case errors.As(d.Err, &shapeErr):
		return fmt.Sprintf("%s answered with %q instead of JSON; the base URL probably points at a web page or proxy", d.BaseURL, shapeErr.ContentType)
	case errors.Is(d.Err, ErrTransient):
		return fmt.Sprintf("%s is unreachable or overloaded: %v", d.BaseURL, d.Err)
	case d.Err != nil:
		return fmt.Sprintf("%s returned an error: %v", d.BaseURL, d.Err)
	default:
		return fmt.Sprintf("%s reported an unhealthy status", d.BaseURL)
	}
}

// Diagnose probes /health once, without retries, and classifies the outcome
// so a misconfigured base URL is reported distinctly from an outage.
func (c *SDKClient) Diagnose(ctx context.Context) Diagnosis {
	d := Diagnosis{BaseURL: c.BaseURL}

	start := time.Now()
	resp, err := c.roundTrip(ctx, request{method: http.MethodGet, path: "/health"})
	d.Latency = time.Since(start)
	if err != nil {
		d.Err = err
		return d
	}
	d.Reachable = true

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		d.Err = err
		return d
	}

	d.Version = health.Version
	d.Healthy = health.Status == "ok"
	return d
}
