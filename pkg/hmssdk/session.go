package hmssdk

import (
	"context"
	"errors"
	"net/http"
)

// Session makes authenticated requests. Every request asks the TokenManager
// for a valid token first, and every response is checked for a rotated
// token or a 401.
type Session struct {
	client *SDKClient
	tokens *TokenManager
}

// Tokens returns the manager backing this session.
func (s *Session) Tokens() *TokenManager {
	return s.tokens
}

// getValidToken returns the token to attach. When the refresh only failed
// transiently and the current token has not expired yet, the current token
// is used; the next check retries the refresh.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	token, err := s.tokens.EnsureValidToken(ctx)
	if err == nil {
		return token, nil
	}

	if errors.Is(err, ErrNoToken) || errors.Is(err, ErrAuthentication) || ctx.Err() != nil {
		return "", err
	}

	current, getErr := s.tokens.Token(ctx)
	if getErr != nil || current == "" || s.tokens.IsExpired(current) {
		return "", err
	}

	s.client.logger.Debug("using current token after failed refresh", "error", err)
	return current, nil
}

// doAuthRequest sends req with the bearer token and applies the response
// side of the interceptor.
func (s *Session) doAuthRequest(ctx context.Context, req request) (*apiResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	req.token = token

	resp, err := s.client.do(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		authErr := parseErrorResponse(resp, false)
		s.tokens.invalidate(ctx, token, authErr)
		return nil, authErr
	}

	if rotated := rotatedToken(resp); rotated != "" && rotated != token {
		s.tokens.adopt(ctx, token, rotated)
	}

	return resp, nil
}
