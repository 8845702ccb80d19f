package hmssdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshThreshold is the remaining lifetime under which
// EnsureValidToken refreshes.
const DefaultRefreshThreshold = 2 * time.Hour

// Refresher performs the network half of a refresh. It returns the rotated
// token, or "" when the backend accepted the token without rotating it.
// SDKClient implements it.
type Refresher interface {
	Refresh(ctx context.Context, token string) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, token string) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// TokenManager is the single source of truth for the bearer token. It is
// owned by the application entry point and passed to whatever needs a token.
type TokenManager struct {
	store     TokenStore
	refresher Refresher
	logger    *slog.Logger
	now       func() time.Time
	threshold time.Duration
	onExpired func(cause error)

	refreshes singleflight.Group

	// mu serializes every write that depends on what is currently stored.
	mu sync.Mutex
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(logger *slog.Logger) Option {
	return func(tm *TokenManager) { tm.logger = logger }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) { tm.now = now }
}

// WithRefreshThreshold overrides DefaultRefreshThreshold.
func WithRefreshThreshold(d time.Duration) Option {
	return func(tm *TokenManager) { tm.threshold = d }
}

// WithSessionExpiredHandler registers the callback fired when the backend
// rejects the stored token. It runs once per rejected token, after the token
// has been removed, and should send the user back to login.
func WithSessionExpiredHandler(fn func(cause error)) Option {
	return func(tm *TokenManager) { tm.onExpired = fn }
}

// NewTokenManager creates a TokenManager over store, refreshing through refresher.
func NewTokenManager(store TokenStore, refresher Refresher, opts ...Option) *TokenManager {
	tm := &TokenManager{
		store:     store,
		refresher: refresher,
		logger:    slog.Default(),
		now:       time.Now,
		threshold: DefaultRefreshThreshold,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Token returns the stored token, or "" when there is none.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	token, err := tm.store.Get(ctx)
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return token, nil
}

// SetToken persists token, replacing any previous one.
func (tm *TokenManager) SetToken(ctx context.Context, token string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.store.Set(ctx, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// RemoveToken clears the stored token. It is the explicit logout path and
// does not fire the session-expired handler.
func (tm *TokenManager) RemoveToken(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.store.Remove(ctx); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// IsExpired reports whether token is expired. Malformed tokens are expired.
func (tm *TokenManager) IsExpired(token string) bool {
	return jwtx.IsExpired(token, tm.now())
}

// TimeUntilExpiration returns max(0, exp-now); 0 for malformed tokens.
func (tm *TokenManager) TimeUntilExpiration(token string) time.Duration {
	return jwtx.TimeUntilExpiration(token, tm.now())
}

// EnsureValidToken returns the stored token when it outlives the refresh
// threshold, and otherwise the result of RefreshToken. Call it before every
// authenticated request.
func (tm *TokenManager) EnsureValidToken(ctx context.Context) (string, error) {
	token, err := tm.store.Get(ctx)
	if err != nil {
		return "", err
	}

	if tm.TimeUntilExpiration(token) > tm.threshold {
		return token, nil
	}

	return tm.RefreshToken(ctx)
}

// RefreshToken asks the backend for a fresh token. Concurrent callers share
// one in-flight refresh and all see its outcome. A caller whose ctx ends
// stops waiting, but the shared refresh still completes for the others.
//
// Outcomes:
//   - success: the rotated token, or the current one when none was issued;
//   - ErrAuthentication: the token was removed and the handler fired;
//   - anything else (usually ErrTransient): the stored token is untouched.
func (tm *TokenManager) RefreshToken(ctx context.Context) (string, error) {
	ch := tm.refreshes.DoChan("refresh", func() (any, error) {
		return tm.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (tm *TokenManager) refresh(ctx context.Context) (string, error) {
	current, err := tm.store.Get(ctx)
	if err != nil {
		return "", err
	}

	rotated, err := tm.refresher.Refresh(ctx, current)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			tm.invalidate(ctx, current, err)
			return "", err
		}
		tm.logger.Warn("token refresh failed, keeping current token",
			"error", err,
			"remaining", tm.TimeUntilExpiration(current),
		)
		return "", fmt.Errorf("refresh failed: %w", err)
	}

	if rotated == "" || rotated == current {
		tm.logger.Debug("token refresh returned no rotation")
		return current, nil
	}

	if tm.adopt(ctx, current, rotated) {
		return rotated, nil
	}
	return current, nil
}

// adopt stores a rotated token received in answer to a request made with
// used. The rotation is ignored when the session has been cleared in the
// meantime, or when the stored token already lives at least as long.
func (tm *TokenManager) adopt(ctx context.Context, used, rotated string) bool {
	if tm.IsExpired(rotated) {
		tm.logger.Warn("ignoring rotated token that is malformed or expired")
		return false
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	current, err := tm.store.Get(ctx)
	if err != nil {
		return false
	}
	if current != used && tm.TimeUntilExpiration(current) >= tm.TimeUntilExpiration(rotated) {
		return false
	}

	if err := tm.store.Set(ctx, rotated); err != nil {
		tm.logger.Error("failed to store rotated token", "error", err)
		return false
	}

	tm.logger.Info("adopted rotated token", "remaining", tm.TimeUntilExpiration(rotated))
	return true
}

// invalidate removes failed from the store and fires the session-expired
// handler. It does nothing if the slot no longer holds failed, which makes
// the handler fire once per token however many requests saw the 401.
func (tm *TokenManager) invalidate(ctx context.Context, failed string, cause error) {
	tm.mu.Lock()
	current, err := tm.store.Get(ctx)
	if err != nil || current != failed {
		tm.mu.Unlock()
		return
	}
	if err := tm.store.Remove(ctx); err != nil {
		tm.logger.Error("failed to remove rejected token", "error", err)
	}
	tm.mu.Unlock()

	tm.logger.Info("session expired, re-authentication required", "cause", cause)
	if tm.onExpired != nil {
		tm.onExpired(cause)
	}
}

// Session rebuilds the AuthSession from the stored token's claims. The
// claims are not verified; they are for display only.
func (tm *TokenManager) Session(ctx context.Context) (AuthSession, error) {
	token, err := tm.Token(ctx)
	if err != nil || token == "" {
		return AuthSession{}, err
	}

	session := AuthSession{Token: token}

	claims, err := jwtx.Inspect(token)
	if err != nil {
		return session, nil
	}

	session.ExpiresAt = claims.ExpiresAt.Time
	session.IsAuthenticated = !tm.IsExpired(token)
	session.User = &User{
		ID:       claims.Subject,
		Username: claims.Username,
		Name:     claims.Name,
		Role:     claims.Role,
	}

	return session, nil
}
