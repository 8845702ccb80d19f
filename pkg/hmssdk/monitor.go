package hmssdk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultMonitorInterval is how often the Monitor checks the token.
const DefaultMonitorInterval = 30 * time.Minute

// Monitor periodically calls EnsureValidToken so a long-lived session is
// refreshed before it expires even when no request is being made. Failed
// checks are not retried in between ticks.
type Monitor struct {
	Tokens   *TokenManager
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor creates a monitor with the given interval.
// If interval is 0 or negative, defaults to DefaultMonitorInterval.
func NewMonitor(tokens *TokenManager, logger *slog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		Tokens:   tokens,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background check loop. It is non-blocking and only the
// first call has an effect.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
		m.Logger.Info("token monitor started", "interval", m.Interval)
	})
}

// Stop shuts the loop down and waits for an in-progress check to finish.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		started := true
		m.startOnce.Do(func() { started = false })
		if started {
			<-m.doneCh
		}
		m.Logger.Info("token monitor stopped")
	})
}

// run is the main background loop.
func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	// Check immediately so a token that is already near expiry is not left
	// for a whole interval.
	m.check()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopCh:
			return
		}
	}
}

// check performs one EnsureValidToken and logs the outcome.
func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.Interval)
	defer cancel()

	token, err := m.Tokens.EnsureValidToken(ctx)
	switch {
	case err == nil:
		m.Logger.Debug("token check ok", "remaining", m.Tokens.TimeUntilExpiration(token))
	case errors.Is(err, ErrNoToken):
		m.Logger.Debug("token check skipped, no session")
	case errors.Is(err, ErrAuthentication):
		m.Logger.Info("token check ended the session", "error", err)
	default:
		m.Logger.Warn("token check failed, retrying next interval", "error", err)
	}
}
