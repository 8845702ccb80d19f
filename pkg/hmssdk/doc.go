/*
Package hmssdk provides a client SDK for the hospital management REST API.

# Overview

The package is organized around four types:

  - SDKClient: one HTTP client, configured once from a Config, used for
    unauthenticated calls (Login, Health, Diagnose) and for token refresh
  - TokenManager: owns the bearer token, decides when it needs refreshing and
    guarantees that at most one refresh is in flight
  - Session: authenticated operations; attaches the token to every request and
    adopts rotated tokens from responses
  - Monitor: refreshes the token on a fixed interval while the application runs

Typical wiring, done once by the application entry point:

	client := hmssdk.NewSDKClient(hmssdk.Config{
		BaseURL: "https://hms.example.org/api",
		Timeout: 15 * time.Second,
		Retry:   hmssdk.DefaultRetryPolicy(),
	})

	tokens := hmssdk.NewTokenManager(store, client,
		hmssdk.WithSessionExpiredHandler(func(err error) {
			// send the user back to the login screen
		}),
	)

	login, err := client.Login(ctx, "admin", "secret")
	if err != nil {
		return err
	}
	if err := tokens.SetToken(ctx, login.Token); err != nil {
		return err
	}

	session := client.NewSession(tokens)
	patients, err := session.ListPatients(ctx)

	monitor := hmssdk.NewMonitor(tokens, logger, hmssdk.DefaultMonitorInterval)
	monitor.Start()
	defer monitor.Stop()

# Token Rotation

The backend rotates tokens silently: any authenticated response may carry a
replacement token in the X-New-Token header or in a top-level "token" field
of a JSON object body. Both are checked. A refresh is simply a GET to
Config.RefreshPath (default /auth/me) with the current token.

EnsureValidToken refreshes once the remaining lifetime drops to the refresh
threshold (2 hours by default). Concurrent refreshes are collapsed into one
network call.

# Error Handling

Errors are classified so callers can react to the class rather than to a
status code:

	_, err := session.ListInvoices(ctx)
	switch {
	case errors.Is(err, hmssdk.ErrAuthentication):
		// token was rejected and has been cleared; log in again
	case errors.Is(err, hmssdk.ErrNoToken):
		// never logged in
	case errors.Is(err, hmssdk.ErrTransient):
		// network trouble; try again later
	}

	var shapeErr *hmssdk.APIShapeError
	if errors.As(err, &shapeErr) {
		// the base URL is answering HTML, a configuration problem
	}

Tokens are inspected without signature verification. A token that cannot be
decoded is treated as expired, never reported as an error.
*/
package hmssdk
