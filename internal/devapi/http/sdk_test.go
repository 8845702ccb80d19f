package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newSDKSession(t *testing.T, r *Router, opts ...hmssdk.Option) (*hmssdk.SDKClient, *hmssdk.Session) {
	t.Helper()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := hmssdk.NewSDKClient(hmssdk.Config{
		BaseURL: srv.URL + APIPrefix,
		Timeout: 5 * time.Second,
		Logger:  slogx.Discard(),
	})

	opts = append([]hmssdk.Option{hmssdk.WithLogger(slogx.Discard())}, opts...)
	tokens := hmssdk.NewTokenManager(hmssdk.NewMemoryStore(), client, opts...)
	return client, client.NewSession(tokens)
}

func TestSDK_FullSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client, session := newSDKSession(t, newTestRouter(t, 24*time.Hour))

	d := client.Diagnose(ctx)
	require.True(t, d.Healthy, d.Problem())
	require.Equal(t, "v-test", d.Version)

	resp, err := client.Login(ctx, "doctor", testPassword)
	require.NoError(t, err)
	require.NoError(t, session.Tokens().SetToken(ctx, resp.Token))

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "doctor", me.Username)

	patients, err := session.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 3)

	created, err := session.CreatePatient(ctx, hmssdk.CreatePatientRequest{FirstName: "Esi", LastName: "Addo", DateOfBirth: "1989-09-09"})
	require.NoError(t, err)

	got, err := session.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Esi", got.FirstName)

	stock, err := session.ListStock(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stock)

	// 403 surfaces as an API error and keeps the session.
	_, err = session.Dashboard(ctx)
	var apiErr *hmssdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "forbidden", apiErr.Code)

	token, err := session.Tokens().Token(ctx)
	require.NoError(t, err)
	require.Equal(t, resp.Token, token)

	require.NoError(t, session.Logout(ctx))
	token, err = session.Tokens().Token(ctx)
	require.NoError(t, err)
	require.Empty(t, token)

	// The revoked token is rejected by the backend.
	require.NoError(t, session.Tokens().SetToken(ctx, resp.Token))
	_, err = session.Me(ctx)
	require.ErrorIs(t, err, hmssdk.ErrAuthentication)
}

func TestSDK_AdoptsRotatedToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	expired := make(chan error, 1)
	client, session := newSDKSession(t, newTestRouter(t, time.Hour),
		hmssdk.WithSessionExpiredHandler(func(err error) { expired <- err }),
	)

	resp, err := client.Login(ctx, "admin", testPassword)
	require.NoError(t, err)
	require.NoError(t, session.Tokens().SetToken(ctx, resp.Token))

	// A one hour token is under the refresh threshold, so the manager
	// refreshes through /auth/me before the request.
	refreshed, err := session.Tokens().EnsureValidToken(ctx)
	require.NoError(t, err)
	require.NotEqual(t, resp.Token, refreshed)

	stored, err := session.Tokens().Token(ctx)
	require.NoError(t, err)
	require.Equal(t, refreshed, stored)

	summary, err := session.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Patients)

	select {
	case err := <-expired:
		t.Fatalf("unexpected session expiry: %v", err)
	default:
	}
}

func TestSDK_RevokedTokenFiresHandlerOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	expired := make(chan error, 4)
	client, session := newSDKSession(t, newTestRouter(t, 24*time.Hour),
		hmssdk.WithSessionExpiredHandler(func(err error) { expired <- err }),
	)

	resp, err := client.Login(ctx, "nurse", testPassword)
	require.NoError(t, err)
	require.NoError(t, session.Tokens().SetToken(ctx, resp.Token))

	// Revoke out of band, as another device logging out would.
	require.NoError(t, session.Logout(ctx))
	require.NoError(t, session.Tokens().SetToken(ctx, resp.Token))

	_, err = session.ListPatients(ctx)
	require.ErrorIs(t, err, hmssdk.ErrAuthentication)
	_, err = session.ListStock(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)

	require.Len(t, expired, 1)
}
