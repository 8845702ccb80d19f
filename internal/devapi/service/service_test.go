package service

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/hms/pkg/cryptox"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fastHasher() *cryptox.PasswordHasher {
	h := cryptox.NewPasswordHasher("pepper")
	h.Params.Memory = 1024
	h.Params.Iterations = 1
	return h
}

func newTokenService(t *testing.T, now time.Time) *TokenService {
	t.Helper()

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	return &TokenService{
		Signer:         signer,
		Issuer:         "hms-devapi",
		AccessTTL:      24 * time.Hour,
		RotationWindow: 2 * time.Hour,
		Revoked:        NewRevocationList(),
		Now:            func() time.Time { return now },
	}
}

func TestTokenService_IssueAndRotate(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	s := newTokenService(t, now)

	token, err := s.Issue(User{ID: "u-1", Username: "doctor", Name: "Dr. Alice Martin", Role: RoleDoctor})
	require.NoError(t, err)

	claims, err := jwtx.Inspect(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.Equal(t, RoleDoctor, claims.Role)
	require.Equal(t, now.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())
	require.NotEmpty(t, claims.ID)

	require.False(t, s.ShouldRotate(*claims))

	near := jwtx.NewAccessClaims("u-1", "doctor", "", RoleDoctor, 2*time.Hour-time.Second, "hms-devapi", now)
	require.True(t, s.ShouldRotate(near))

	edge := jwtx.NewAccessClaims("u-1", "doctor", "", RoleDoctor, 2*time.Hour, "hms-devapi", now)
	require.False(t, s.ShouldRotate(edge))
}

func TestTokenService_Revoke(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	s := newTokenService(t, now)

	claims := jwtx.NewAccessClaims("u-1", "doctor", "", RoleDoctor, time.Hour, "hms-devapi", now)
	require.False(t, s.IsRevoked(claims.ID))

	s.Revoke(claims)
	require.True(t, s.IsRevoked(claims.ID))

	// Not expired yet.
	require.Zero(t, s.Revoked.Prune(now))
	require.Equal(t, 1, s.Revoked.Prune(now.Add(time.Hour)))
	require.False(t, s.IsRevoked(claims.ID))
}

func TestUserService(t *testing.T) {
	t.Parallel()

	s := NewUserService(fastHasher())
	require.NoError(t, s.SeedStaff("correct horse"))

	u, err := s.Authenticate("Doctor", "correct horse")
	require.NoError(t, err)
	require.Equal(t, RoleDoctor, u.Role)
	require.Len(t, u.ID, 26)

	_, err = s.Authenticate("doctor", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate("ghost", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	byID, err := s.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, u, byID)

	_, err = s.GetByID("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Add("doctor", "Someone", RoleNurse, "pw")
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Add("", "Nobody", RoleNurse, "pw")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestHospitalService(t *testing.T) {
	t.Parallel()

	s := NewHospitalService()
	s.Seed()

	patients := s.ListPatients()
	require.Len(t, patients, 3)

	got, err := s.GetPatient(patients[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Ama", got.FirstName)

	_, err = s.GetPatient("missing")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := s.CreatePatient(hmssdk.CreatePatientRequest{FirstName: " Yaw ", LastName: "Boateng", DateOfBirth: "2001-06-15"})
	require.NoError(t, err)
	require.Equal(t, "Yaw", created.FirstName)
	require.Len(t, s.ListPatients(), 4)

	_, err = s.CreatePatient(hmssdk.CreatePatientRequest{FirstName: "Yaw", LastName: "Boateng", DateOfBirth: "15/06/2001"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreatePatient(hmssdk.CreatePatientRequest{LastName: "Boateng", DateOfBirth: "2001-06-15"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreatePatient(hmssdk.CreatePatientRequest{FirstName: "Yaw", LastName: "Boateng", DateOfBirth: "2999-01-01"})
	require.ErrorIs(t, err, ErrInvalidInput)

	d := s.Dashboard()
	require.Equal(t, 4, d.Patients)
	require.Equal(t, 2, d.OpenInvoices)
	require.InDelta(t, 45000, d.Revenue, 0.001)
	require.Equal(t, 2, d.LowStockItems)
	require.Equal(t, 1, d.PendingHRRequests)
	require.Equal(t, 1, d.ActivePregnancies)

	// Lists are copies.
	stock := s.ListStock()
	stock[0].Quantity = 0
	require.NotZero(t, s.ListStock()[0].Quantity)

	require.Len(t, s.ListInvoices(), 3)
	require.Len(t, s.ListMaternityRecords(), 2)
	require.Len(t, s.ListHRRequests(), 2)
}

func TestHousekeepingService(t *testing.T) {
	t.Parallel()

	revoked := NewRevocationList()
	revoked.Add("old", time.Now().Add(-time.Minute))
	revoked.Add("fresh", time.Now().Add(time.Hour))

	h := NewHousekeepingService(revoked, slogx.Discard(), 5*time.Millisecond)
	h.Start()
	require.Eventually(t, func() bool { return revoked.Len() == 1 }, time.Second, 5*time.Millisecond)
	h.Stop()

	require.True(t, revoked.Contains("fresh"))
	require.Equal(t, time.Hour, NewHousekeepingService(revoked, slogx.Discard(), 0).Interval)
}
