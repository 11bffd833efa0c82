package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", time.Hour)

	token, expiresAt, err := signer.Sign("inst-1/bookings-20260831.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	name, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "inst-1/bookings-20260831.csv", name)
}

func TestSignerRejectsTamperedToken(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Sign("inst-1/ledger.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = "9999999999" // stretch the expiry without re-signing
	_, err = signer.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRejectsWrongSecret(t *testing.T) {
	token, _, err := NewSigner("secret-a", time.Hour).Sign("inst-1/ledger.csv")
	require.NoError(t, err)

	_, err = NewSigner("secret-b", time.Hour).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerExpiredToken(t *testing.T) {
	signer := NewSigner("secret", 10*time.Millisecond)
	token, _, err := signer.Sign("inst-1/ledger.csv")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = signer.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}
