package token

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) (*Issuer, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewIssuer(key), key
}

func TestIssue_RoundTrip(t *testing.T) {
	issuer, key := newTestIssuer(t)

	signed, err := issuer.Issue("testuser", "1011226111")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	parsed, err := jwt.ParseWithClaims(signed, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(*Claims)
	assert.Equal(t, "testuser", claims.User)
	assert.Equal(t, "1011226111", claims.Acct)

	// Expiry roughly one hour out
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, time.Minute)
}

func TestIssue_NilIssuerIsNoop(t *testing.T) {
	var issuer *Issuer
	signed, err := issuer.Issue("testuser", "1011226111")
	assert.NoError(t, err)
	assert.Empty(t, signed)
}

func TestNewIssuerFromFile_Missing(t *testing.T) {
	_, err := NewIssuerFromFile("/nonexistent/jwtRS256.key")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = NewIssuerFromFile("")
	assert.ErrorIs(t, err, ErrNoKey)
}
