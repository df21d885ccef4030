// Package token issues short-lived bearer tokens for the Bank of Anthos APIs.
//
// The bank services validate RS256 JWTs signed with the cluster-wide key pair.
// The monitor mounts the private key from the jwt-key secret; when the key is
// absent the monitor still runs, calls go out unauthenticated, and the 401s
// that come back are handled as missing data.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoKey is returned by NewIssuerFromFile when the key file is unreadable.
var ErrNoKey = errors.New("token: signing key not available")

// Claims carried by issued tokens. Field names match what the Bank of Anthos
// services expect.
type Claims struct {
	User string `json:"user"`
	Acct string `json:"acct,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs bearer tokens for a username/account pair.
type Issuer struct {
	key *rsa.PrivateKey
	ttl time.Duration
}

// NewIssuer creates an issuer from an already-parsed private key.
func NewIssuer(key *rsa.PrivateKey) *Issuer {
	return &Issuer{key: key, ttl: time.Hour}
}

// NewIssuerFromFile loads an RS256 private key in PEM format from path.
// Returns ErrNoKey (wrapped) when the file cannot be read or parsed.
func NewIssuerFromFile(path string) (*Issuer, error) {
	if path == "" {
		return nil, ErrNoKey
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKey, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKey, err)
	}
	return NewIssuer(key), nil
}

// Issue signs a token for username, optionally bound to an account ID.
// A nil receiver returns an empty token and no error, so callers can thread
// an absent issuer through without branching.
func (i *Issuer) Issue(username, accountID string) (string, error) {
	if i == nil || i.key == nil {
		return "", nil
	}

	now := time.Now()
	claims := Claims{
		User: username,
		Acct: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}
