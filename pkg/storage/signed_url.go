package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrExpiredToken marks a token whose validity window has passed.
	ErrExpiredToken = errors.New("download token expired")
)

// Signer mints and checks expiring HMAC tokens that reference stored files,
// so download links work without a session.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner builds a signer. A non-positive ttl falls back to 24h.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Sign produces a token for the given stored-file name along with its
// expiry. Token layout: base64url(name).expiryUnix.hmacHex.
func (s *Signer) Sign(name string) (string, time.Time, error) {
	if name == "" {
		return "", time.Time{}, fmt.Errorf("sign: name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("sign: secret not configured")
	}

	expiresAt := time.Now().Add(s.ttl)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := encoded + "." + exp + "." + s.mac(encoded, exp)
	return token, expiresAt, nil
}

// Verify checks signature and expiry and returns the embedded file name.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	encoded, exp, sig := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.mac(encoded, exp)), []byte(sig)) {
		return "", ErrInvalidToken
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return "", ErrExpiredToken
	}

	name, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(name), nil
}

func (s *Signer) mac(encoded, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
