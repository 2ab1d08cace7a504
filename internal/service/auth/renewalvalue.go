package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const renewalValueBytes = 32

var errBadRenewalSignature = errors.New("renewal token signature mismatch")

// Renewal token value is '<random>.<hmac(random)>', both parts base64 url encoded
// Only sha256 of the whole value is stored
type renewalValues struct {
	key []byte
}

func (r renewalValues) Generate() (value string, hash string, err error) {
	b := make([]byte, renewalValueBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", fmt.Errorf("error while generate renewal token. Err: %w", err)
	}

	value = base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(r.sign(b))
	return value, r.Hash(value), nil
}

func (r renewalValues) Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func (r renewalValues) CheckSignature(value string) error {
	random, signature, ok := strings.Cut(value, ".")
	if !ok {
		return errBadRenewalSignature
	}

	b, err := base64.RawURLEncoding.DecodeString(random)
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRenewalSignature, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRenewalSignature, err)
	}

	if !hmac.Equal(sig, r.sign(b)) {
		return errBadRenewalSignature
	}
	return nil
}

func (r renewalValues) sign(b []byte) []byte {
	m := hmac.New(sha256.New, r.key)
	_, _ = m.Write(b)
	return m.Sum(nil)
}
