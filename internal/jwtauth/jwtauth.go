// Package jwtauth mints the HS256 bearer tokens the Engine API's
// authenticated port requires, and loads the secrets they are signed
// with.
package jwtauth

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SecretSize is the fixed length EL implementations require.
const SecretSize = 32

var ErrSecretSize = errors.New("jwtauth: secret must be exactly 32 bytes")

// LoadSecretFile reads a JWT secret from path: hex-encoded (optional 0x
// prefix), any whitespace stripped, or the raw 32-byte key.
func LoadSecretFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwtauth: read secret file %q: %w", path, err)
	}
	return ParseSecret(data)
}

// ParseSecret decodes raw into a 32-byte HS256 key.
func ParseSecret(raw []byte) ([]byte, error) {
	outer := bytes.TrimSpace(raw)
	if len(outer) == SecretSize {
		return append([]byte(nil), outer...), nil
	}

	body := strings.TrimSpace(stripInteriorWhitespace(string(outer)))
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		body = body[2:]
	}
	secret, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("jwtauth: secret is neither raw 32 bytes nor valid hex: %w", err)
	}
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrSecretSize, len(secret))
	}
	return secret, nil
}

func stripInteriorWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, s)
}

// Mint signs a fresh HS256 bearer token over {iat: now}. A fresh token
// must be produced per outbound call: EL implementations reject tokens
// older than ~60s, so callers must never cache the result.
func Mint(secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("jwtauth: sign token: %w", err)
	}
	return signed, nil
}

// BearerHeader mints a fresh token and formats it as an Authorization
// header value.
func BearerHeader(secret []byte) (string, error) {
	tok, err := Mint(secret)
	if err != nil {
		return "", err
	}
	return "Bearer " + tok, nil
}
