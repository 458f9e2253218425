package jwtauth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestParseSecretRawBytes(t *testing.T) {
	raw := make([]byte, SecretSize)
	for i := range raw {
		raw[i] = byte(i)
	}
	secret, err := ParseSecret(raw)
	require.NoError(t, err)
	require.Equal(t, raw, secret)
}

func TestParseSecretHexWithPrefix(t *testing.T) {
	secret, err := ParseSecret([]byte("0x" + strings.Repeat("ab", SecretSize)))
	require.NoError(t, err)
	require.Len(t, secret, SecretSize)
}

func TestParseSecretHexWithoutPrefixAndWhitespace(t *testing.T) {
	secret, err := ParseSecret([]byte("  " + strings.Repeat("cd", SecretSize) + "\n"))
	require.NoError(t, err)
	require.Len(t, secret, SecretSize)
}

func TestParseSecretWrongSizeIsError(t *testing.T) {
	_, err := ParseSecret([]byte("0xabcd"))
	require.ErrorIs(t, err, ErrSecretSize)
}

func TestLoadSecretFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.hex")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("11", SecretSize)), 0o600))

	secret, err := LoadSecretFile(path)
	require.NoError(t, err)
	require.Len(t, secret, SecretSize)
}

func TestMintProducesFreshClaimsEachCall(t *testing.T) {
	secret := make([]byte, SecretSize)
	tok1, err := Mint(secret)
	require.NoError(t, err)
	require.NotEmpty(t, tok1)

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok1, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.NotNil(t, claims.IssuedAt)
}

func TestBearerHeaderFormat(t *testing.T) {
	secret := make([]byte, SecretSize)
	header, err := BearerHeader(secret)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(header, "Bearer "))
}
