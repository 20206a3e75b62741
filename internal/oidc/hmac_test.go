package oidc

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier("testsecret123456789012345678901234")
	require.NoError(t, err)
	ctx := context.Background()

	good := sign(t, jwt.SigningMethodHS256, []byte("testsecret123456789012345678901234"), jwt.MapClaims{
		"sub":   "user-1",
		"roles": []string{"editors"},
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	tok, err := v.Verify(ctx, good)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, []interface{}{"editors"}, claims["roles"])

	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("another-secret"), jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Minute).Unix()})
	_, err = v.Verify(ctx, wrongKey)
	require.Error(t, err)

	expired := sign(t, jwt.SigningMethodHS256, []byte("testsecret123456789012345678901234"), jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Minute).Unix()})
	_, err = v.Verify(ctx, expired)
	require.Error(t, err)

	noExp := sign(t, jwt.SigningMethodHS256, []byte("testsecret123456789012345678901234"), jwt.MapClaims{"sub": "x"})
	_, err = v.Verify(ctx, noExp)
	require.Error(t, err)

	otherAlg := sign(t, jwt.SigningMethodHS512, []byte("testsecret123456789012345678901234"), jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Minute).Unix()})
	_, err = v.Verify(ctx, otherAlg)
	require.Error(t, err)

	_, err = NewHMACVerifier("")
	require.Error(t, err)
}
