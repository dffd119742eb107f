package jwt

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, secret string, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec([]byte(secret), opts...)
	require.NoError(t, err)
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t, "abc123")
	token, err := c.Issue("5b2d2f3e8f1b2c0012345678", AccessAuth)
	require.NoError(t, err)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "5b2d2f3e8f1b2c0012345678", claims.UserID)
	require.Equal(t, AccessAuth, claims.Access)
	require.Nil(t, claims.ExpiresAt)
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	c := newTestCodec(t, "abc123")
	first, err := c.Issue("u1", AccessAuth)
	require.NoError(t, err)
	second, err := c.Issue("u1", AccessAuth)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := newTestCodec(t, "right-secret").Issue("u1", AccessAuth)
	require.NoError(t, err)

	_, err = newTestCodec(t, "wrong-secret").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMutatedSignature(t *testing.T) {
	c := newTestCodec(t, "abc123")
	token, err := c.Issue("u1", AccessAuth)
	require.NoError(t, err)

	idx := strings.LastIndex(token, ".") + 1
	replacement := "A"
	if token[idx] == 'A' {
		replacement = "B"
	}
	mutated := token[:idx] + replacement + token[idx+1:]
	_, err = c.Verify(mutated)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMutatedPayload(t *testing.T) {
	c := newTestCodec(t, "abc123")
	token, err := c.Issue("u1", AccessAuth)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"_id":"u2","access":"auth"}`))
	_, err = c.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	c := newTestCodec(t, "abc123")
	for _, token := range []string{"", "abc", "a.b.c", "x.y"} {
		_, err := c.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	c := newTestCodec(t, "abc123")
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: "u1", Access: AccessAuth})
	signed, err := token.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	c := newTestCodec(t, "abc123")
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{UserID: "u1"})
	signed, err := token.SignedString([]byte("abc123"))
	require.NoError(t, err)

	_, err = c.Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRejectsEmptyClaim(t *testing.T) {
	c := newTestCodec(t, "abc123")
	_, err := c.Issue("", AccessAuth)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = c.Issue("u1", "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewCodecEmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerifyCacheReturnsCopy(t *testing.T) {
	c := newTestCodec(t, "abc123", WithVerifyCache(16, time.Minute))
	token, err := c.Issue("u1", AccessAuth)
	require.NoError(t, err)

	first, err := c.Verify(token)
	require.NoError(t, err)
	first.UserID = "tampered"

	second, err := c.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u1", second.UserID)
	require.Equal(t, 1, c.cache.Len())
}

func TestVerifyCacheSkipsFailures(t *testing.T) {
	c := newTestCodec(t, "abc123", WithVerifyCache(16, time.Minute))
	_, err := c.Verify("a.b.c")
	require.Error(t, err)
	require.Equal(t, 0, c.cache.Len())
}
