package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

const testSecret = "test-secret"

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTVerifier(Config{})
	require.Error(t, err)
}

func TestVerify_Subject(t *testing.T) {
	t.Parallel()

	v, err := NewJWTVerifier(Config{Secret: testSecret})
	require.NoError(t, err)
	tok, err := Sign(testSecret, "user-42", time.Minute)
	require.NoError(t, err)

	uid, err := v.Verify(context.Background(), tok)

	require.NoError(t, err)
	require.Equal(t, "user-42", uid)
}

func TestVerify_FallbackClaims(t *testing.T) {
	t.Parallel()

	v, err := NewJWTVerifier(Config{Secret: testSecret})
	require.NoError(t, err)
	exp := jwt.NewNumericDate(time.Now().Add(time.Minute))

	uid, err := v.Verify(context.Background(), signClaims(t, jwt.SigningMethodHS256, []byte(testSecret),
		Claims{UID: "firebase-uid", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}))
	require.NoError(t, err)
	require.Equal(t, "firebase-uid", uid)

	uid, err = v.Verify(context.Background(), signClaims(t, jwt.SigningMethodHS256, []byte(testSecret),
		Claims{UserID: "legacy-id", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}))
	require.NoError(t, err)
	require.Equal(t, "legacy-id", uid)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	v, err := NewJWTVerifier(Config{Secret: testSecret, Issuer: "relay", Audience: "salesnav"})
	require.NoError(t, err)
	valid := jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "relay",
		Audience:  jwt.ClaimStrings{"salesnav"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noSubject := valid
	noSubject.Subject = ""

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": signClaims(t, jwt.SigningMethodHS256, []byte("other"), valid),
		"wrong alg":    signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), valid),
		"expired":      signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"issuer":       signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer),
		"no subject":   signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject),
	}
	for name, tok := range cases {
		_, err := v.Verify(context.Background(), tok)
		require.Error(t, err, name)
		require.Equal(t, scrape.KindUnauthorized, scrape.KindOf(err), name)
	}

	uid, err := v.Verify(context.Background(), signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), valid))
	require.NoError(t, err)
	require.Equal(t, "u1", uid)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Bearer abc.def":  "abc.def",
		"bearer  abc.def": "abc.def",
		"Basic dXNlcg==":  "",
		"Bearer":          "",
		"":                "",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodPost, "/scrape", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		require.Equal(t, want, BearerToken(r), header)
	}
}
