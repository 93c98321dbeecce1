package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, expires time.Time) string {
	t.Helper()
	claims := &ServiceClaims{
		Service: "payment-service",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	handler := JWTAuth(testSecret)(func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("service").(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	return rec, handler(e.NewContext(req, rec))
}

func TestJWTAuthValidToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	rec, err := runAuth(t, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payment-service", rec.Body.String())
}

func TestJWTAuthMissingHeader(t *testing.T) {
	_, err := runAuth(t, "")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestJWTAuthMalformedHeader(t *testing.T) {
	_, err := runAuth(t, "Basic dXNlcjpwYXNz")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	token := signToken(t, "some-other-secret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	_, err := runAuth(t, "Bearer "+token)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestJWTAuthExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.SigningMethodHS256, time.Now().Add(-time.Hour))

	_, err := runAuth(t, "Bearer "+token)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestJWTAuthRejectsNonHMACAlgorithm(t *testing.T) {
	// alg=none must never pass
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &ServiceClaims{Service: "attacker"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, authErr := runAuth(t, "Bearer "+token)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, authErr, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
