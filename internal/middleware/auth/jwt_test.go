package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret"

func createOperatorJWT(t *testing.T, operatorID, secret string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": operatorID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func invokeJWT(t *testing.T, authHeader string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/events/deferred", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()

	mw := JWTMiddleware(JWTConfig{Secret: testJWTSecret, Logger: zap.NewNop()})
	require.NoError(t, mw(next)(e.NewContext(req, rec)))
	return rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createOperatorJWT(t, "op_1", testJWTSecret)

	called := false
	rec := invokeJWT(t, "Bearer "+token, func(c echo.Context) error {
		called = true
		assert.Equal(t, "op_1", c.Get("operator_id"))
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		code       string
	}{
		{
			name: "missing header",
			code: "MISSING_AUTH_HEADER",
		},
		{
			name:       "not a bearer token",
			authHeader: createOperatorJWT(t, "op_1", testJWTSecret),
			code:       "INVALID_AUTH_FORMAT",
		},
		{
			name:       "wrong secret",
			authHeader: "Bearer " + createOperatorJWT(t, "op_1", "other-secret"),
			code:       "INVALID_TOKEN",
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not.a.jwt",
			code:       "INVALID_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := invokeJWT(t, tt.authHeader, func(c echo.Context) error {
				t.Fatal("next handler must not run for rejected requests")
				return nil
			})

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "op_1",
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	rec := invokeJWT(t, "Bearer "+tokenString, func(c echo.Context) error {
		t.Fatal("next handler must not run for expired tokens")
		return nil
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
}
