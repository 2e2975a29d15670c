package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/platform/ctxutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claimsFor(sub string, aud string, exp time.Time) *Claims {
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		Audience:  jwt.ClaimStrings{aud},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}}
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := uuid.New()
	am := NewAuthMiddleware(logger.Nop(), AuthConfig{Secret: testSecret, Audience: "authenticated"})

	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.String(http.StatusOK, rd.UserID.String())
	})

	future := time.Now().Add(time.Hour)
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + sign(t, testSecret, jwt.SigningMethodHS256, claimsFor(user.String(), "authenticated", future)), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, "another-secret-another-secret-1234", jwt.SigningMethodHS256, claimsFor(user.String(), "authenticated", future)), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, testSecret, jwt.SigningMethodHS256, claimsFor(user.String(), "authenticated", time.Now().Add(-time.Minute))), http.StatusUnauthorized},
		{"wrong audience", "Bearer " + sign(t, testSecret, jwt.SigningMethodHS256, claimsFor(user.String(), "anon", future)), http.StatusUnauthorized},
		{"bad subject", "Bearer " + sign(t, testSecret, jwt.SigningMethodHS256, claimsFor("not-a-uuid", "authenticated", future)), http.StatusUnauthorized},
		{"wrong alg", "Bearer " + sign(t, testSecret, jwt.SigningMethodHS512, claimsFor(user.String(), "authenticated", future)), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status == http.StatusOK && rec.Body.String() != user.String() {
				t.Fatalf("user id: %s", rec.Body.String())
			}
		})
	}
}
