package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const secret = "test-secret"

func adminRouter(secret string) *gin.Engine {
	r := gin.New()
	r.POST("/admin", JWTAuthMiddleware(secret), AdminRoleMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func call(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := adminRouter(secret)

	adminToken, err := IssueToken(secret, "ops", "admin", time.Hour)
	require.NoError(t, err)
	viewerToken, err := IssueToken(secret, "bob", "viewer", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "ops", "admin", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("other-secret", "ops", "admin", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"admin token", "Bearer " + adminToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", adminToken, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"not admin", "Bearer " + viewerToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(r, http.MethodPost, "/admin", tt.auth)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestJWTAuth_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "admin",
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(secret, signed)
	assert.Error(t, err)
}

func TestJWTAuth_OpenWithoutSecret(t *testing.T) {
	w := call(adminRouter(""), http.MethodPost, "/admin", "")
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := IssueToken("", "ops", "admin", time.Hour)
	assert.Error(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	r := gin.New()
	r.POST("/stock", RateLimitMiddleware(rl), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, call(r, http.MethodPost, "/stock", "").Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodPost, "/stock", "").Code)

	w := call(r, http.MethodPost, "/stock", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"error"`)
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	rl.Allow("10.0.0.1")
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.Allow("10.0.0.2")

	rl.cleanup()
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
