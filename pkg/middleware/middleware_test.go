package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*gin.Engine, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService := auth.NewService("test-secret", time.Hour)
	authService.RegisterAPICredentials("alice", "alice-secret")
	authService.RegisterAPICredentials("ops", "ops-secret", auth.PermissionOperations)

	router := gin.New()
	router.Use(PrometheusMiddleware())
	router.GET("/api/v1/orders", JWTAuth(authService), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("clientID"))
	})
	router.POST("/api/v1/internal/simulation/advance", InternalAuth(authService), func(c *gin.Context) {
		c.String(http.StatusOK, "advanced")
	})
	return router, authService
}

func token(t *testing.T, s *auth.Service, key, secret string) string {
	t.Helper()
	resp, err := s.GenerateToken(auth.Credentials{APIKey: key, APISecret: secret})
	require.NoError(t, err)
	return "Bearer " + resp.Token
}

func serve(router *gin.Engine, method, path, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	router, s := setup(t)

	w := serve(router, http.MethodGet, "/api/v1/orders", token(t, s, "alice", "alice-secret"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/orders", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/orders", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/orders", "Token abc").Code)
}

func TestInternalAuthRequiresOperations(t *testing.T) {
	router, s := setup(t)

	w := serve(router, http.MethodPost, "/api/v1/internal/simulation/advance", token(t, s, "alice", "alice-secret"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(router, http.MethodPost, "/api/v1/internal/simulation/advance", token(t, s, "ops", "ops-secret"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit())
	router.POST("/api/v1/auth/token", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	limited := 0
	for i := 0; i < 10; i++ {
		if serve(router, http.MethodPost, "/api/v1/auth/token", "").Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(t, limited, 0)

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	}
}
