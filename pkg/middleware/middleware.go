package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/auth"
	"github.com/ksred/klear-trade/pkg/response"
	"golang.org/x/time/rate"
)

// TokenValidator turns a bearer token into claims
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex

	// Configure limits per endpoint type
	authLimit     = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	tradingLimit  = rate.Limit(600.0 / 60.0)  // 600 requests per minute
	internalLimit = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
)

// Cleanup old visitors periodically
func init() {
	go cleanupVisitors()
}

func limitFor(path string) (rate.Limit, int) {
	switch {
	case strings.HasPrefix(path, "/api/v1/auth"):
		return authLimit, 3
	case strings.HasPrefix(path, "/api/v1/orders"):
		return tradingLimit, 20
	case strings.HasPrefix(path, "/api/v1/internal"):
		return internalLimit, 50
	default:
		return rate.Inf, 1 // No limit for other paths
	}
}

func getLimiter(path, key string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key = key + ":" + path
	v, exists := visitors[key]
	if !exists {
		limit, burst := limitFor(path)
		v = &visitor{
			limiter: rate.NewLimiter(limit, burst),
		}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}

// RateLimit limits requests per client (or per IP before authentication) and route
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("clientID")
		if key == "" {
			key = c.ClientIP()
		}

		limiter := getLimiter(c.FullPath(), key)
		if !limiter.Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth authenticates the bearer token and stores the caller in the context
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, validator)
		if !ok {
			return
		}
		if !claims.HasPermission(auth.PermissionTrade) && !claims.HasPermission(auth.PermissionOperations) {
			response.Forbidden(c, "Token does not grant trading access")
			c.Abort()
			return
		}
		c.Next()
	}
}

// InternalAuth guards operations endpoints such as the day advance trigger
func InternalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, validator)
		if !ok {
			return
		}
		if !claims.HasPermission(auth.PermissionOperations) {
			response.Forbidden(c, "Operations permission required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, validator TokenValidator) (*auth.Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Unauthorized(c, "Authorization header required")
		c.Abort()
		return nil, false
	}

	bearerToken := strings.Split(authHeader, " ")
	if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
		response.Unauthorized(c, "Invalid authorization header format")
		c.Abort()
		return nil, false
	}

	claims, err := validator.ValidateToken(bearerToken[1])
	if err != nil {
		response.Unauthorized(c, "Invalid token")
		c.Abort()
		return nil, false
	}

	c.Set("claims", claims)
	c.Set("clientID", claims.ClientID)
	c.Set("permissions", claims.Permissions)
	return claims, true
}
