package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/docstore/internal/acl"
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/gogotex/docstore/pkg/metrics"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationList reports and records revoked bearer tokens.
type RevocationList interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// AccessManager is the authorization engine consulted per request.
type AccessManager interface {
	IsAuthenticationRequired(r acl.Request) bool
	IsAllowed(r acl.Request) bool
}

// AuthMiddleware verifies Bearer tokens. A request without a token continues
// anonymously when am says no authentication is required; with a nil am every
// request needs a token. Revoked tokens are rejected when revoked is non-nil.
func AuthMiddleware(ver Verifier, am AccessManager, revoked RevocationList) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			if am != nil && !am.IsAuthenticationRequired(RequestFromContext(c)) {
				c.Next()
				return
			}
			unauthorized(c, "missing Authorization header", "")
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			unauthorized(c, "invalid Authorization header", "")
			return
		}
		if ver == nil {
			unauthorized(c, "invalid token", "no verifier configured")
			return
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			unauthorized(c, "invalid token", err.Error())
			return
		}
		if revoked != nil {
			gone, err := revoked.IsRevoked(c.Request.Context(), token)
			if err != nil {
				logger.Errorf("revocation lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token check failed"})
				return
			}
			if gone {
				unauthorized(c, "token revoked", "")
				return
			}
		}

		// Extract claims
		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			unauthorized(c, "failed to parse claims", "")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg, details string) {
	metrics.AccessDenied.WithLabelValues("unauthenticated").Inc()
	body := gin.H{"error": msg}
	if details != "" {
		body["details"] = details
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}

// AccessMiddleware rejects requests the access manager does not allow with 403.
func AccessMiddleware(am AccessManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.IsAllowed(RequestFromContext(c)) {
			c.Next()
			return
		}
		metrics.AccessDenied.WithLabelValues("forbidden").Inc()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// RequestFromContext describes the current request for the access manager.
// Route parameters db, coll and id are used when the route declares them.
func RequestFromContext(c *gin.Context) acl.Request {
	r := acl.Request{
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		DB:         c.Param("db"),
		Collection: c.Param("coll"),
		ID:         c.Param("id"),
		Remote:     c.ClientIP(),
	}
	if v, ok := c.Get(ClaimsKey); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			r.User, _ = cm["sub"].(string)
			r.Roles = rolesOf(cm)
		}
	}
	return r
}

// rolesOf reads "roles" and Keycloak's "realm_access.roles".
func rolesOf(claims map[string]interface{}) []string {
	var out []string
	add := func(v interface{}) {
		list, ok := v.([]interface{})
		if !ok {
			return
		}
		for _, r := range list {
			if s, ok := r.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	add(claims["roles"])
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		add(ra["roles"])
	}
	return out
}

// LogoutHandler revokes the caller's bearer token until its exp claim.
// It must run behind AuthMiddleware.
func LogoutHandler(revoked RevocationList, fallbackTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetString(TokenKey)
		if token == "" || revoked == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "nothing to revoke"})
			return
		}
		ttl := fallbackTTL
		if v, ok := c.Get(ClaimsKey); ok {
			if cm, ok := v.(map[string]interface{}); ok {
				if exp, ok := cm["exp"].(float64); ok {
					ttl = time.Until(time.Unix(int64(exp), 0))
				}
			}
		}
		if err := revoked.Revoke(c.Request.Context(), token, ttl); err != nil {
			logger.Errorf("revoke token: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
