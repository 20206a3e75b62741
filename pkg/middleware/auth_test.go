package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gogotex/docstore/internal/acl"
	"github.com/gogotex/docstore/internal/revocation"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken":
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	case "editortoken":
		return &fakeToken{data: map[string]interface{}{
			"sub":          "ed",
			"exp":          float64(time.Now().Add(time.Hour).Unix()),
			"realm_access": map[string]interface{}{"roles": []interface{}{"editors"}},
		}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func testEngine(t *testing.T) *acl.Engine {
	t.Helper()
	e, err := acl.New([]acl.Rule{
		{Role: acl.Unauthenticated, Predicate: `method == "GET" && db == "public"`},
		{Role: "editors", Predicate: `db == "docs"`},
	})
	require.NoError(t, err)
	return e
}

func serve(g *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodGet, "/", "").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodGet, "/", "BadHeader").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodGet, "/", "Bearer nope").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodGet, "/", "Bearer ").Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil, nil), func(c *gin.Context) {
		claims, ok := c.Get(ClaimsKey)
		require.True(t, ok)
		require.Equal(t, "goodtoken", c.GetString(TokenKey))
		c.JSON(http.StatusOK, gin.H{"claims": claims})
	})
	rw := serve(g, http.MethodGet, "/", "Bearer goodtoken")

	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Contains(t, got, "claims")
}

func TestAuthMiddleware_AnonymousWhenACLAllows(t *testing.T) {
	am := testEngine(t)
	g := gin.New()
	grp := g.Group("/:db/:coll", AuthMiddleware(&fakeVerifier{}, am, nil), AccessMiddleware(am))
	grp.GET("/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	grp.PUT("/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(g, http.MethodGet, "/public/news/1", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodPut, "/public/news/1", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodGet, "/docs/c/1", "").Code)

	// authenticated but without a matching role
	require.Equal(t, http.StatusForbidden, serve(g, http.MethodGet, "/docs/c/1", "Bearer goodtoken").Code)
	// keycloak realm role grants access
	require.Equal(t, http.StatusOK, serve(g, http.MethodPut, "/docs/c/1", "Bearer editortoken").Code)
}

func TestRequestFromContext(t *testing.T) {
	g := gin.New()
	var got acl.Request
	g.PATCH("/:db/:coll/:id", func(c *gin.Context) {
		c.Set(ClaimsKey, map[string]interface{}{
			"sub":          "u1",
			"roles":        []interface{}{"a", 3, ""},
			"realm_access": map[string]interface{}{"roles": []interface{}{"b"}},
		})
		got = RequestFromContext(c)
	})
	serve(g, http.MethodPatch, "/d/c/i", "")

	require.Equal(t, "PATCH", got.Method)
	require.Equal(t, "/d/c/i", got.Path)
	require.Equal(t, "d", got.DB)
	require.Equal(t, "c", got.Collection)
	require.Equal(t, "i", got.ID)
	require.Equal(t, "u1", got.User)
	require.Equal(t, []string{"a", "b"}, got.Roles)
}

func TestAuthMiddleware_RejectsRevokedTokenAndLogout(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	list := revocation.NewRedisList(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")

	g := gin.New()
	auth := AuthMiddleware(&fakeVerifier{}, nil, list)
	g.GET("/", auth, func(c *gin.Context) { c.Status(http.StatusOK) })
	g.POST("/_logout", auth, LogoutHandler(list, time.Minute))

	require.Equal(t, http.StatusOK, serve(g, http.MethodGet, "/", "Bearer editortoken").Code)
	require.Equal(t, http.StatusNoContent, serve(g, http.MethodPost, "/_logout", "Bearer editortoken").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, http.MethodGet, "/", "Bearer editortoken").Code)

	// expiry is taken from the exp claim
	ttl := m.TTL("revoked:access:editortoken")
	require.Greater(t, ttl, 50*time.Minute)

	// other tokens are unaffected
	require.Equal(t, http.StatusOK, serve(g, http.MethodGet, "/", "Bearer goodtoken").Code)
}

func TestAuthMiddleware_RevocationLookupFailure(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	list := revocation.NewRedisList(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	m.Close()

	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil, list), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusInternalServerError, serve(g, http.MethodGet, "/", "Bearer goodtoken").Code)
}

func TestRequestID(t *testing.T) {
	g := gin.New()
	g.Use(RequestID())
	g.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("requestID")) })

	rw := serve(g, http.MethodGet, "/", "")
	id := rw.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	require.Equal(t, id, rw.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", rw.Header().Get(RequestIDHeader))
}
