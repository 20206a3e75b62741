package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/internal/document/repository"
	"github.com/gogotex/docstore/internal/document/service"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// countingService records how often the write path is reached.
type countingService struct {
	*service.Service
	writes int
}

func (s *countingService) Upsert(ctx context.Context, db, coll, id string, content document.Document, requestETag *primitive.ObjectID, patching bool) (service.Result, error) {
	s.writes++
	return s.Service.Upsert(ctx, db, coll, id, content, requestETag, patching)
}

func (s *countingService) Delete(ctx context.Context, db, coll, id string, requestETag *primitive.ObjectID) (document.Outcome, error) {
	s.writes++
	return s.Service.Delete(ctx, db, coll, id, requestETag)
}

func setup(t *testing.T) (*gin.Engine, *countingService, *repository.MemoryCollection) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryStore()
	c := store.CreateCollection("testdb", "docs")
	svc := &countingService{Service: service.New(store)}
	g := gin.New()
	RegisterDocumentRoutes(g, svc)
	return g, svc, c
}

func do(g *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestDocumentRoutes_OptimisticWrites(t *testing.T) {
	g, _, _ := setup(t)

	w := do(g, http.MethodPut, "/testdb/docs/a1", `{"x":1}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	e1 := w.Header().Get("ETag")
	require.NotEmpty(t, e1)

	w = do(g, http.MethodPut, "/testdb/docs/a1", `{"x":2}`, map[string]string{"If-Match": e1})
	require.Equal(t, http.StatusGone, w.Code)
	e2 := w.Header().Get("ETag")
	require.NotEqual(t, e1, e2)

	// stale token: rejected and rolled back
	w = do(g, http.MethodPut, "/testdb/docs/a1", `{"x":3}`, map[string]string{"If-Match": e1})
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	require.Empty(t, w.Header().Get("ETag"))

	w = do(g, http.MethodGet, "/testdb/docs/a1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, e2, w.Header().Get("ETag"))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.EqualValues(t, 2, got["x"])
	require.Equal(t, "a1", got["_id"])
	require.NotEmpty(t, got[document.FieldCreatedOn])
}

func TestDocumentRoutes_MissingCollectionNeverReachesWriter(t *testing.T) {
	g, svc, _ := setup(t)

	for _, m := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodGet} {
		w := do(g, m, "/testdb/nope/a1", `{"x":1}`, nil)
		require.Equal(t, http.StatusNotFound, w.Code, m)
	}
	w := do(g, http.MethodPost, "/testdb/nope", `{"x":1}`, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 0, svc.writes)
}

func TestDocumentRoutes_PatchAndDelete(t *testing.T) {
	g, _, c := setup(t)

	w := do(g, http.MethodPatch, "/testdb/docs/ghost", `{"x":1}`, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 0, c.Len())

	w = do(g, http.MethodDelete, "/testdb/docs/ghost", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(g, http.MethodPut, "/testdb/docs/d1", `{"a":1}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	etag := w.Header().Get("ETag")

	w = do(g, http.MethodPatch, "/testdb/docs/d1", `{"b":2}`, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusGone, w.Code)
	etag = w.Header().Get("ETag")

	// wrong token restores the document
	w = do(g, http.MethodDelete, "/testdb/docs/d1", "", map[string]string{"If-Match": primitive.NewObjectID().Hex()})
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	require.Equal(t, 1, c.Len())

	w = do(g, http.MethodDelete, "/testdb/docs/d1", "", map[string]string{"If-Match": "W/" + etag})
	require.Equal(t, http.StatusGone, w.Code)
	require.Equal(t, 0, c.Len())
}

func TestDocumentRoutes_CreateWithGeneratedID(t *testing.T) {
	g, _, c := setup(t)

	w := do(g, http.MethodPost, "/testdb/docs", `{"title":"hello"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	loc := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/testdb/docs/"))
	id := strings.TrimPrefix(loc, "/testdb/docs/")
	require.True(t, primitive.IsValidObjectID(id))
	require.Equal(t, 1, c.Len())

	w = do(g, http.MethodGet, loc, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"$oid":"`+id+`"`)
	require.Contains(t, w.Body.String(), `"title":"hello"`)
}

func TestDocumentRoutes_GetNotModified(t *testing.T) {
	g, _, _ := setup(t)

	w := do(g, http.MethodPut, "/testdb/docs/n1", `{"x":1}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	etag := w.Header().Get("ETag")

	w = do(g, http.MethodGet, "/testdb/docs/n1", "", map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusNotModified, w.Code)
	require.Empty(t, w.Body.String())

	w = do(g, http.MethodGet, "/testdb/docs/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentRoutes_RejectsNonObjectBody(t *testing.T) {
	g, svc, _ := setup(t)

	for _, body := range []string{`[1,2]`, `"text"`, `{"x":`} {
		w := do(g, http.MethodPut, "/testdb/docs/b1", body, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	require.Equal(t, 0, svc.writes)

	// empty body stores an empty document
	w := do(g, http.MethodPut, "/testdb/docs/b1", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestParseETagHeader(t *testing.T) {
	oid := primitive.NewObjectID()
	for _, v := range []string{oid.Hex(), `"` + oid.Hex() + `"`, `W/"` + oid.Hex() + `"`, " " + oid.Hex() + " "} {
		got := ParseETagHeader(v)
		require.NotNil(t, got, v)
		require.Equal(t, oid, *got)
	}
	require.Nil(t, ParseETagHeader(""))
	require.Nil(t, ParseETagHeader("*"))
	require.Nil(t, ParseETagHeader("not-a-token"))
}
