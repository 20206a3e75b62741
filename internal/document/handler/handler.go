package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/internal/document/service"
	"github.com/gogotex/docstore/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentService is the subset of service.Service the routes use.
type DocumentService interface {
	CollectionExists(ctx context.Context, db, coll string) (bool, error)
	Get(ctx context.Context, db, coll, id string) (document.Document, error)
	Upsert(ctx context.Context, db, coll, id string, content document.Document, requestETag *primitive.ObjectID, patching bool) (service.Result, error)
	Delete(ctx context.Context, db, coll, id string, requestETag *primitive.ObjectID) (document.Outcome, error)
}

// RegisterDocumentRoutes mounts the document API under r:
//
//	POST   /:db/:coll       create with a generated id
//	GET    /:db/:coll/:id   read
//	PUT    /:db/:coll/:id   replace or create
//	PATCH  /:db/:coll/:id   partial update
//	DELETE /:db/:coll/:id   remove
//
// mw runs before the collection existence gate (authentication, authorization).
func RegisterDocumentRoutes(r gin.IRouter, svc DocumentService, mw ...gin.HandlerFunc) {
	chain := append(append([]gin.HandlerFunc{}, mw...), RequireCollection(svc))
	h := &documentHandler{svc: svc}

	grp := r.Group("/:db/:coll", chain...)
	grp.POST("", h.create)
	grp.GET("/:id", h.get)
	grp.PUT("/:id", func(c *gin.Context) { h.write(c, false) })
	grp.PATCH("/:id", func(c *gin.Context) { h.write(c, true) })
	grp.DELETE("/:id", h.remove)
}

// RequireCollection ends the request with 404 when :db/:coll does not exist.
func RequireCollection(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := svc.CollectionExists(c.Request.Context(), c.Param("db"), c.Param("coll"))
		if err != nil {
			internalError(c, err)
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "collection not found"})
			return
		}
		c.Next()
	}
}

type documentHandler struct {
	svc DocumentService
}

func (h *documentHandler) get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), c.Param("db"), c.Param("coll"), c.Param("id"))
	if errors.Is(err, document.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	if etag, ok := document.ETagOf(d); ok {
		c.Header("ETag", quote(etag))
		if match := ParseETagHeader(c.GetHeader("If-None-Match")); match != nil && *match == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	b, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		internalError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", b)
}

func (h *documentHandler) create(c *gin.Context) {
	content, ok := readBody(c)
	if !ok {
		return
	}
	id := primitive.NewObjectID().Hex()
	res, err := h.svc.Upsert(c.Request.Context(), c.Param("db"), c.Param("coll"), id, content, nil, false)
	if err != nil {
		internalError(c, err)
		return
	}
	if res.Outcome == document.OutcomeCreated {
		c.Header("Location", strings.TrimRight(c.Request.URL.Path, "/")+"/"+id)
	}
	respond(c, res.Outcome, res.ETag)
}

func (h *documentHandler) write(c *gin.Context, patching bool) {
	content, ok := readBody(c)
	if !ok {
		return
	}
	res, err := h.svc.Upsert(c.Request.Context(), c.Param("db"), c.Param("coll"), c.Param("id"), content, ParseETagHeader(c.GetHeader("If-Match")), patching)
	if err != nil {
		internalError(c, err)
		return
	}
	respond(c, res.Outcome, res.ETag)
}

func (h *documentHandler) remove(c *gin.Context) {
	outcome, err := h.svc.Delete(c.Request.Context(), c.Param("db"), c.Param("coll"), c.Param("id"), ParseETagHeader(c.GetHeader("If-Match")))
	if err != nil {
		internalError(c, err)
		return
	}
	c.Status(outcome.Status())
}

func respond(c *gin.Context, outcome document.Outcome, etag primitive.ObjectID) {
	if outcome.Committed() {
		c.Header("ETag", quote(etag))
	}
	c.Status(outcome.Status())
}

// readBody parses an Extended JSON object. An empty body is an empty document.
func readBody(c *gin.Context) (document.Document, bool) {
	data, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, true
	}
	var d document.Document
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object", "details": err.Error()})
		return nil, false
	}
	return d, true
}

// ParseETagHeader reads a version token from If-Match / If-None-Match. Weak
// prefixes and quotes are ignored; anything that is not a token is treated as
// absent.
func ParseETagHeader(v string) *primitive.ObjectID {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	oid, err := primitive.ObjectIDFromHex(v)
	if err != nil {
		return nil
	}
	return &oid
}

func quote(etag primitive.ObjectID) string {
	return `"` + etag.Hex() + `"`
}

func internalError(c *gin.Context, err error) {
	logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
