package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/gogotex/docstore/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result is the outcome of a write together with the token minted for it.
// ETag is only meaningful when Outcome.Committed() is true.
type Result struct {
	Outcome document.Outcome
	ETag    primitive.ObjectID
}

// Option customizes a Service.
type Option func(*Service)

// WithETagSource replaces the token minting function.
func WithETagSource(fn func() primitive.ObjectID) Option {
	return func(s *Service) {
		if fn != nil {
			s.newETag = fn
		}
	}
}

// Service implements single-document writes guarded by etags. It holds no
// per-request state; all coordination is left to the store's atomic
// find-and-modify primitives.
type Service struct {
	store   document.Store
	newETag func() primitive.ObjectID
}

func New(store document.Store, opts ...Option) *Service {
	s := &Service{store: store, newETag: document.NewETag}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CollectionExists reports whether db.coll exists. Database names that are
// empty or contain whitespace are never valid and are not looked up.
func (s *Service) CollectionExists(ctx context.Context, db, coll string) (bool, error) {
	if db == "" || strings.IndexFunc(db, unicode.IsSpace) >= 0 {
		return false, nil
	}
	return s.store.Exists(ctx, db, coll)
}

// Get returns the document addressed by id or document.ErrNotFound.
func (s *Service) Get(ctx context.Context, db, coll, id string) (document.Document, error) {
	d, err := s.store.Collection(db, coll).FindOne(ctx, document.ResolveID(id).Filter())
	if err != nil {
		return nil, fmt.Errorf("get %s/%s/%s: %w", db, coll, id, err)
	}
	if d == nil {
		return nil, document.ErrNotFound
	}
	return d, nil
}

// Upsert fully replaces (patching=false) or partially updates (patching=true)
// the document addressed by id. A replace creates the document when missing;
// a patch never does. @created_on is write-once and client values for it are
// ignored.
func (s *Service) Upsert(ctx context.Context, db, coll, id string, content document.Document, requestETag *primitive.ObjectID, patching bool) (Result, error) {
	c := s.store.Collection(db, coll)

	etag := s.newETag()
	now := document.FormatInstant(etag.Timestamp())

	body := make(document.Document, len(content)+1)
	for k, v := range content {
		body[k] = v
	}
	body[document.FieldETag] = etag
	delete(body, document.FieldCreatedOn)
	delete(body, document.FieldID)

	filter := document.ResolveID(id).Filter()

	if patching {
		old, err := c.FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: body}}, false)
		if err != nil {
			return Result{}, fmt.Errorf("patch %s %s: %w", c.FullName(), id, err)
		}
		if old == nil {
			return s.done("patch", document.OutcomeNotFound, etag), nil
		}
		outcome, err := s.checkETag(ctx, "patch", c, filter, old, requestETag)
		if err != nil {
			return Result{}, err
		}
		return s.done("patch", outcome, etag), nil
	}

	// FindOneAndReplace cannot keep @created_on from the document it replaces,
	// so the field is written back with a second update on the same filter.
	// The stored value is also carried into the replacement so that no version
	// of the document is visible without it; a concurrent rollback restores
	// whatever version it captured.
	cur, err := c.FindOne(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("replace %s %s: %w", c.FullName(), id, err)
	}
	if v, ok := cur[document.FieldCreatedOn]; ok && v != nil {
		body[document.FieldCreatedOn] = v
	}

	old, err := c.FindOneAndReplace(ctx, filter, body, true, nil)
	if err != nil {
		return Result{}, fmt.Errorf("replace %s %s: %w", c.FullName(), id, err)
	}

	createdOn := now
	if old != nil {
		if v, ok := old[document.FieldCreatedOn]; ok && v != nil {
			createdOn = document.CreatedOnString(v)
		} else {
			logger.Warnf("document %s in collection %s had no %s field; set to now", id, c.FullName(), document.FieldCreatedOn)
		}
	}
	stamp := bson.D{{Key: "$set", Value: bson.D{{Key: document.FieldCreatedOn, Value: createdOn}}}}
	if err := c.UpdateOne(ctx, filter, stamp, true); err != nil {
		return Result{}, fmt.Errorf("stamp %s on %s %s: %w", document.FieldCreatedOn, c.FullName(), id, err)
	}

	if old == nil {
		return s.done("replace", document.OutcomeCreated, etag), nil
	}
	outcome, err := s.checkETag(ctx, "replace", c, filter, old, requestETag)
	if err != nil {
		return Result{}, err
	}
	return s.done("replace", outcome, etag), nil
}

// Delete removes the document addressed by id. A conflicting etag restores it.
func (s *Service) Delete(ctx context.Context, db, coll, id string, requestETag *primitive.ObjectID) (document.Outcome, error) {
	c := s.store.Collection(db, coll)
	filter := document.ResolveID(id).Filter()

	old, err := c.FindOneAndDelete(ctx, filter)
	if err != nil {
		return document.OutcomeNotFound, fmt.Errorf("delete %s %s: %w", c.FullName(), id, err)
	}
	if old == nil {
		metrics.DocumentOutcomes.WithLabelValues("delete", document.OutcomeNotFound.String()).Inc()
		return document.OutcomeNotFound, nil
	}
	outcome, err := s.checkETag(ctx, "delete", c, filter, old, requestETag)
	if err != nil {
		return document.OutcomeNotFound, err
	}
	metrics.DocumentOutcomes.WithLabelValues("delete", outcome.String()).Inc()
	return outcome, nil
}

func (s *Service) done(op string, outcome document.Outcome, etag primitive.ObjectID) Result {
	metrics.DocumentOutcomes.WithLabelValues(op, outcome.String()).Inc()
	return Result{Outcome: outcome, ETag: etag}
}
