package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gogotex/docstore/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-memory document.Store used by unit tests and local runs
// without MongoDB. Each collection serializes its operations, which gives the
// same per-document atomicity the service expects from MongoDB.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*MemoryCollection)}
}

// CreateCollection makes db.coll visible to Exists.
func (s *MemoryStore) CreateCollection(db, coll string) *MemoryCollection {
	c := s.collection(db, coll)
	c.mu.Lock()
	c.exists = true
	c.mu.Unlock()
	return c
}

func (s *MemoryStore) Exists(_ context.Context, db, coll string) (bool, error) {
	s.mu.Lock()
	c, ok := s.collections[db+"."+coll]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exists, nil
}

func (s *MemoryStore) Collection(db, coll string) document.Collection {
	return s.collection(db, coll)
}

func (s *MemoryStore) collection(db, coll string) *MemoryCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := db + "." + coll
	c, ok := s.collections[name]
	if !ok {
		c = &MemoryCollection{name: name, docs: make(map[string]document.Document)}
		s.collections[name] = c
	}
	return c
}

// MemoryCollection supports identity filters ({_id: v}) and the $set update
// operator, which is all the document service issues. $set keys may be dotted
// paths; missing intermediate documents are created as in MongoDB.
type MemoryCollection struct {
	mu     sync.Mutex
	name   string
	exists bool
	docs   map[string]document.Document
}

func (c *MemoryCollection) FullName() string { return c.name }

// Len returns the number of stored documents.
func (c *MemoryCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *MemoryCollection) FindOne(_ context.Context, filter bson.D) (document.Document, error) {
	_, key, err := identity(filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.docs[key]), nil
}

func (c *MemoryCollection) FindOneAndUpdate(_ context.Context, filter, update bson.D, upsert bool) (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(filter, update, upsert)
}

func (c *MemoryCollection) UpdateOne(_ context.Context, filter, update bson.D, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.update(filter, update, upsert)
	return err
}

func (c *MemoryCollection) update(filter, update bson.D, upsert bool) (document.Document, error) {
	id, key, err := identity(filter)
	if err != nil {
		return nil, err
	}
	cur, found := c.docs[key]
	if !found && !upsert {
		return nil, nil
	}
	next := clone(cur)
	if next == nil {
		next = document.Document{document.FieldID: id}
	}
	if err := applyUpdate(next, update); err != nil {
		return nil, err
	}
	c.store(key, next)
	return clone(cur), nil
}

func (c *MemoryCollection) FindOneAndReplace(_ context.Context, filter bson.D, replacement document.Document, upsert bool, projection []string) (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, err := c.replace(filter, replacement, upsert)
	if err != nil {
		return nil, err
	}
	return project(cur, projection), nil
}

func (c *MemoryCollection) ReplaceOne(_ context.Context, filter bson.D, replacement document.Document, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.replace(filter, replacement, upsert)
	return err
}

func (c *MemoryCollection) replace(filter bson.D, replacement document.Document, upsert bool) (document.Document, error) {
	id, key, err := identity(filter)
	if err != nil {
		return nil, err
	}
	cur, found := c.docs[key]
	if !found && !upsert {
		return nil, nil
	}
	next := clone(replacement)
	if next == nil {
		next = document.Document{}
	}
	if v, ok := next[document.FieldID]; ok && !sameID(v, id) {
		return nil, fmt.Errorf("memory store %s: replacement would change immutable field _id", c.name)
	}
	next[document.FieldID] = id
	c.store(key, next)
	return clone(cur), nil
}

func (c *MemoryCollection) FindOneAndDelete(_ context.Context, filter bson.D) (document.Document, error) {
	_, key, err := identity(filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, found := c.docs[key]
	if !found {
		return nil, nil
	}
	delete(c.docs, key)
	return cur, nil
}

func (c *MemoryCollection) store(key string, d document.Document) {
	c.docs[key] = d
	c.exists = true
}

func identity(filter bson.D) (interface{}, string, error) {
	if len(filter) != 1 || filter[0].Key != document.FieldID {
		return nil, "", fmt.Errorf("memory store: only {_id: v} filters are supported, got %v", filter)
	}
	switch v := filter[0].Value.(type) {
	case primitive.ObjectID:
		return v, "oid:" + v.Hex(), nil
	case string:
		return v, "str:" + v, nil
	default:
		return nil, "", fmt.Errorf("memory store: unsupported _id type %T", v)
	}
}

func sameID(a, b interface{}) bool {
	switch x := a.(type) {
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	}
	return false
}

func applyUpdate(d document.Document, update bson.D) error {
	for _, op := range update {
		switch op.Key {
		case "$set":
			fields, err := fieldsOf(op.Value)
			if err != nil {
				return err
			}
			for _, f := range fields {
				if f.Key == document.FieldID && !sameID(f.Value, d[document.FieldID]) {
					return fmt.Errorf("memory store: $set would change immutable field _id")
				}
				if err := setPath(d, f.Key, cloneValue(f.Value)); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("memory store: unsupported update operator %q", op.Key)
		}
	}
	return nil
}

// setPath assigns v at a dotted path, creating intermediate documents.
func setPath(d document.Document, path string, v interface{}) error {
	head, rest, nested := strings.Cut(path, ".")
	if head == "" || (nested && rest == "") {
		return fmt.Errorf("memory store: invalid field path %q", path)
	}
	if !nested {
		d[head] = v
		return nil
	}
	cur, present := d[head]
	switch child := cur.(type) {
	case bson.M:
		if child != nil {
			return setPath(child, rest, v)
		}
	case map[string]interface{}:
		if child != nil {
			return setPath(document.Document(child), rest, v)
		}
	case bson.D:
		m := make(bson.M, len(child))
		for _, e := range child {
			m[e.Key] = e.Value
		}
		d[head] = m
		return setPath(m, rest, v)
	}
	if present {
		return fmt.Errorf("memory store: cannot create field %q in non-document element %q", rest, head)
	}
	m := bson.M{}
	d[head] = m
	return setPath(m, rest, v)
}

func fieldsOf(v interface{}) (bson.D, error) {
	switch t := v.(type) {
	case bson.D:
		return t, nil
	case bson.M:
		out := make(bson.D, 0, len(t))
		for k, v := range t {
			out = append(out, bson.E{Key: k, Value: v})
		}
		return out, nil
	case map[string]interface{}:
		return fieldsOf(bson.M(t))
	}
	return nil, fmt.Errorf("memory store: unsupported update document %T", v)
}

func project(d document.Document, fields []string) document.Document {
	if d == nil || len(fields) == 0 {
		return d
	}
	out := document.Document{document.FieldID: d[document.FieldID]}
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

func clone(d document.Document) document.Document {
	if d == nil {
		return nil
	}
	out := make(document.Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return clone(t)
	case map[string]interface{}:
		return map[string]interface{}(clone(t))
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
