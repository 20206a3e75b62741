package document

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reserved document fields.
const (
	FieldID        = "_id"
	FieldETag      = "@etag"
	FieldCreatedOn = "@created_on"
)

var (
	ErrNotFound = errors.New("document not found")
)

// Document is a schemaless document as stored in a collection.
type Document = bson.M

// NewETag mints a version token. The token embeds its creation second.
func NewETag() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ETagOf returns the version token recorded on d. Values that are neither an
// ObjectID nor a valid ObjectID hex string count as absent.
func ETagOf(d Document) (primitive.ObjectID, bool) {
	if d == nil {
		return primitive.NilObjectID, false
	}
	return ParseETag(d[FieldETag])
}

// ParseETag coerces v into a version token.
func ParseETag(v interface{}) (primitive.ObjectID, bool) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, !t.IsZero()
	case string:
		oid, err := primitive.ObjectIDFromHex(t)
		if err != nil || oid.IsZero() {
			return primitive.NilObjectID, false
		}
		return oid, true
	}
	return primitive.NilObjectID, false
}

// FormatInstant renders t the way @created_on is persisted.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// CreatedOnString renders a stored @created_on value as a string.
func CreatedOnString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case primitive.DateTime:
		return FormatInstant(t.Time())
	case time.Time:
		return FormatInstant(t)
	}
	return fmt.Sprint(v)
}
